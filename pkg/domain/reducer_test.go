package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseState() JobState {
	return NewJobState(JobSpec{
		JobID:          "job-1",
		JobName:        "nightly",
		SourceType:     SourceParquet,
		PartitionCount: 5,
	}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestMerge_AppendsAccumulators(t *testing.T) {
	current := baseState()
	current.Recommendations = []string{"first"}
	current.Issues = []Issue{{Type: "a", Severity: SeverityInfo, Description: "x"}}

	c := NewUpdate().
		Recommend("second", "third").
		ReportIssue("b", SeverityWarning, "y")

	out := Merge(current, c)

	assert.Equal(t, []string{"first", "second", "third"}, out.Recommendations)
	require.Len(t, out.Issues, 2)
	assert.Equal(t, "a", out.Issues[0].Type)
	assert.Equal(t, "b", out.Issues[1].Type)
}

func TestMerge_OverwritesOnlyExplicitFields(t *testing.T) {
	current := baseState()
	current.CPUUtilization = 0.7

	out := Merge(current, NewUpdate().SetPartitionStrategy(PartitionUnderPartitioned))

	assert.Equal(t, PartitionUnderPartitioned, out.PartitionStrategy)
	assert.Equal(t, 5, out.PartitionCount)
	assert.Equal(t, 0.7, out.CPUUtilization)
	assert.Equal(t, "nightly", out.JobName)
}

func TestMerge_ExplicitZeroOverwrites(t *testing.T) {
	current := baseState()
	current.CPUUtilization = 0.7

	out := Merge(current, NewUpdate().SetCPUUtilization(0).SetPartitionCount(0))

	assert.Zero(t, out.CPUUtilization)
	assert.Zero(t, out.PartitionCount)
}

func TestMerge_NilContribution(t *testing.T) {
	current := baseState()
	current.Recommendations = []string{"keep"}

	out := Merge(current, nil)
	assert.Equal(t, current, out)

	out = Merge(current, NewUpdate())
	assert.Equal(t, current, out)
}

func TestMerge_DoesNotAlias(t *testing.T) {
	current := baseState()
	current.Recommendations = make([]string, 1, 8)
	current.Recommendations[0] = "one"
	current.SkewedColumns = []string{"id"}

	columns := []string{"ts"}
	c := NewUpdate().Recommend("two").SetSkewedColumns(columns)

	out := Merge(current, c)
	columns[0] = "mutated"
	out.Recommendations[0] = "changed"
	out.SkewedColumns[0] = "changed"

	assert.Equal(t, []string{"one"}, current.Recommendations)
	assert.Equal(t, []string{"id"}, current.SkewedColumns)

	again := Merge(current, c)
	assert.Equal(t, []string{"one", "two"}, again.Recommendations)
	assert.Equal(t, []string{"ts"}, again.SkewedColumns)
}

func TestMerge_IdentityFieldsAreFixed(t *testing.T) {
	current := baseState()
	replacement := current
	replacement.JobID = "other"
	replacement.CreatedAt = time.Now()
	replacement.JobName = "renamed"

	out := Merge(current, Replace(replacement))

	assert.Equal(t, "job-1", out.JobID)
	assert.Equal(t, current.CreatedAt, out.CreatedAt)
	assert.Equal(t, "renamed", out.JobName)
}

func TestReplace_SetsOverwriteFieldsOnly(t *testing.T) {
	s := baseState()
	s.Recommendations = []string{"not carried"}
	s.Issues = []Issue{{Type: "x"}}

	u := Replace(s)
	for _, f := range Fields {
		assert.Equal(t, f.Kind == Overwrite, u.Has(f.Field), f.Name)
	}
	assert.Empty(t, u.Recommendations())
	assert.Empty(t, u.Issues())

	current := baseState()
	current.Recommendations = []string{"existing"}
	out := Merge(current, u)
	assert.Equal(t, []string{"existing"}, out.Recommendations)
}

func TestFold_EquivalentToSequentialMerge(t *testing.T) {
	initial := baseState()
	contributions := []*Update{
		NewUpdate().SetPartitionCount(12).Recommend("a"),
		nil,
		NewUpdate().SetPartitionCount(40).ReportIssue("skew", SeverityWarning, "w"),
		NewUpdate().SetSkewRatio(0.4).Recommend("b", "c"),
	}

	sequential := initial
	for _, c := range contributions {
		sequential = Merge(sequential, c)
	}
	folded := Fold(initial, contributions...)
	assert.Equal(t, sequential, folded)

	pairwise := Merge(Merge(initial, contributions[0]), contributions[2])
	assert.Equal(t, pairwise, Fold(initial, contributions[0], contributions[2]))

	assert.Equal(t, 40, folded.PartitionCount)
	assert.Equal(t, []string{"a", "b", "c"}, folded.Recommendations)
}

func TestFold_AccumulatorsAreMonotonic(t *testing.T) {
	initial := baseState()
	initial.Recommendations = []string{"seed"}
	initial.Issues = []Issue{{Type: "seed", Severity: SeverityInfo}}

	final := Fold(initial,
		NewUpdate().SetJobName("x"),
		NewUpdate().Recommend("r1"),
		Replace(baseState()),
		NewUpdate().ReportIssue("i1", SeverityError, "e"),
	)

	assert.GreaterOrEqual(t, len(final.Recommendations), len(initial.Recommendations))
	assert.GreaterOrEqual(t, len(final.Issues), len(initial.Issues))
	assert.Equal(t, "seed", final.Recommendations[0])
	assert.Equal(t, "seed", final.Issues[0].Type)
}

func TestFold_LastWriteWins(t *testing.T) {
	final := Fold(baseState(),
		NewUpdate().SetPartitionStrategy(PartitionOptimal),
		NewUpdate().Recommend("unrelated"),
		NewUpdate().SetPartitionStrategy(PartitionOverPartitioned),
	)
	assert.Equal(t, PartitionOverPartitioned, final.PartitionStrategy)
}

func TestUpdate_EmptyInputsAreNoops(t *testing.T) {
	u := NewUpdate().Recommend().Report()
	assert.True(t, u.Empty())
	assert.False(t, u.Has(FieldRecommendations))

	var nilUpdate *Update
	assert.True(t, nilUpdate.Empty())
	assert.False(t, nilUpdate.Has(FieldJobName))
	assert.Nil(t, nilUpdate.Recommendations())
}

func TestFields_CoverEveryMergeableField(t *testing.T) {
	var all Field
	names := map[string]bool{}
	for _, f := range Fields {
		assert.Zero(t, all&f.Field, "field %s declared twice", f.Name)
		all |= f.Field
		names[f.Name] = true
	}
	assert.Equal(t, FieldUpdatedAt<<1-1, all)
	assert.True(t, names["recommendations"])
	assert.True(t, names["issues_detected"])
}
