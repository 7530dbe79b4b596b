package domain

import "slices"

// MergeKind selects how a field of a contribution is folded into the state
type MergeKind int

const (
	// Overwrite replaces the current value when the contribution sets the field
	Overwrite MergeKind = iota
	// Append concatenates the contribution's entries after the current ones
	Append
)

func (k MergeKind) String() string {
	if k == Append {
		return "append"
	}
	return "overwrite"
}

// FieldReducer declares the merge rule of one JobState field
type FieldReducer struct {
	Field Field
	Name  string
	Kind  MergeKind
	apply func(dst *JobState, src *JobState)
}

// Fields is the reducer table of JobState. Merge walks it in order.
var Fields = []FieldReducer{
	{Field: FieldJobName, Name: "job_name", Kind: Overwrite, apply: func(d, s *JobState) { d.JobName = s.JobName }},
	{Field: FieldSourceType, Name: "source_type", Kind: Overwrite, apply: func(d, s *JobState) { d.SourceType = s.SourceType }},
	{Field: FieldTableName, Name: "table_name", Kind: Overwrite, apply: func(d, s *JobState) { d.TableName = s.TableName }},
	{Field: FieldSchema, Name: "schema_info", Kind: Overwrite, apply: func(d, s *JobState) { d.Schema = s.Schema.clone() }},
	{Field: FieldPartitionCount, Name: "partition_count", Kind: Overwrite, apply: func(d, s *JobState) { d.PartitionCount = s.PartitionCount }},
	{Field: FieldPartitionStrategy, Name: "partition_strategy", Kind: Overwrite, apply: func(d, s *JobState) { d.PartitionStrategy = s.PartitionStrategy }},
	{Field: FieldPartitionSizes, Name: "partition_sizes", Kind: Overwrite, apply: func(d, s *JobState) { d.PartitionSizes = slices.Clone(s.PartitionSizes) }},
	{Field: FieldSkewedColumns, Name: "skewed_columns", Kind: Overwrite, apply: func(d, s *JobState) { d.SkewedColumns = slices.Clone(s.SkewedColumns) }},
	{Field: FieldSkewRatio, Name: "skew_ratio", Kind: Overwrite, apply: func(d, s *JobState) { d.SkewRatio = s.SkewRatio }},
	{Field: FieldExecutionTime, Name: "execution_time_ms", Kind: Overwrite, apply: func(d, s *JobState) { d.ExecutionTimeMs = s.ExecutionTimeMs }},
	{Field: FieldCPUUtilization, Name: "cpu_utilization", Kind: Overwrite, apply: func(d, s *JobState) { d.CPUUtilization = s.CPUUtilization }},
	{Field: FieldMemoryUsed, Name: "memory_used_mb", Kind: Overwrite, apply: func(d, s *JobState) { d.MemoryUsedMB = s.MemoryUsedMB }},
	{Field: FieldRecommendations, Name: "recommendations", Kind: Append, apply: func(d, s *JobState) {
		d.Recommendations = slices.Concat(d.Recommendations, s.Recommendations)
	}},
	{Field: FieldIssues, Name: "issues_detected", Kind: Append, apply: func(d, s *JobState) {
		d.Issues = slices.Concat(d.Issues, s.Issues)
	}},
	{Field: FieldUpdatedAt, Name: "updated_at", Kind: Overwrite, apply: func(d, s *JobState) { d.UpdatedAt = s.UpdatedAt }},
}

// Merge folds a step's contribution into the current state.
//
// Append fields are concatenated (current entries first), overwrite fields
// take the contribution's value only when it was explicitly set. Neither
// input is modified and the result shares no slices with them. A nil
// contribution returns a copy of current.
func Merge(current JobState, contribution *Update) JobState {
	out := current.Clone()
	if contribution.Empty() {
		return out
	}
	for _, f := range Fields {
		if contribution.set&f.Field != 0 {
			f.apply(&out, &contribution.values)
		}
	}
	return out
}

// Fold applies contributions in sequence starting from initial
func Fold(initial JobState, contributions ...*Update) JobState {
	state := initial.Clone()
	for _, c := range contributions {
		state = Merge(state, c)
	}
	return state
}
