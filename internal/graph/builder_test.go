package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tally is a minimal state used to exercise the engine without the domain
// package: Visited accumulates, Level is last-write-wins.
type tally struct {
	Visited []string
	Level   int
}

type mark struct {
	visit string
	level *int
}

func mergeTally(current tally, c mark) tally {
	out := tally{Visited: append([]string(nil), current.Visited...), Level: current.Level}
	if c.visit != "" {
		out.Visited = append(out.Visited, c.visit)
	}
	if c.level != nil {
		out.Level = *c.level
	}
	return out
}

func visit(name string) Step[tally, mark] {
	return StepFunc[tally, mark](func(ctx context.Context, s tally) (mark, error) {
		return mark{visit: name}, nil
	})
}

func setLevel(name string, level int) Step[tally, mark] {
	return StepFunc[tally, mark](func(ctx context.Context, s tally) (mark, error) {
		return mark{visit: name, level: &level}, nil
	})
}

func newTallyBuilder() *Builder[tally, mark] {
	return NewBuilder[tally, mark](Config{Name: "test"}, mergeTally)
}

func TestCompile_Validation(t *testing.T) {
	levelRouter := func(s tally) string {
		if s.Level > 0 {
			return "high"
		}
		return "low"
	}

	tests := []struct {
		name  string
		build func(b *Builder[tally, mark])
		want  []error
	}{
		{
			name: "missing entry point",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", visit("a")).SetFinishPoint("a")
			},
			want: []error{ErrIncompleteGraph},
		},
		{
			name: "entry point not registered",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", visit("a")).SetFinishPoint("a").SetEntryPoint("nope")
			},
			want: []error{ErrUnknownStep},
		},
		{
			name: "edge to unregistered step",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", visit("a")).AddEdge("a", "ghost").SetEntryPoint("a")
			},
			want: []error{ErrUnknownStep},
		},
		{
			name: "edge from unregistered step",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", visit("a")).
					SetFinishPoint("a").
					AddEdge("ghost", "a").
					SetEntryPoint("a")
			},
			want: []error{ErrUnknownStep},
		},
		{
			name: "conditional outcome to unregistered step",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", visit("a")).
					AddConditionalEdge("a", levelRouter, map[string]string{"high": END, "low": "ghost"}).
					SetEntryPoint("a")
			},
			want: []error{ErrUnknownStep},
		},
		{
			name: "duplicate step",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", visit("a")).
					AddNode("a", visit("again")).
					SetFinishPoint("a").
					SetEntryPoint("a")
			},
			want: []error{ErrDuplicateStep},
		},
		{
			name: "reserved name",
			build: func(b *Builder[tally, mark]) {
				b.AddNode(END, visit("end")).
					AddNode("a", visit("a")).
					SetFinishPoint("a").
					SetEntryPoint("a")
			},
			want: []error{ErrInvalidStep},
		},
		{
			name: "nil step",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", nil).
					AddNode("b", visit("b")).
					SetFinishPoint("b").
					SetEntryPoint("b")
			},
			want: []error{ErrInvalidStep},
		},
		{
			name: "conditional and unconditional from the same step",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", visit("a")).
					AddNode("b", visit("b")).
					AddEdge("a", "b").
					AddConditionalEdge("a", levelRouter, map[string]string{"high": "b", "low": END}).
					SetFinishPoint("b").
					SetEntryPoint("a")
			},
			want: []error{ErrAmbiguousEdge},
		},
		{
			name: "two unconditional targets",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", visit("a")).
					AddNode("b", visit("b")).
					AddEdge("a", "b").
					AddEdge("a", END).
					SetFinishPoint("b").
					SetEntryPoint("a")
			},
			want: []error{ErrAmbiguousEdge},
		},
		{
			name: "two conditional sets",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", visit("a")).
					AddConditionalEdge("a", levelRouter, map[string]string{"high": END}).
					AddConditionalEdge("a", levelRouter, map[string]string{"low": END}).
					SetEntryPoint("a")
			},
			want: []error{ErrAmbiguousEdge},
		},
		{
			name: "reachable step without transition",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", visit("a")).
					AddNode("b", visit("b")).
					AddEdge("a", "b").
					SetEntryPoint("a")
			},
			want: []error{ErrIncompleteGraph},
		},
		{
			name: "end unreachable",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", visit("a")).
					AddNode("b", visit("b")).
					AddEdge("a", "b").
					AddEdge("b", "a").
					SetEntryPoint("a")
			},
			want: []error{ErrIncompleteGraph},
		},
		{
			name: "conditional edge without router",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", visit("a")).
					AddConditionalEdge("a", nil, map[string]string{"x": END}).
					SetEntryPoint("a")
			},
			want: []error{ErrIncompleteGraph},
		},
		{
			name: "errors are joined",
			build: func(b *Builder[tally, mark]) {
				b.AddNode("a", visit("a")).
					AddNode("a", visit("a")).
					AddEdge("a", "ghost")
			},
			want: []error{ErrDuplicateStep, ErrUnknownStep, ErrIncompleteGraph},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTallyBuilder()
			tt.build(b)

			plan, err := b.Compile()
			require.Error(t, err)
			assert.Nil(t, plan)
			for _, want := range tt.want {
				assert.True(t, errors.Is(err, want), "expected %v in %v", want, err)
			}
		})
	}
}

func TestCompile_UnreachableStepIsIgnored(t *testing.T) {
	b := newTallyBuilder().
		AddNode("a", visit("a")).
		AddNode("orphan", visit("orphan")).
		SetEntryPoint("a").
		SetFinishPoint("a")

	plan, err := b.Compile()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "orphan"}, plan.Steps())
}

func TestCompile_EdgesBeforeNodes(t *testing.T) {
	b := newTallyBuilder().
		AddEdge("a", "b").
		SetFinishPoint("b").
		SetEntryPoint("a").
		AddNode("a", visit("a")).
		AddNode("b", visit("b"))

	_, err := b.Compile()
	assert.NoError(t, err)
}

func TestCompile_DuplicateEdgeIsNotAmbiguous(t *testing.T) {
	b := newTallyBuilder().
		AddNode("a", visit("a")).
		AddEdge("a", END).
		SetFinishPoint("a").
		SetEntryPoint("a")

	_, err := b.Compile()
	assert.NoError(t, err)
}

func TestCompile_Idempotent(t *testing.T) {
	b := newTallyBuilder().
		AddNode("a", visit("a")).
		AddNode("b", visit("b")).
		AddEdge("a", "b").
		SetEntryPoint("a")

	_, err := b.Compile()
	require.ErrorIs(t, err, ErrIncompleteGraph)

	_, err = b.Compile()
	require.ErrorIs(t, err, ErrIncompleteGraph, "a second compile validates again")

	b.SetFinishPoint("b")
	first, err := b.Compile()
	require.NoError(t, err)
	second, err := b.Compile()
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, first.Transitions(), second.Transitions())
}

func TestBuilder_Err(t *testing.T) {
	b := newTallyBuilder()
	assert.NoError(t, b.Err())

	b.AddNode("a", visit("a")).AddNode("a", visit("a"))
	assert.ErrorIs(t, b.Err(), ErrDuplicateStep)
}

func TestNewBuilder_NilReducer(t *testing.T) {
	b := NewBuilder[tally, mark](Config{Name: "nil"}, nil).
		AddNode("a", visit("a")).
		SetEntryPoint("a").
		SetFinishPoint("a")

	_, err := b.Compile()
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestPlan_Introspection(t *testing.T) {
	router := func(s tally) string { return "done" }

	plan, err := newTallyBuilder().
		AddNode("start", visit("start")).
		AddNode("check", visit("check")).
		AddNode("fix", visit("fix")).
		AddEdge("start", "check").
		AddConditionalEdge("check", router, map[string]string{"done": END, "retry": "fix"}).
		AddEdge("fix", "check").
		SetEntryPoint("start").
		Compile()
	require.NoError(t, err)

	assert.Equal(t, "test", plan.Name())
	assert.Equal(t, "start", plan.Entry())
	assert.True(t, plan.Conditional("check"))
	assert.False(t, plan.Conditional("start"))
	assert.False(t, plan.Conditional("missing"))

	assert.Equal(t, map[string]string{"": "check"}, plan.Successors("start"))
	assert.Equal(t, map[string]string{"done": END, "retry": "fix"}, plan.Successors("check"))
	assert.Nil(t, plan.Successors("missing"))

	assert.Equal(t, []Transition{
		{From: "start", To: "check"},
		{From: "check", To: END, Outcome: "done"},
		{From: "check", To: "fix", Outcome: "retry"},
		{From: "fix", To: "check"},
	}, plan.Transitions())

	want := "graph test (entry: start)\n" +
		"  start --> check\n" +
		"  check --[done]--> __end__\n" +
		"  check --[retry]--> fix\n" +
		"  fix --> check\n"
	assert.Equal(t, want, plan.Describe())
}

func TestAddConditionalEdge_CopiesOutcomes(t *testing.T) {
	outcomes := map[string]string{"go": END}
	b := newTallyBuilder().
		AddNode("a", visit("a")).
		AddConditionalEdge("a", func(tally) string { return "go" }, outcomes).
		SetEntryPoint("a")

	outcomes["go"] = "ghost"

	plan, err := b.Compile()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"go": END}, plan.Successors("a"))
}
