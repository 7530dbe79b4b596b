package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// END is the terminal marker. An edge to END finishes the walk.
const END = "__end__"

// Step is a named unit of work. It reads the current state and returns its
// contribution, which the plan merges with the graph's Reducer.
type Step[S, D any] interface {
	Process(ctx context.Context, state S) (D, error)
}

// StepFunc adapts a function to the Step interface.
type StepFunc[S, D any] func(ctx context.Context, state S) (D, error)

// Process calls f.
func (f StepFunc[S, D]) Process(ctx context.Context, state S) (D, error) {
	return f(ctx, state)
}

// Router computes an outcome key from the post-merge state.
type Router[S any] func(state S) string

// Reducer folds a step's contribution into the running state.
type Reducer[S, D any] func(current S, contribution D) S

// Config is the immutable configuration of a graph and the plans compiled
// from it.
type Config struct {
	// Name identifies the graph in logs and events
	Name string

	// MaxSteps bounds the number of step invocations per run. Zero means
	// unbounded: cycles then run until a router leaves them or ctx ends.
	MaxSteps int

	// StepTimeout bounds each step invocation. Zero disables it.
	StepTimeout time.Duration
}

// Option configures optional collaborators of a builder.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	observer Observer
}

// WithLogger sets the logger used by compiled plans.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver sets the observer notified during runs.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

type conditionalEdge[S any] struct {
	router   Router[S]
	outcomes map[string]string
}

// Builder assembles a state graph. Methods return the builder so calls can
// be chained; registration errors are collected and reported by Compile.
type Builder[S, D any] struct {
	cfg    Config
	reduce Reducer[S, D]
	opts   options

	steps       map[string]Step[S, D]
	order       []string
	edges       map[string][]string
	conditional map[string][]conditionalEdge[S]
	sources     []string
	entry       string

	errs []error
}

// NewBuilder creates an empty graph builder.
func NewBuilder[S, D any](cfg Config, reduce Reducer[S, D], opts ...Option) *Builder[S, D] {
	o := options{
		logger:   zap.NewNop(),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	b := &Builder[S, D]{
		cfg:         cfg,
		reduce:      reduce,
		opts:        o,
		steps:       make(map[string]Step[S, D]),
		edges:       make(map[string][]string),
		conditional: make(map[string][]conditionalEdge[S]),
	}
	if reduce == nil {
		b.errs = append(b.errs, fmt.Errorf("%w: reducer is nil", ErrInvalidStep))
	}
	return b
}

// AddNode registers a step under a unique name.
func (b *Builder[S, D]) AddNode(name string, step Step[S, D]) *Builder[S, D] {
	switch {
	case name == "" || name == END:
		b.errs = append(b.errs, fmt.Errorf("%w: name %q is reserved or empty", ErrInvalidStep, name))
		return b
	case step == nil:
		b.errs = append(b.errs, fmt.Errorf("%w: step %s is nil", ErrInvalidStep, name))
		return b
	}

	if _, exists := b.steps[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateStep, name))
		return b
	}

	b.opts.logger.Debug("adding step", zap.String("graph", b.cfg.Name), zap.String("step", name))
	b.steps[name] = step
	b.order = append(b.order, name)
	return b
}

// AddEdge adds an unconditional transition. Names are resolved at compile
// time, so edges may be added before their steps.
func (b *Builder[S, D]) AddEdge(from, to string) *Builder[S, D] {
	b.opts.logger.Debug("adding edge",
		zap.String("graph", b.cfg.Name),
		zap.String("from", from),
		zap.String("to", to))
	b.trackSource(from)
	b.edges[from] = append(b.edges[from], to)
	return b
}

// AddConditionalEdge routes from a step through router: after from runs,
// router is evaluated on the merged state and its result is looked up in
// outcomes.
func (b *Builder[S, D]) AddConditionalEdge(from string, router Router[S], outcomes map[string]string) *Builder[S, D] {
	b.opts.logger.Debug("adding conditional edge",
		zap.String("graph", b.cfg.Name),
		zap.String("from", from),
		zap.Int("outcomes", len(outcomes)))

	copied := make(map[string]string, len(outcomes))
	for k, v := range outcomes {
		copied[k] = v
	}
	b.trackSource(from)
	b.conditional[from] = append(b.conditional[from], conditionalEdge[S]{router: router, outcomes: copied})
	return b
}

// SetEntryPoint sets the first step of every run.
func (b *Builder[S, D]) SetEntryPoint(name string) *Builder[S, D] {
	b.entry = name
	return b
}

// SetFinishPoint marks a step whose completion ends the run. It is the same
// as AddEdge(name, END).
func (b *Builder[S, D]) SetFinishPoint(name string) *Builder[S, D] {
	return b.AddEdge(name, END)
}

// Err returns the registration errors collected so far, or nil.
func (b *Builder[S, D]) Err() error {
	return errors.Join(b.errs...)
}

func (b *Builder[S, D]) trackSource(from string) {
	if _, seen := b.edges[from]; seen {
		return
	}
	if _, seen := b.conditional[from]; seen {
		return
	}
	b.sources = append(b.sources, from)
}
