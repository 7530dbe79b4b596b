package graph

import (
	"context"
	"time"
)

// EventKind identifies a run lifecycle event.
type EventKind string

const (
	EventRunStarted   EventKind = "run.started"
	EventRunFinished  EventKind = "run.finished"
	EventRunFailed    EventKind = "run.failed"
	EventStepStarted  EventKind = "step.started"
	EventStepFinished EventKind = "step.finished"
	EventStepFailed   EventKind = "step.failed"
	EventStepRouted   EventKind = "step.routed"
)

// Event describes a milestone of a run.
type Event struct {
	Kind  EventKind
	Graph string
	RunID string
	Time  time.Time

	// Step is set on step events
	Step string
	// Outcome and Next are set on EventStepRouted
	Outcome string
	Next    string
	// Steps counts the invocations performed so far
	Steps   int
	Elapsed time.Duration
	Err     error
}

// Observer receives run events. Events of one run are delivered
// sequentially from the goroutine executing the run.
type Observer interface {
	OnEvent(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, e Event)

// OnEvent calls f.
func (f ObserverFunc) OnEvent(ctx context.Context, e Event) {
	f(ctx, e)
}

// NopObserver discards events.
type NopObserver struct{}

// OnEvent does nothing.
func (NopObserver) OnEvent(context.Context, Event) {}

// MultiObserver broadcasts events to several observers in order.
type MultiObserver []Observer

// OnEvent forwards e to every observer.
func (m MultiObserver) OnEvent(ctx context.Context, e Event) {
	for _, o := range m {
		if o != nil {
			o.OnEvent(ctx, e)
		}
	}
}

type runIDKey struct{}

// ContextWithRunID attaches a run identifier used by Plan.Run instead of
// generating one.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier attached to ctx, if any.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}
