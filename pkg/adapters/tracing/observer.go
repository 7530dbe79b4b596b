package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aescanero/sparkcopilot/internal/graph"
)

// Observer translates graph run events into spans: one span per run with a
// child span per step. Routing decisions become events on the run span.
type Observer struct {
	tracer trace.Tracer

	mu        sync.Mutex
	runSpans  map[string]trace.Span
	runCtxs   map[string]context.Context
	stepSpans map[string]trace.Span // runID:step
}

// NewObserver creates an observer that starts spans with tracer
func NewObserver(tracer trace.Tracer) *Observer {
	return &Observer{
		tracer:    tracer,
		runSpans:  make(map[string]trace.Span),
		runCtxs:   make(map[string]context.Context),
		stepSpans: make(map[string]trace.Span),
	}
}

// OnEvent implements graph.Observer
func (o *Observer) OnEvent(ctx context.Context, e graph.Event) {
	switch e.Kind {
	case graph.EventRunStarted:
		o.runStarted(ctx, e)
	case graph.EventStepStarted:
		o.stepStarted(e)
	case graph.EventStepFinished, graph.EventStepFailed:
		o.stepEnded(e)
	case graph.EventStepRouted:
		o.stepRouted(e)
	case graph.EventRunFinished, graph.EventRunFailed:
		o.runEnded(e)
	}
}

func (o *Observer) runStarted(ctx context.Context, e graph.Event) {
	// the run span nests under whatever span the caller carries
	runCtx, span := o.tracer.Start(ctx, "run:"+e.Graph,
		trace.WithAttributes(
			attribute.String("sparkcopilot.graph", e.Graph),
			attribute.String("sparkcopilot.run_id", e.RunID),
		),
		trace.WithTimestamp(e.Time),
	)

	o.mu.Lock()
	o.runSpans[e.RunID] = span
	o.runCtxs[e.RunID] = runCtx
	o.mu.Unlock()
}

func (o *Observer) stepStarted(e graph.Event) {
	o.mu.Lock()
	parent, ok := o.runCtxs[e.RunID]
	o.mu.Unlock()
	if !ok {
		parent = context.Background()
	}

	_, span := o.tracer.Start(parent, "step:"+e.Step,
		trace.WithAttributes(
			attribute.String("sparkcopilot.run_id", e.RunID),
			attribute.String("sparkcopilot.step", e.Step),
		),
		trace.WithTimestamp(e.Time),
	)

	o.mu.Lock()
	o.stepSpans[stepKey(e)] = span
	o.mu.Unlock()
}

func (o *Observer) stepEnded(e graph.Event) {
	key := stepKey(e)
	o.mu.Lock()
	span, ok := o.stepSpans[key]
	delete(o.stepSpans, key)
	o.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(attribute.Int64("sparkcopilot.duration_ms", e.Elapsed.Milliseconds()))
	finish(span, e)
}

func (o *Observer) stepRouted(e graph.Event) {
	o.mu.Lock()
	span, ok := o.runSpans[e.RunID]
	o.mu.Unlock()
	if !ok {
		return
	}

	span.AddEvent("routed",
		trace.WithTimestamp(e.Time),
		trace.WithAttributes(
			attribute.String("sparkcopilot.step", e.Step),
			attribute.String("sparkcopilot.outcome", e.Outcome),
			attribute.String("sparkcopilot.next", e.Next),
		))
}

func (o *Observer) runEnded(e graph.Event) {
	o.mu.Lock()
	span, ok := o.runSpans[e.RunID]
	delete(o.runSpans, e.RunID)
	delete(o.runCtxs, e.RunID)
	o.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(attribute.Int("sparkcopilot.steps", e.Steps))
	finish(span, e)
}

func finish(span trace.Span, e graph.Event) {
	if e.Err != nil {
		span.RecordError(e.Err, trace.WithTimestamp(e.Time))
		span.SetStatus(codes.Error, e.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.Time))
}

func stepKey(e graph.Event) string {
	return e.RunID + ":" + e.Step
}

var _ graph.Observer = (*Observer)(nil)
