package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Run walks the plan from its entry point.
//
// Each step is invoked with the current state, its contribution is merged
// with the graph's reducer, and the next step is taken from the step's
// unconditional edge or from its router evaluated on the merged state. The
// walk ends at END and returns the merged state.
//
// Any error aborts the walk and the zero state is returned: step errors
// come back as *StepError, an unknown router outcome as ErrRoutingKey, an
// exhausted MaxSteps budget as ErrStepLimit and cancellation as ctx.Err().
func (p *Plan[S, D]) Run(ctx context.Context, initial S) (S, error) {
	runID, ok := RunIDFromContext(ctx)
	if !ok {
		runID = uuid.New().String()
		ctx = ContextWithRunID(ctx, runID)
	}

	logger := p.logger.With(zap.String("graph", p.cfg.Name), zap.String("run_id", runID))
	start := time.Now()

	p.emit(ctx, Event{Kind: EventRunStarted, RunID: runID, Step: p.Entry()})
	logger.Debug("run started", zap.String("entry", p.Entry()))

	state, steps, err := p.walk(ctx, runID, initial, logger)
	elapsed := time.Since(start)

	if err != nil {
		p.emit(ctx, Event{Kind: EventRunFailed, RunID: runID, Steps: steps, Elapsed: elapsed, Err: err})
		logger.Warn("run failed",
			zap.Int("steps", steps),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		var zero S
		return zero, err
	}

	p.emit(ctx, Event{Kind: EventRunFinished, RunID: runID, Steps: steps, Elapsed: elapsed})
	logger.Debug("run finished",
		zap.Int("steps", steps),
		zap.Duration("duration", elapsed))
	return state, nil
}

func (p *Plan[S, D]) walk(ctx context.Context, runID string, initial S, logger *zap.Logger) (S, int, error) {
	state := initial
	current := p.entry
	steps := 0

	for current != terminal {
		if err := ctx.Err(); err != nil {
			return state, steps, fmt.Errorf("run cancelled before step %s: %w", p.steps[current].name, err)
		}
		if p.cfg.MaxSteps > 0 && steps >= p.cfg.MaxSteps {
			return state, steps, fmt.Errorf("%w: %d steps, next was %s", ErrStepLimit, steps, p.steps[current].name)
		}

		ps := &p.steps[current]
		steps++

		contribution, err := p.invoke(ctx, runID, ps, state, steps, logger)
		if err != nil {
			return state, steps, &StepError{Step: ps.name, RunID: runID, Err: err}
		}

		state = p.reduce(state, contribution)

		if ps.router == nil {
			current = ps.next
			continue
		}

		outcome := ps.router(state)
		next, ok := ps.outcomes[outcome]
		if !ok {
			return state, steps, fmt.Errorf("%w: step %s produced %q", ErrRoutingKey, ps.name, outcome)
		}

		p.emit(ctx, Event{
			Kind:    EventStepRouted,
			RunID:   runID,
			Step:    ps.name,
			Outcome: outcome,
			Next:    p.nameOf(next),
			Steps:   steps,
		})
		logger.Debug("step routed",
			zap.String("step", ps.name),
			zap.String("outcome", outcome),
			zap.String("next", p.nameOf(next)))
		current = next
	}

	return state, steps, nil
}

func (p *Plan[S, D]) invoke(ctx context.Context, runID string, ps *planStep[S, D], state S, n int, logger *zap.Logger) (D, error) {
	stepCtx := ctx
	if p.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, p.cfg.StepTimeout)
		defer cancel()
	}

	p.emit(ctx, Event{Kind: EventStepStarted, RunID: runID, Step: ps.name, Steps: n})
	start := time.Now()

	contribution, err := ps.step.Process(stepCtx, state)
	elapsed := time.Since(start)

	if err != nil {
		p.emit(ctx, Event{Kind: EventStepFailed, RunID: runID, Step: ps.name, Steps: n, Elapsed: elapsed, Err: err})
		logger.Error("step failed",
			zap.String("step", ps.name),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		return contribution, err
	}

	p.emit(ctx, Event{Kind: EventStepFinished, RunID: runID, Step: ps.name, Steps: n, Elapsed: elapsed})
	logger.Debug("step finished",
		zap.String("step", ps.name),
		zap.Duration("duration", elapsed))
	return contribution, nil
}

func (p *Plan[S, D]) emit(ctx context.Context, e Event) {
	e.Graph = p.cfg.Name
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	p.observer.OnEvent(ctx, e)
}
