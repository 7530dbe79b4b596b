package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/internal/graph"
	"github.com/aescanero/sparkcopilot/pkg/domain"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

// StepPublisher is a graph observer that republishes step events on the
// analysis topic. The manager runs every analysis under its own ID, so the
// run ID of an event is the analysis ID.
type StepPublisher struct {
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewStepPublisher creates a step event publisher
func NewStepPublisher(eventBus ports.EventBus, logger *zap.Logger) *StepPublisher {
	return &StepPublisher{eventBus: eventBus, logger: logger}
}

// OnEvent implements graph.Observer
func (p *StepPublisher) OnEvent(ctx context.Context, e graph.Event) {
	var eventType domain.EventType
	var data map[string]interface{}

	switch e.Kind {
	case graph.EventStepStarted:
		eventType = domain.EventTypeStepStarted
	case graph.EventStepFinished:
		eventType = domain.EventTypeStepCompleted
		data = map[string]interface{}{"duration_ms": e.Elapsed.Milliseconds()}
	case graph.EventStepFailed:
		eventType = domain.EventTypeStepFailed
		data = map[string]interface{}{"duration_ms": e.Elapsed.Milliseconds()}
		if e.Err != nil {
			data["error"] = e.Err.Error()
		}
	case graph.EventStepRouted:
		eventType = domain.EventTypeStepRouted
		data = map[string]interface{}{"outcome": e.Outcome, "next": e.Next}
	default:
		return
	}

	timestamp := e.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	event := domain.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		AnalysisID: e.RunID,
		Step:       e.Step,
		Timestamp:  timestamp,
		Data:       data,
	}

	if err := p.eventBus.Publish(context.WithoutCancel(ctx), ports.TopicAnalysisEvents, event); err != nil {
		p.logger.Error("failed to publish step event",
			zap.String("analysis_id", e.RunID),
			zap.String("step", e.Step),
			zap.Error(err))
	}
}

var _ graph.Observer = (*StepPublisher)(nil)
