package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/internal/graph"
	eventsmemory "github.com/aescanero/sparkcopilot/pkg/adapters/events/memory"
	"github.com/aescanero/sparkcopilot/pkg/domain"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

func TestStepPublisher(t *testing.T) {
	bus := eventsmemory.NewInMemoryEventBus()
	defer bus.Close()

	received := make(chan domain.Event, 10)
	require.NoError(t, bus.Subscribe(context.Background(), ports.TopicAnalysisEvents, func(_ context.Context, e domain.Event) error {
		received <- e
		return nil
	}))

	p := NewStepPublisher(bus, zap.NewNop())
	ctx := context.Background()
	now := time.Now()

	p.OnEvent(ctx, graph.Event{Kind: graph.EventRunStarted, RunID: "a1", Time: now})
	p.OnEvent(ctx, graph.Event{Kind: graph.EventStepStarted, RunID: "a1", Step: "skew_agent", Time: now})
	p.OnEvent(ctx, graph.Event{Kind: graph.EventStepFinished, RunID: "a1", Step: "skew_agent", Time: now, Elapsed: 3 * time.Millisecond})
	p.OnEvent(ctx, graph.Event{Kind: graph.EventStepRouted, RunID: "a1", Step: "skew_agent", Outcome: "skewed", Next: "mitigation_agent", Time: now})
	p.OnEvent(ctx, graph.Event{Kind: graph.EventStepFailed, RunID: "a1", Step: "cost_agent", Err: errors.New("boom"), Time: now})

	var events []domain.Event
	for len(events) < 4 {
		select {
		case e := <-received:
			events = append(events, e)
		case <-time.After(time.Second):
			t.Fatalf("timed out with %d events", len(events))
		}
	}

	assert.Equal(t, domain.EventTypeStepStarted, events[0].Type)
	assert.Equal(t, "a1", events[0].AnalysisID)
	assert.Equal(t, "skew_agent", events[0].Step)

	assert.Equal(t, domain.EventTypeStepCompleted, events[1].Type)
	assert.Equal(t, int64(3), events[1].Data["duration_ms"])

	assert.Equal(t, domain.EventTypeStepRouted, events[2].Type)
	assert.Equal(t, "skewed", events[2].Data["outcome"])
	assert.Equal(t, "mitigation_agent", events[2].Data["next"])

	assert.Equal(t, domain.EventTypeStepFailed, events[3].Type)
	assert.Equal(t, "boom", events[3].Data["error"])
}
