package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/pkg/domain"
)

func newBus(t *testing.T) (*StreamsEventBus, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStreamsEventBus(client, "test", 100, zap.NewNop()), mr
}

func TestStreamsEventBus_Publish(t *testing.T) {
	bus, mr := newBus(t)

	err := bus.Publish(context.Background(), "analysis.events", domain.Event{
		ID:         "evt-1",
		Type:       domain.EventTypeAnalysisSubmitted,
		AnalysisID: "a1",
	})
	require.NoError(t, err)

	entries, err := mr.Stream("sparkcopilot:events:analysis.events")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "data", entries[0].Values[0])
	assert.Contains(t, entries[0].Values[1], `"analysis_id":"a1"`)
}

func TestStreamsEventBus_SubscribersEachReceiveEvents(t *testing.T) {
	bus, _ := newBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	received := map[string][]string{}
	subscriber := func(name string) func(context.Context, domain.Event) error {
		return func(_ context.Context, e domain.Event) error {
			mu.Lock()
			defer mu.Unlock()
			received[name] = append(received[name], e.ID)
			return nil
		}
	}

	require.NoError(t, bus.Subscribe(ctx, "analysis.events", subscriber("a")))
	require.NoError(t, bus.Subscribe(ctx, "analysis.events", subscriber("b")))

	require.NoError(t, bus.Publish(context.Background(), "analysis.events", domain.Event{ID: "e1"}))
	require.NoError(t, bus.Publish(context.Background(), "analysis.events", domain.Event{ID: "e2"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received["a"]) == 2 && len(received["b"]) == 2
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"e1", "e2"}, received["a"])
	assert.Equal(t, []string{"e1", "e2"}, received["b"])
}
