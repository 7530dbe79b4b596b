package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/sparkcopilot/pkg/domain"
)

type collector struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *collector) handle(_ context.Context, e domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.ID
	}
	return out
}

func TestInMemoryEventBus_FanOutInOrder(t *testing.T) {
	bus := NewInMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, second, other := &collector{}, &collector{}, &collector{}
	require.NoError(t, bus.Subscribe(ctx, "analysis.events", first.handle))
	require.NoError(t, bus.Subscribe(ctx, "analysis.events", second.handle))
	require.NoError(t, bus.Subscribe(ctx, "other", other.handle))

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, bus.Publish(context.Background(), "analysis.events", domain.Event{ID: id}))
	}

	want := []string{"e1", "e2", "e3"}
	assert.Eventually(t, func() bool { return len(first.ids()) == 3 && len(second.ids()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, first.ids())
	assert.Equal(t, want, second.ids())
	assert.Empty(t, other.ids())
}

func TestInMemoryEventBus_UnsubscribeOnCancel(t *testing.T) {
	bus := NewInMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := &collector{}
	require.NoError(t, bus.Subscribe(ctx, "topic", c.handle))

	require.NoError(t, bus.Publish(context.Background(), "topic", domain.Event{ID: "before"}))
	assert.Eventually(t, func() bool { return len(c.ids()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subscribers["topic"]) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), "topic", domain.Event{ID: "after"}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"before"}, c.ids())
}

func TestInMemoryEventBus_Close(t *testing.T) {
	bus := NewInMemoryEventBus()
	c := &collector{}
	require.NoError(t, bus.Subscribe(context.Background(), "topic", c.handle))

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Publish(context.Background(), "topic", domain.Event{ID: "dropped"}))
	assert.Error(t, bus.Subscribe(context.Background(), "topic", c.handle))
	assert.Empty(t, c.ids())
}
