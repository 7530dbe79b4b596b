package memory

import (
	"context"
	"sync"

	"github.com/aescanero/sparkcopilot/pkg/domain"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

// subscriberBuffer bounds the events queued for a slow subscriber
const subscriberBuffer = 256

// InMemoryEventBus implements EventBus using in-process subscriptions.
// Every subscriber receives the events of its topic in publish order on its
// own goroutine; events for a subscriber whose buffer is full are dropped.
type InMemoryEventBus struct {
	subscribers map[string]map[int]*subscription
	nextID      int
	closed      bool
	mu          sync.RWMutex
}

type subscription struct {
	events  chan eventEnvelope
	done    chan struct{}
	handler ports.EventHandler
}

type eventEnvelope struct {
	ctx   context.Context
	event domain.Event
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string]map[int]*subscription),
	}
}

// Publish publishes an event to all subscribers of a topic
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, sub := range e.subscribers[topic] {
		select {
		case sub.events <- eventEnvelope{ctx: context.WithoutCancel(ctx), event: event}:
		default:
		}
	}
	return nil
}

// Subscribe delivers the events of topic to handler until ctx is cancelled
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return context.Canceled
	}

	sub := &subscription{
		events:  make(chan eventEnvelope, subscriberBuffer),
		done:    make(chan struct{}),
		handler: handler,
	}
	id := e.nextID
	e.nextID++
	if e.subscribers[topic] == nil {
		e.subscribers[topic] = make(map[int]*subscription)
	}
	e.subscribers[topic][id] = sub

	go sub.run()
	go func() {
		select {
		case <-ctx.Done():
			e.unsubscribe(topic, id)
		case <-sub.done:
		}
	}()

	return nil
}

// Close closes the event bus and stops every subscription
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for topic, subs := range e.subscribers {
		for id, sub := range subs {
			close(sub.events)
			delete(subs, id)
		}
		delete(e.subscribers, topic)
	}
	e.closed = true
	return nil
}

// unsubscribe removes a subscription from a topic
func (e *InMemoryEventBus) unsubscribe(topic string, id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subscribers[topic]
	sub, ok := subs[id]
	if !ok {
		return
	}
	close(sub.events)
	delete(subs, id)
	if len(subs) == 0 {
		delete(e.subscribers, topic)
	}
}

func (s *subscription) run() {
	defer close(s.done)
	for env := range s.events {
		// handler errors are the subscriber's concern
		_ = s.handler(env.ctx, env.event)
	}
}

var _ ports.EventBus = (*InMemoryEventBus)(nil)
