package memory

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/ports"
)

const subscriberBuffer = 64

// ErrBusClosed is returned when subscribing to a closed bus
var ErrBusClosed = errors.New("event bus is closed")

type subscription struct {
	id      uint64
	handler ports.EventHandler
	events  chan domain.Event
	done    chan struct{}
}

// InMemoryEventBus implements EventBus using in-memory handlers.
// Each subscriber gets its own ordered delivery goroutine.
type InMemoryEventBus struct {
	subscribers map[string]map[uint64]*subscription
	nextID      uint64
	mu          sync.RWMutex
	closed      bool
	logger      *zap.Logger
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string]map[uint64]*subscription),
		logger:      logger,
	}
}

// Publish publishes an event to all subscribers of a topic.
// Slow subscribers whose buffer is full miss the event.
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, sub := range e.subscribers[topic] {
		select {
		case sub.events <- event:
		case <-sub.done:
		default:
			e.logger.Warn("dropping event for slow subscriber",
				zap.String("topic", topic),
				zap.String("event_id", event.ID),
				zap.String("job_id", event.JobID))
		}
	}

	return nil
}

// Subscribe subscribes to events on a specific topic until ctx is cancelled
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrBusClosed
	}

	e.nextID++
	sub := &subscription{
		id:      e.nextID,
		handler: handler,
		events:  make(chan domain.Event, subscriberBuffer),
		done:    make(chan struct{}),
	}
	if e.subscribers[topic] == nil {
		e.subscribers[topic] = make(map[uint64]*subscription)
	}
	e.subscribers[topic][sub.id] = sub

	go e.deliver(ctx, topic, sub)

	go func() {
		select {
		case <-ctx.Done():
			e.unsubscribe(topic, sub.id)
		case <-sub.done:
		}
	}()

	return nil
}

func (e *InMemoryEventBus) deliver(ctx context.Context, topic string, sub *subscription) {
	for {
		select {
		case event := <-sub.events:
			if err := sub.handler(ctx, event); err != nil {
				e.logger.Debug("event handler error",
					zap.String("topic", topic),
					zap.String("event_id", event.ID),
					zap.Error(err))
			}
		case <-sub.done:
			return
		}
	}
}

// Close closes the event bus and cleans up resources
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, subs := range e.subscribers {
		for _, sub := range subs {
			close(sub.done)
		}
	}
	e.subscribers = make(map[string]map[uint64]*subscription)
	e.closed = true
	return nil
}

// unsubscribe removes a handler from a topic
func (e *InMemoryEventBus) unsubscribe(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub, ok := e.subscribers[topic][id]
	if !ok {
		return
	}
	close(sub.done)
	delete(e.subscribers[topic], id)
	if len(e.subscribers[topic]) == 0 {
		delete(e.subscribers, topic)
	}
}

func (e *InMemoryEventBus) subscriberCount(topic string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers[topic])
}
