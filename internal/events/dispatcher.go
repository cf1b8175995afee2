package events

import (
	"context"
	"errors"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// MemoryBroker is an in-process Publisher that fans events out to subscribers
// synchronously. It backs the "memory" event bus driver.
type MemoryBroker struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	all       []EventHandler
}

// NewMemoryBroker creates a broker instance.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		listeners: make(map[EventType][]EventHandler),
	}
}

// Publish invokes handlers for the event type, then catch-all handlers.
// Every handler runs; their errors are joined.
func (b *MemoryBroker) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler{}, b.listeners[event.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler for the given event type.
func (b *MemoryBroker) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[eventType] = append(b.listeners[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *MemoryBroker) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

func (b *MemoryBroker) Close() error {
	return nil
}
