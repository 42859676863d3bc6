// Package events provides the typed in-process event bus that components
// receive by injection, plus a forwarder that mirrors bus events to NATS.
package events

import (
	"context"
	"sync"
)

// Handler receives published events.
type Handler[E any] func(ctx context.Context, event E)

// Bus fans events of type E out to its subscribers. Handlers run
// synchronously on the publishing goroutine, in subscription order. A nil
// *Bus accepts publishes and drops them.
type Bus[E any] struct {
	mu       sync.RWMutex
	handlers []Handler[E]
}

// NewBus returns a bus without subscribers.
func NewBus[E any]() *Bus[E] { return &Bus[E]{} }

// Subscribe registers h. Subscriptions are expected at composition time.
func (b *Bus[E]) Subscribe(h Handler[E]) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers event to every subscriber. The subscriber list is
// snapshotted first so handlers may subscribe without deadlocking.
func (b *Bus[E]) Publish(ctx context.Context, event E) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]Handler[E](nil), b.handlers...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, event)
	}
}

// Subscribers returns the number of registered handlers.
func (b *Bus[E]) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
