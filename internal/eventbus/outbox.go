package eventbus

import "sync"

// Outbox buffers events produced during a tick until the owner drains
// them. Draining hands over the buffered events in push order.
type Outbox[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewOutbox creates an empty Outbox.
func NewOutbox[T any]() *Outbox[T] { return &Outbox[T]{} }

// Push appends an event.
func (o *Outbox[T]) Push(e T) {
	o.mu.Lock()
	o.items = append(o.items, e)
	o.mu.Unlock()
}

// Drain returns every buffered event and empties the outbox.
func (o *Outbox[T]) Drain() []T {
	o.mu.Lock()
	out := o.items
	o.items = nil
	o.mu.Unlock()
	return out
}

// Len returns the number of buffered events.
func (o *Outbox[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}
