// Package broadcast provides a publish/subscribe primitive with multiple
// independent readers. Each subscriber receives every message published after
// it attaches; a subscriber that stops draining its buffer is disconnected
// rather than allowed to stall the publisher.
package broadcast

import "sync"

// Hub fans messages out to any number of subscribers.
type Hub[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan T
	buffer int
}

// NewHub returns a hub whose subscriber channels hold up to buffer messages.
func NewHub[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub[T]{subs: make(map[int]chan T), buffer: buffer}
}

// Subscribe attaches a new reader. The returned func detaches it and closes
// the channel; it is safe to call more than once.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan T, h.buffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the message to every subscriber. A subscriber whose
// buffer is full is dropped and its channel closed, so it can observe the
// disconnect and resubscribe.
func (h *Hub[T]) Publish(msg T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		select {
		case sub <- msg:
		default:
			delete(h.subs, id)
			close(sub)
		}
	}
}

// SubscriberCount reports how many readers are attached.
func (h *Hub[T]) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub)
	}
}
