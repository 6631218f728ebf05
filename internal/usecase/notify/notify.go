// Package notify provides a typed, synchronous subscriber list for pushing
// state snapshots to renderers.
package notify

import (
	"log/slog"
	"sync"
)

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Hub delivers values to subscribers in subscription order on the
// publishing goroutine. Panicking subscribers are recovered and logged.
type Hub[T any] struct {
	mu     sync.RWMutex
	subs   []subscription[T]
	nextID uint64
	logger *slog.Logger
}

// New creates an empty hub. A nil logger falls back to slog.Default().
func New[T any](logger *slog.Logger) *Hub[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub[T]{logger: logger}
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is idempotent.
func (h *Hub[T]) Subscribe(fn func(T)) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscription[T]{id: id, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subs {
			if s.id == id {
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish calls every subscriber with v.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	subs := make([]subscription[T], len(h.subs))
	copy(subs, h.subs)
	h.mu.RUnlock()

	for _, s := range subs {
		h.deliver(s, v)
	}
}

func (h *Hub[T]) deliver(s subscription[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("state subscriber panicked", "subscriber", s.id, "panic", r)
		}
	}()
	s.fn(v)
}

// Clear removes every subscriber.
func (h *Hub[T]) Clear() {
	h.mu.Lock()
	h.subs = nil
	h.mu.Unlock()
}

// Len returns the number of subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
