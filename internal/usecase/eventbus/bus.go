// Package eventbus fans lifecycle events out to asynchronous subscribers.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"telehaunt/internal/domain"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

type delivery struct {
	ctx   context.Context
	event domain.Event
}

type subscription struct {
	id      uint64
	filter  domain.EventType // "" receives every event
	handler domain.EventHandler
	queue   chan delivery
}

// Bus is an in-process, goroutine-safe event bus. Every subscriber owns a
// queue drained by its own goroutine, so handlers never block publishers and
// each subscriber sees events in publish order. When a queue is full the
// event is dropped for that subscriber.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	nextID  atomic.Uint64
	dropped atomic.Uint64
	buffer  int
	logger  *slog.Logger
	wg      sync.WaitGroup
	closed  bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// New creates an event bus. A nil logger falls back to slog.Default().
func New(logger *slog.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{buffer: DefaultBuffer, logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish queues event for every matching subscriber without blocking.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.filter != "" && sub.filter != event.Type {
			continue
		}
		select {
		case sub.queue <- delivery{ctx: ctx, event: event}:
		default:
			b.dropped.Add(1)
			b.logger.Warn("event dropped, subscriber queue full",
				"event", string(event.Type),
				"subscriber", sub.id,
			)
		}
	}
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	return b.add(eventType, handler)
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	return b.add("", handler)
}

func (b *Bus) add(filter domain.EventType, handler domain.EventHandler) func() {
	sub := &subscription{
		id:      b.nextID.Add(1),
		filter:  filter,
		handler: handler,
		queue:   make(chan delivery, b.buffer),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.subs = append(b.subs, sub)
	b.wg.Add(1)
	b.mu.Unlock()

	go b.drain(sub)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub) })
	}
}

func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			close(sub.queue)
			return
		}
	}
}

func (b *Bus) drain(sub *subscription) {
	defer b.wg.Done()
	for d := range sub.queue {
		b.deliver(sub, d)
	}
}

func (b *Bus) deliver(sub *subscription, d delivery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", string(d.event.Type),
				"subscriber", sub.id,
				"panic", r,
			)
		}
	}()
	sub.handler(d.ctx, d.event)
}

// Dropped returns how many deliveries were discarded because a subscriber's
// queue was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close prevents new publishes, lets every subscriber drain its queue and
// waits for them. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.queue)
	}
	b.subs = nil
	b.mu.Unlock()

	b.wg.Wait()
}

// LogHandler returns a handler that writes every event to logger at Debug.
func LogHandler(logger *slog.Logger) domain.EventHandler {
	return func(ctx context.Context, e domain.Event) {
		attrs := []any{"event", string(e.Type)}
		if e.Key != "" {
			attrs = append(attrs, "key", e.Key)
		}
		if len(e.Payload) > 0 {
			attrs = append(attrs, "payload", string(e.Payload))
		}
		logger.DebugContext(ctx, "lifecycle event", attrs...)
	}
}
