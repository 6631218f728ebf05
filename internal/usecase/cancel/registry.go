package cancel

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"telehaunt/internal/domain"
	"telehaunt/internal/infra/tracer"
)

// Entry describes a live registry entry.
type Entry struct {
	Key     string
	ID      string
	Started time.Time
}

type entry struct {
	id      string
	started time.Time
	abort   func(cause error) bool
}

// Registry deduplicates work by key: at most one live operation exists per
// key. Submitting under a key that already has a live entry cancels and
// evicts that entry before the new one is installed, under one lock, so
// there is never a moment with two live tokens for the same key. Entries
// evict themselves when their operation settles.
//
// A Registry is an explicit instance owned by the composition root; use
// Reset between tests.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	entropy *ulid.MonotonicEntropy

	clock  domain.Clock
	bus    domain.EventBus
	logger *slog.Logger
}

// NewRegistry creates an empty registry. bus may be nil.
func NewRegistry(clock domain.Clock, bus domain.EventBus, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	seed := clock.Now().UnixNano()
	return &Registry{
		entries: make(map[string]*entry),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		clock:   clock,
		bus:     bus,
		logger:  logger,
	}
}

// Submit starts op under key and returns its handle. Any live entry for key
// is cancelled first; its handle settles with an error matching
// domain.ErrCancelled. Errors returned by op reach the handle unchanged.
func Submit[T any](ctx context.Context, r *Registry, key string, op Op[T]) (*Handle[T], error) {
	if strings.TrimSpace(key) == "" {
		return nil, domain.NewSubSystemError("registry", "Registry.Submit", domain.ErrInvalidInput, "empty key")
	}
	if op == nil {
		return nil, domain.NewSubSystemError("registry", "Registry.Submit", domain.ErrInvalidInput, "nil operation for "+key)
	}

	spanCtx, span := tracer.StartSpan(ctx, "registry.submit",
		trace.WithAttributes(tracer.StringAttr("registry.key", key)))

	opCtx, stop := context.WithCancelCause(spanCtx)
	h := newHandle[T](stop)

	r.mu.Lock()
	id := r.newIDLocked()
	h.id = id
	old, superseded := r.entries[key]
	if superseded {
		delete(r.entries, key)
		old.abort(domain.NewSubSystemError("registry", "Registry.Submit", domain.ErrCancelled, "superseded: "+key))
	}
	r.entries[key] = &entry{id: id, started: r.clock.Now(), abort: h.abort}
	// The spawned goroutine may evict first once op sees the cancellation,
	// so the event does not depend on who evicted.
	h.onCancel = func() {
		r.evict(key, id)
		r.logger.Debug("task cancelled", "key", key, "task_id", id)
		domain.PublishEvent(ctx, r.bus, domain.EventTaskCancelled, key, map[string]string{"task_id": id})
	}
	r.mu.Unlock()

	span.SetAttributes(tracer.StringAttr("registry.task_id", id))
	if superseded {
		r.logger.Debug("task superseded", "key", key, "task_id", old.id, "by", id)
		domain.PublishEvent(ctx, r.bus, domain.EventTaskSuperseded, key,
			map[string]string{"task_id": old.id, "superseded_by": id})
	}

	spawn(spanCtx, opCtx, h, op, func() { r.evict(key, id) })
	go endSpan(span, h)
	return h, nil
}

func endSpan[T any](span trace.Span, h *Handle[T]) {
	<-h.Done()
	if _, err := h.outcome(); err != nil {
		tracer.RecordError(span, err)
	} else {
		tracer.SetOK(span)
	}
	span.End()
}

// Cancel cancels and evicts the entry for key. It reports whether a live
// entry existed.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	e, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
		e.abort(domain.NewSubSystemError("registry", "Registry.Cancel", domain.ErrCancelled, key))
	}
	r.mu.Unlock()

	if ok {
		r.logger.Debug("task cancelled", "key", key, "task_id", e.id)
		domain.PublishEvent(context.Background(), r.bus, domain.EventTaskCancelled, key, map[string]string{"task_id": e.id})
	}
	return ok
}

// CancelAll cancels and evicts every entry and returns how many there were.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	evicted := make(map[string]*entry, len(r.entries))
	for key, e := range r.entries {
		e.abort(domain.NewSubSystemError("registry", "Registry.CancelAll", domain.ErrCancelled, key))
		evicted[key] = e
	}
	clear(r.entries)
	r.mu.Unlock()

	for key, e := range evicted {
		domain.PublishEvent(context.Background(), r.bus, domain.EventTaskCancelled, key, map[string]string{"task_id": e.id})
	}
	if len(evicted) > 0 {
		r.logger.Debug("all tasks cancelled", "count", len(evicted))
	}
	return len(evicted)
}

// Reset cancels everything, leaving the registry empty. Intended for
// shutdown and test isolation.
func (r *Registry) Reset() {
	r.CancelAll()
}

// IsActive reports whether key has a live entry.
func (r *Registry) IsActive(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

// ActiveCount returns the number of live entries.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns the live entries sorted by key.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	out := make([]Entry, 0, len(r.entries))
	for key, e := range r.entries {
		out = append(out, Entry{Key: key, ID: e.id, Started: e.started})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// evict removes key only if it still belongs to task id.
func (r *Registry) evict(key, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok && e.id == id {
		delete(r.entries, key)
		return true
	}
	return false
}

func (r *Registry) newIDLocked() string {
	return ulid.MustNew(ulid.Timestamp(r.clock.Now()), r.entropy).String()
}
