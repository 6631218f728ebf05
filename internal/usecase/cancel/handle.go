// Package cancel provides cancellable task handles, combinators over them,
// and a key-scoped registry that keeps at most one live operation per key.
//
// A Handle settles exactly once. Cancelling a handle settles it immediately
// with domain.ErrCancelled even if the underlying operation is still
// running; the operation is detached and observes cancellation through its
// context. Later completions never overwrite a settled outcome.
package cancel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"telehaunt/internal/domain"
)

// Op is a unit of cancellable work. Implementations should return promptly
// once ctx is done, but are not required to.
type Op[T any] func(ctx context.Context) (T, error)

// Handle is the eventual outcome of an operation plus the means to cancel it.
type Handle[T any] struct {
	id   string
	done chan struct{}

	mu        sync.Mutex
	settled   bool
	cancelled bool
	value     T
	err       error
	stop      context.CancelCauseFunc

	onCancel func()
}

func newHandle[T any](stop context.CancelCauseFunc) *Handle[T] {
	return &Handle[T]{done: make(chan struct{}), stop: stop}
}

// ID returns the task identifier assigned by a Registry, or "".
func (h *Handle[T]) ID() string { return h.id }

// Done is closed once the handle has settled.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Result blocks until the handle settles or ctx is done.
func (h *Handle[T]) Result(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.outcome()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the handle settles.
func (h *Handle[T]) Wait() (T, error) {
	<-h.done
	return h.outcome()
}

// Settled reports whether the handle has an outcome.
func (h *Handle[T]) Settled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.settled
}

// IsCancelled reports whether the handle settled through cancellation.
func (h *Handle[T]) IsCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Cancel settles the handle with domain.ErrCancelled and signals the
// operation to stop. Cancelling a settled handle leaves its outcome alone.
// Cancel is idempotent and safe for concurrent use.
func (h *Handle[T]) Cancel() {
	if !h.abort(domain.ErrCancelled) {
		return
	}
	// Only the call that settled the handle gets here.
	if h.onCancel != nil {
		h.onCancel()
	}
}

func (h *Handle[T]) outcome() (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value, h.err
}

func (h *Handle[T]) settle(v T, err error) bool {
	return h.finish(v, err, false)
}

// abort settles the handle as cancelled with cause. It never runs the
// onCancel hook, so it is safe to call while holding a registry lock.
func (h *Handle[T]) abort(cause error) bool {
	var zero T
	return h.finish(zero, cause, true)
}

func (h *Handle[T]) finish(v T, err error, cancelled bool) bool {
	h.mu.Lock()
	if h.settled {
		h.mu.Unlock()
		return false
	}
	h.settled = true
	h.cancelled = cancelled
	h.value = v
	h.err = err
	stop := h.stop
	h.stop = nil
	h.mu.Unlock()

	close(h.done)
	if stop != nil {
		stop(err)
	}
	return true
}

// setStop installs the release function, running it at once if the handle
// already settled.
func (h *Handle[T]) setStop(stop context.CancelCauseFunc) {
	h.mu.Lock()
	if h.settled {
		h.mu.Unlock()
		stop(nil)
		return
	}
	h.stop = stop
	h.mu.Unlock()
}

// spawn runs op on its own goroutine. beforeSettle runs before the handle
// settles on every path, including a parent abort that does not wait for op
// to return, so observers woken by Done see its effects. It may run twice
// and must be idempotent.
func spawn[T any](parent, ctx context.Context, h *Handle[T], op Op[T], beforeSettle func()) {
	stopWatch := context.AfterFunc(parent, func() {
		if beforeSettle != nil && !h.Settled() {
			beforeSettle()
		}
		h.abort(cancelCause(parent))
	})
	go func() {
		defer stopWatch()
		v, err := call(ctx, op)
		if beforeSettle != nil {
			beforeSettle()
		}
		if ctx.Err() != nil {
			h.abort(cancelCause(ctx))
			return
		}
		h.settle(v, err)
	}()
}

func call[T any](ctx context.Context, op Op[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cancel: operation panicked: %v", r)
		}
	}()
	return op(ctx)
}

// cancelCause converts a done context into a cancellation outcome that
// matches domain.ErrCancelled and keeps the original cause in the chain.
func cancelCause(ctx context.Context) error {
	cause := context.Cause(ctx)
	switch {
	case cause == nil:
		return domain.ErrCancelled
	case errors.Is(cause, domain.ErrCancelled):
		return cause
	default:
		return fmt.Errorf("%w: %w", domain.ErrCancelled, cause)
	}
}
