package cancel

import (
	"context"
	"errors"
	"slices"
	"time"

	"telehaunt/internal/domain"
)

// Wrap runs op on its own goroutine and returns a cancellable handle for it.
// The handle also settles as cancelled when ctx is done.
func Wrap[T any](ctx context.Context, op Op[T]) *Handle[T] {
	if op == nil {
		h := newHandle[T](nil)
		var zero T
		h.settle(zero, domain.NewDomainError("cancel.Wrap", domain.ErrInvalidInput, "nil operation"))
		return h
	}
	opCtx, stop := context.WithCancelCause(ctx)
	h := newHandle[T](stop)
	spawn(ctx, opCtx, h, op, nil)
	return h
}

// Resolved returns a handle already settled with (v, err).
func Resolved[T any](v T, err error) *Handle[T] {
	h := newHandle[T](nil)
	h.settle(v, err)
	return h
}

// Race settles with the outcome of the first member to settle, success or
// failure. A member that is cancelled on its own is dropped from contention
// without affecting its siblings; if every member is cancelled that way the
// race settles as cancelled. Cancelling the race cancels every member.
// Members that lose the race keep running.
func Race[T any](handles ...*Handle[T]) *Handle[T] {
	members := slices.Clone(handles)
	agg := newHandle[T](nil)
	agg.onCancel = func() {
		for _, m := range members {
			m.Cancel()
		}
	}

	if len(members) == 0 {
		var zero T
		agg.settle(zero, domain.NewDomainError("cancel.Race", domain.ErrInvalidInput, "no handles"))
		return agg
	}

	// Members that already settled win in argument order.
	pending := 0
	for _, m := range members {
		if !m.Settled() {
			pending++
			continue
		}
		if m.IsCancelled() {
			continue
		}
		v, err := m.outcome()
		agg.settle(v, err)
		return agg
	}
	if pending == 0 {
		agg.abort(domain.NewDomainError("cancel.Race", domain.ErrCancelled, "every member was cancelled"))
		return agg
	}

	settled := make(chan *Handle[T], len(members))
	for _, m := range members {
		if m.Settled() {
			continue
		}
		go func() {
			select {
			case <-m.Done():
				settled <- m
			case <-agg.done:
			}
		}()
	}

	go func() {
		for remaining := pending; remaining > 0; remaining-- {
			select {
			case m := <-settled:
				if m.IsCancelled() {
					continue
				}
				v, err := m.outcome()
				agg.settle(v, err)
				return
			case <-agg.done:
				return
			}
		}
		agg.abort(domain.NewDomainError("cancel.Race", domain.ErrCancelled, "every member was cancelled"))
	}()
	return agg
}

// All settles with every member's value, in argument order, once all of
// them succeed. The first failure settles the aggregate with that error; a
// member cancelled on its own counts as a failure. Cancelling the aggregate
// cancels every member.
func All[T any](handles ...*Handle[T]) *Handle[[]T] {
	members := slices.Clone(handles)
	agg := newHandle[[]T](nil)
	agg.onCancel = func() {
		for _, m := range members {
			m.Cancel()
		}
	}

	if len(members) == 0 {
		agg.settle([]T{}, nil)
		return agg
	}

	indexes := make(chan int, len(members))
	for i, m := range members {
		go func() {
			select {
			case <-m.Done():
				indexes <- i
			case <-agg.done:
			}
		}()
	}

	go func() {
		values := make([]T, len(members))
		for remaining := len(members); remaining > 0; remaining-- {
			select {
			case i := <-indexes:
				v, err := members[i].outcome()
				if err != nil {
					agg.settle(nil, err)
					return
				}
				values[i] = v
			case <-agg.done:
				return
			}
		}
		agg.settle(values, nil)
	}()
	return agg
}

// After returns a handle that settles with (v, err) once d has elapsed on
// clock. Cancelling it stops the timer.
func After[T any](ctx context.Context, clock domain.Clock, d time.Duration, v T, err error) *Handle[T] {
	h := newHandle[T](nil)
	if ctx.Err() != nil {
		h.abort(cancelCause(ctx))
		return h
	}
	timer := clock.AfterFunc(d, func() { h.settle(v, err) })
	stopWatch := context.AfterFunc(ctx, func() { h.abort(cancelCause(ctx)) })
	h.setStop(func(error) {
		timer.Stop()
		stopWatch()
	})
	return h
}

// Sleep is a cancellable timer future that resolves after d.
func Sleep(ctx context.Context, clock domain.Clock, d time.Duration) *Handle[struct{}] {
	return After(ctx, clock, d, struct{}{}, nil)
}

// Timeout races h against a timer of length d. If the timer wins, the
// result fails with domain.ErrTimeout and h is cancelled; otherwise the
// timer is cancelled. If h is cancelled on its own the result settles as
// cancelled at once. Cancelling the result cancels both.
func Timeout[T any](clock domain.Clock, h *Handle[T], d time.Duration) *Handle[T] {
	var zero T
	timeoutErr := domain.NewDomainError("cancel.Timeout", domain.ErrTimeout, d.String())
	timer := After(context.Background(), clock, d, zero, error(timeoutErr))
	agg := Race(h, timer)
	go func() {
		select {
		case <-h.Done():
			if h.IsCancelled() {
				_, err := h.outcome()
				agg.abort(err)
			}
		case <-agg.Done():
		}
	}()
	go func() {
		<-agg.Done()
		if _, err := agg.outcome(); errors.Is(err, timeoutErr) {
			h.Cancel()
			return
		}
		timer.Cancel()
	}()
	return agg
}
