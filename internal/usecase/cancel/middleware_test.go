package cancel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"telehaunt/internal/domain"
)

func TestWithBreakerOpensAfterFailures(t *testing.T) {
	cb := NewBreaker[int](BreakerConfig{Name: "pages", MaxFailures: 2}, nil)
	boom := errors.New("boom")
	calls := 0
	op := WithBreaker(cb, func(context.Context) (int, error) {
		calls++
		return 0, boom
	})

	for range 2 {
		_, err := op(context.Background())
		assert.Same(t, boom, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := op(context.Background())
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.Equal(t, domain.CodeCircuitOpen, domain.ErrorCodeOf(err))
	assert.Equal(t, 2, calls, "open circuit must not call the operation")
}

func TestWithBreakerIgnoresCancellation(t *testing.T) {
	cb := NewBreaker[int](BreakerConfig{Name: "pages", MaxFailures: 1}, nil)
	op := WithBreaker(cb, func(context.Context) (int, error) {
		return 0, domain.ErrCancelled
	})

	for range 3 {
		_, err := op(context.Background())
		assert.ErrorIs(t, err, domain.ErrCancelled)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestWithBreakerIgnoresConfiguredErrors(t *testing.T) {
	cb := NewBreaker[int](BreakerConfig{
		Name:        "pages",
		MaxFailures: 1,
		Ignore:      func(err error) bool { return errors.Is(err, domain.ErrNotFound) },
	}, nil)
	op := WithBreaker(cb, func(context.Context) (int, error) {
		return 0, domain.NewSubSystemError("pages", "Source.Fetch", domain.ErrNotFound, "page 404")
	})

	for range 3 {
		_, err := op(context.Background())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestWithBreakerPassesValues(t *testing.T) {
	cb := NewBreaker[string](BreakerConfig{}, nil)
	op := WithBreaker(cb, func(context.Context) (string, error) { return "ok", nil })

	v, err := op(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestWithLimiterAllowsBurst(t *testing.T) {
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	op := WithLimiter(lim, func(context.Context) (int, error) { return 1, nil })

	v, err := op(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestWithLimiterExceedsDeadline(t *testing.T) {
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	op := WithLimiter(lim, func(context.Context) (int, error) { return 1, nil })
	_, err := op(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = op(ctx)
	assert.ErrorIs(t, err, domain.ErrRateLimit)
}

func TestWithLimiterCancelledContext(t *testing.T) {
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	called := false
	op := WithLimiter(lim, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := op(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMiddlewareUnderRegistry(t *testing.T) {
	r, _ := newTestRegistry()
	cb := NewBreaker[string](BreakerConfig{Name: "pages"}, nil)
	lim := rate.NewLimiter(rate.Inf, 1)
	release := make(chan struct{})
	defer close(release)

	op := WithLimiter(lim, WithBreaker(cb, blockingOp("page", release, nil)))
	a, err := Submit(context.Background(), r, "page:100", op)
	require.NoError(t, err)
	b, err := Submit(context.Background(), r, "page:100", WithLimiter(lim, WithBreaker(cb, func(context.Context) (string, error) {
		return "fresh", nil
	})))
	require.NoError(t, err)

	_, err = a.Wait()
	assert.ErrorIs(t, err, domain.ErrCancelled)
	v, err := waitFor(t, b)
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
