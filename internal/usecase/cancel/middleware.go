package cancel

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"telehaunt/internal/domain"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures a circuit breaker guarding an operation.
type BreakerConfig struct {
	// Name identifies the breaker in logs.
	Name string
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration
	// Ignore reports errors that say nothing about the guarded dependency's
	// health, such as a missing item. They do not count as failures.
	Ignore func(error) bool
}

// NewBreaker builds a circuit breaker whose failure accounting ignores
// cancellations: a superseded request says nothing about the health of the
// thing it was calling.
func NewBreaker[T any](cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[T] {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil || domain.IsCancelled(err) {
				return true
			}
			return cfg.Ignore != nil && cfg.Ignore(err)
		},
	})
}

// WithBreaker runs op through cb. An open circuit fails fast with
// domain.ErrCircuitOpen; errors from op pass through unchanged.
func WithBreaker[T any](cb *gobreaker.CircuitBreaker[T], op Op[T]) Op[T] {
	return func(ctx context.Context) (T, error) {
		v, err := cb.Execute(func() (T, error) {
			return op(ctx)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return v, domain.NewDomainError("cancel.WithBreaker", domain.ErrCircuitOpen, cb.Name())
		}
		return v, err
	}
}

// WithLimiter waits for lim before running op. The wait observes ctx, so a
// cancelled task never consumes a slot after cancellation.
func WithLimiter[T any](lim *rate.Limiter, op Op[T]) Op[T] {
	return func(ctx context.Context) (T, error) {
		if err := lim.Wait(ctx); err != nil {
			var zero T
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			return zero, domain.NewDomainError("cancel.WithLimiter", domain.ErrRateLimit, err.Error())
		}
		return op(ctx)
	}
}
