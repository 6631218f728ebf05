// Package clock provides domain.Clock implementations: System for real
// wall-clock timers and Manual for deterministic tests.
package clock

import (
	"sync"
	"time"

	"telehaunt/internal/domain"
)

// System is a domain.Clock backed by the runtime timer wheel.
type System struct{}

// NewSystem returns the wall clock.
func NewSystem() System { return System{} }

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// AfterFunc schedules f on its own goroutine after d.
func (System) AfterFunc(d time.Duration, f func()) domain.Timer {
	return time.AfterFunc(d, f)
}

// Every runs f on a dedicated goroutine once per period. A non-positive
// period returns an already stopped ticker.
func (System) Every(period time.Duration, f func()) domain.Timer {
	t := &ticker{stop: make(chan struct{})}
	if period <= 0 {
		t.Stop()
		return t
	}
	tk := time.NewTicker(period)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-tk.C:
				// Stop may have raced with the tick.
				select {
				case <-t.stop:
					return
				default:
				}
				f()
			}
		}
	}()
	return t
}

type ticker struct {
	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
}

func (t *ticker) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	close(t.stop)
	return true
}
