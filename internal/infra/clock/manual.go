package clock

import (
	"sync"
	"time"

	"telehaunt/internal/domain"
)

// Manual is a domain.Clock that only moves when Advance is called. Due
// callbacks run synchronously on the goroutine calling Advance, in due-time
// order (ties broken by scheduling order), so tests observe every tick
// deterministically.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers map[*manualTimer]struct{}
}

// NewManual returns a manual clock starting at start. A zero start uses a
// fixed reference instant.
func NewManual(start time.Time) *Manual {
	if start.IsZero() {
		start = time.Date(2024, 10, 31, 23, 0, 0, 0, time.UTC)
	}
	return &Manual{now: start, timers: make(map[*manualTimer]struct{})}
}

// Now returns the clock's current time.
func (c *Manual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run once the clock has advanced by d.
func (c *Manual) AfterFunc(d time.Duration, f func()) domain.Timer {
	return c.schedule(d, 0, f)
}

// Every schedules f to run each time the clock crosses a multiple of period.
func (c *Manual) Every(period time.Duration, f func()) domain.Timer {
	if period <= 0 {
		return &manualTimer{clock: c}
	}
	return c.schedule(period, period, f)
}

func (c *Manual) schedule(d, period time.Duration, f func()) *manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 {
		d = 0
	}
	c.seq++
	t := &manualTimer{clock: c, due: c.now.Add(d), period: period, f: f, seq: c.seq}
	c.timers[t] = struct{}{}
	return t
}

// Advance moves the clock forward by d, firing every callback that becomes
// due on the way. Callbacks may schedule or stop timers; new timers due
// within the window fire in the same call.
func (c *Manual) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		t := c.nextDueLocked(target)
		if t == nil {
			break
		}
		c.now = t.due
		if t.period > 0 {
			t.due = t.due.Add(t.period)
		} else {
			delete(c.timers, t)
		}
		f := t.f
		c.mu.Unlock()
		f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// Pending returns the number of scheduled, unstopped timers.
func (c *Manual) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *Manual) nextDueLocked(limit time.Time) *manualTimer {
	var next *manualTimer
	for t := range c.timers {
		if t.due.After(limit) {
			continue
		}
		if next == nil || t.due.Before(next.due) || (t.due.Equal(next.due) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

type manualTimer struct {
	clock  *Manual
	due    time.Time
	period time.Duration
	f      func()
	seq    uint64
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.timers[t]; !ok {
		return false
	}
	delete(t.clock.timers, t)
	return true
}
