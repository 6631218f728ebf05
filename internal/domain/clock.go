package domain

import "time"

// Timer is a handle to a scheduled callback. Stop prevents any further
// invocation and reports whether the timer was still active.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so timer-driven state machines can run against a
// real event loop or a manually advanced one in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// AfterFunc calls f once after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
	// Every calls f once per period until the returned Timer is stopped.
	// Invocations for one ticker never overlap.
	Every(period time.Duration, f func()) Timer
}
