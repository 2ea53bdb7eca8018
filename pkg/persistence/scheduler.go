package persistence

import "time"

// Scheduler supplies the clock and delayed callbacks used for flush timers
// and the janitor.
type Scheduler interface {
	Now() time.Time

	// AfterFunc runs f in its own goroutine once d has elapsed. The returned
	// stop function reports whether it prevented f from running.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// SystemScheduler is the wall clock.
type SystemScheduler struct{}

func (SystemScheduler) Now() time.Time { return time.Now() }

func (SystemScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
