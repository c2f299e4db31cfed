package engine

import (
	"sync/atomic"
	"time"
)

// TimeSource stamps created entities and timeline events.
// Implemented by SystemTime (production) and testutil.StepClock (tests).
type TimeSource interface {
	Now() time.Time
}

// SystemTime reads the wall clock in UTC.
type SystemTime struct{}

// Now implements TimeSource.
func (SystemTime) Now() time.Time { return time.Now().UTC() }

// Clock is a monotonic logical clock counting mutations applied by the Run
// loop. Every applied mutation is stamped with a strictly increasing seq.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// However, the Engine's single-writer design means only the Run goroutine
// calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
