package engine

import "sync/atomic"

// Clock is a monotonic logical counter for compile runs.
//
// Every compile the scheduler launches is stamped with a strictly
// increasing sequence number. The number never gates correctness (that is
// the fingerprint recheck's job); it makes the single-flight property
// auditable: logs and tests can assert exactly which compile published and
// which was discarded as stale.
//
// Thread-safety: safe for concurrent use, though the single-writer loop is
// normally the only caller of Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0; the first Next() returns 1.
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
