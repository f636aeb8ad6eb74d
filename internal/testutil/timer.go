package testutil

import (
	"sync"
	"time"
)

// ManualTimer implements engine.DebounceTimer with explicit firing.
//
// The scheduler's debounce behavior depends on timer edges, so tests drive
// them by hand: Start arms the timer, Fire delivers the tick, Stop disarms.
// No wall-clock time is involved, which makes debounce tests instant and
// race-free.
//
// Thread-safety: all methods are safe for concurrent use. The scheduler
// calls Start/Stop from its loop goroutine while the test calls Fire.
type ManualTimer struct {
	mu     sync.Mutex
	c      chan time.Time
	armed  bool
	last   time.Duration
	starts int
}

// NewManualTimer creates a disarmed manual timer.
func NewManualTimer() *ManualTimer {
	return &ManualTimer{c: make(chan time.Time, 1)}
}

// Start arms (or re-arms) the timer and records the requested duration.
func (m *ManualTimer) Start(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armed = true
	m.last = d
	m.starts++
	m.drainLocked()
}

// Stop disarms the timer and discards any undelivered tick.
func (m *ManualTimer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armed = false
	m.drainLocked()
}

// Fired returns the tick channel.
func (m *ManualTimer) Fired() <-chan time.Time {
	return m.c
}

// Fire delivers one tick if the timer is armed. Returns false when the
// timer was not armed, so tests can assert that a cancelled debounce never
// fires.
func (m *ManualTimer) Fire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.armed {
		return false
	}
	m.armed = false
	m.c <- time.Now()
	return true
}

// Armed reports whether the timer is currently armed.
func (m *ManualTimer) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// Starts counts how many times Start was called. A debounce restart shows
// up as an extra Start without an intervening Fire.
func (m *ManualTimer) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// LastDuration returns the duration passed to the most recent Start.
func (m *ManualTimer) LastDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// drainLocked discards an undelivered tick. Caller holds mu.
func (m *ManualTimer) drainLocked() {
	select {
	case <-m.c:
	default:
	}
}
