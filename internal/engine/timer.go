package engine

import "time"

// DebounceTimer is the single deferred-firing timer behind the Debouncing
// state. Abstracted so tests can drive the state machine deterministically
// with a manually fired timer.
//
// Contract: Start arms (or re-arms) the timer; Stop disarms it; Fired
// returns a stable channel that delivers at most one value per Start.
// All calls come from the Run loop goroutine.
type DebounceTimer interface {
	Start(d time.Duration)
	Stop()
	Fired() <-chan time.Time
}

// realTimer adapts time.Timer to DebounceTimer with the usual stop-and-drain
// dance so a stale fire can never leak into the next arming.
type realTimer struct {
	t *time.Timer
}

func newRealTimer() *realTimer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return &realTimer{t: t}
}

func (r *realTimer) Start(d time.Duration) {
	r.drain()
	r.t.Reset(d)
}

func (r *realTimer) Stop() {
	r.drain()
}

func (r *realTimer) drain() {
	if !r.t.Stop() {
		select {
		case <-r.t.C:
		default:
		}
	}
}

func (r *realTimer) Fired() <-chan time.Time {
	return r.t.C
}
