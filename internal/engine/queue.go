package engine

import (
	"sync"

	"github.com/scenecast/scenecast/internal/scene"
)

// EventType distinguishes scheduler input events.
type EventType int

const (
	// EventTypeUpdate carries a fresh scene/audio snapshot.
	EventTypeUpdate EventType = iota + 1
	// EventTypeFlush is the explicit save signal: skip the debounce.
	EventTypeFlush
)

// Event is one scheduler input.
type Event struct {
	Type     EventType
	Snapshot scene.Snapshot
}

// eventQueue is a thread-safe FIFO queue for scheduler inputs.
//
// The queue is unbounded: edit bursts must never block the caller (the UI
// thread notifying us). Depth-1 coalescing happens in the state machine,
// not here - the queue preserves arrival order so the fingerprint that is
// newest when the loop catches up is genuinely the newest edit.
//
// The signal channel (buffered, size 1) coalesces wakeups for the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	// Nil out the slot so the snapshot's descriptors don't linger in the
	// backing array after dequeue.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available.
// The channel closes when the queue closes, waking all waiters.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Closed reports whether Close has been called. A wakeup with an empty
// queue is only a shutdown when the queue is actually closed; otherwise it
// is a stale signal left over from an already-drained enqueue.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close marks the queue closed and wakes waiters.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
