package engine

import (
	"sync"

	"github.com/roach88/flame/internal/ir"
)

// journalEvent is one record waiting to be written. Exactly one of the
// fields is set; flushed is a barrier closed once everything before it has
// been written.
type journalEvent struct {
	Intent  *ir.IntentRecord
	Outcome *ir.OutcomeRecord
	flushed chan struct{}
}

// eventQueue is a thread-safe FIFO feeding the journal writer.
//
// It is unbounded so a handler never blocks on a slow disk. The signal
// channel lets the writer wait with select instead of spinning.
type eventQueue struct {
	mu     sync.Mutex
	events []journalEvent
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]journalEvent, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e journalEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (journalEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return journalEvent{}, false
	}
	e := q.events[0]

	// Clear the slot so the backing array does not pin records.
	q.events[0] = journalEvent{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available.
// It is closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops further enqueues and wakes the writer. Events already queued
// can still be dequeued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
