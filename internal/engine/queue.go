package engine

import "sync"

// workQueue is a thread-safe FIFO queue of entries.
//
// The queue is unbounded so barrier callbacks and composite helpers can
// enqueue arbitrarily many follow-on calls without blocking.
//
// Thread-safety is provided for external enqueuing while the session's
// drain loop dequeues. In practice, most usage is single-threaded.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the drain loop.
type workQueue struct {
	mu      sync.Mutex
	entries []*Entry
	closed  bool
	signal  chan struct{} // Signals entry availability (buffered, size 1)
}

// newWorkQueue creates an empty queue.
func newWorkQueue() *workQueue {
	return &workQueue{
		entries: make([]*Entry, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds an entry to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *workQueue) Enqueue(e *Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.entries = append(q.entries, e)

	// Signal availability (non-blocking - buffer of 1 coalesces signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (nil, false) if the queue is empty.
func (q *workQueue) TryDequeue() (*Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil, false
	}

	e := q.entries[0]

	// Nil out the slot so the backing array does not retain the Entry.
	q.entries[0] = nil

	if len(q.entries) == 1 {
		// Last element - reset to empty slice with original capacity
		q.entries = q.entries[:0]
	} else {
		q.entries = q.entries[1:]
	}

	return e, true
}

// Wait returns a channel that signals when entries may be available.
// Use with select for context-aware waiting.
func (q *workQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close signals that no more entries will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *workQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
