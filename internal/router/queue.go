package router

import (
	"sync"

	"github.com/roach88/medibox/internal/store"
)

// changeQueue is a thread-safe unbounded FIFO of store changes.
//
// The store enqueues from its write path while holding its write lock, so
// Enqueue must never block. The route loop dequeues with TryDequeue and waits
// on Wait for more work.
type changeQueue struct {
	mu      sync.Mutex
	changes []store.Change
	closed  bool
	signal  chan struct{} // Signals availability (buffered, size 1)
}

func newChangeQueue() *changeQueue {
	return &changeQueue{
		changes: make([]store.Change, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a change to the back of the queue.
// Returns false if the queue is closed.
func (q *changeQueue) Enqueue(c store.Change) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.changes = append(q.changes, c)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes and returns the front change without blocking.
func (q *changeQueue) TryDequeue() (store.Change, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.changes) == 0 {
		return store.Change{}, false
	}

	c := q.changes[0]
	// Release references held by the backing array.
	q.changes[0] = store.Change{}
	if len(q.changes) == 1 {
		q.changes = q.changes[:0]
	} else {
		q.changes = q.changes[1:]
	}

	return c, true
}

// Wait returns a channel that signals when changes may be available.
// The channel is closed when the queue is closed.
func (q *changeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *changeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes)
}

// Drain empties the queue and returns how many changes were discarded.
func (q *changeQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.changes)
	for i := range q.changes {
		q.changes[i] = store.Change{}
	}
	q.changes = q.changes[:0]
	return n
}

// Closed reports whether Close has been called.
func (q *changeQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting changes and wakes any waiter.
func (q *changeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
