package queue

import (
	"sync"
)

// DrainQueue is a FIFO queue that is safe for concurrent use. Items are
// appended one at a time and removed all at once: DrainAll atomically takes a
// snapshot of every queued item and leaves the queue empty. Items added while
// a drain is in progress are kept for the next drain.
type DrainQueue[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewDrainQueue creates a new, empty DrainQueue.
func NewDrainQueue[T any]() *DrainQueue[T] {
	return &DrainQueue[T]{}
}

// Enqueue appends an item to the tail of the queue.
func (q *DrainQueue[T]) Enqueue(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, item)
}

// DrainAll removes and returns every queued item in the order they were
// enqueued. A nil slice is returned if the queue is empty.
func (q *DrainQueue[T]) DrainAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}

	// Hand the backing slice to the caller and start over with a fresh
	// one, so later enqueues can't alias the returned items.
	items := q.items
	q.items = nil

	return items
}

// IsEmpty returns true if no item is queued. The result is advisory only, as
// it may be stale as soon as it's returned.
func (q *DrainQueue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of queued items. Like IsEmpty, the result is
// advisory only.
func (q *DrainQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
