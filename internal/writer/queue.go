package writer

import (
	"sync"
)

// Queue is a thread-safe FIFO ring that doubles its capacity once it is
// 70% full, up to a hard limit. Pushes beyond the limit are dropped.
type Queue[T any] struct {
	mu     sync.Mutex
	ring   []T
	head   int // next read
	count  int
	limit  int
	closed bool

	pushed  int64
	popped  int64
	dropped int64
	grows   int
}

// NewQueue creates a queue with the given initial capacity that never
// holds more than limit items. A limit below initial is raised to initial.
func NewQueue[T any](initial, limit int) *Queue[T] {
	if initial < 1 {
		initial = 1
	}
	if limit < initial {
		limit = initial
	}
	return &Queue[T]{
		ring:  make([]T, initial),
		limit: limit,
	}
}

// Push appends item. It returns false when the queue is closed or full.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if q.count+1 >= max(1, len(q.ring)*70/100) && len(q.ring) < q.limit {
		q.resize(min(len(q.ring)*2, q.limit))
	}
	if q.count == len(q.ring) {
		q.dropped++
		return false
	}

	q.ring[(q.head+q.count)%len(q.ring)] = item
	q.count++
	q.pushed++
	return true
}

// Pop removes the oldest item without blocking.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.count == 0 {
		return zero, false
	}

	item := q.ring[q.head]
	q.ring[q.head] = zero
	q.head = (q.head + 1) % len(q.ring)
	q.count--
	q.popped++
	return item, true
}

// Drain removes up to n items (all when n <= 0), oldest first.
func (q *Queue[T]) Drain(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}
	if n <= 0 || n > q.count {
		n = q.count
	}

	var zero T
	out := make([]T, n)
	for i := range out {
		out[i] = q.ring[q.head]
		q.ring[q.head] = zero
		q.head = (q.head + 1) % len(q.ring)
	}
	q.count -= n
	q.popped += int64(n)
	return out
}

// Close stops accepting pushes. Items already queued can still be drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the current ring size.
func (q *Queue[T]) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ring)
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Len     int
	Cap     int
	Limit   int
	Pushed  int64
	Popped  int64
	Dropped int64
	Grows   int
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Len:     q.count,
		Cap:     len(q.ring),
		Limit:   q.limit,
		Pushed:  q.pushed,
		Popped:  q.popped,
		Dropped: q.dropped,
		Grows:   q.grows,
	}
}

// resize moves the queued items to a ring of size n. Must be called with
// the lock held.
func (q *Queue[T]) resize(n int) {
	ring := make([]T, n)
	if q.head+q.count <= len(q.ring) {
		copy(ring, q.ring[q.head:q.head+q.count])
	} else {
		k := copy(ring, q.ring[q.head:])
		copy(ring[k:], q.ring[:q.count-k])
	}
	q.ring = ring
	q.head = 0
	q.grows++
}
