package queue

import (
	"errors"
	"sync"
)

var (
	ErrClosed = errors.New("queue is closed")
)

// Queue is a concurrency-safe FIFO queue meant for many producers and a single consumer.
//
// A Queue may be given a capacity to apply backpressure to producers.
// With a capacity of 0 the Queue grows as needed.
type Queue[T any] struct {
	mux      sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	values   []T
	capacity int
	closed   bool
}

// NewQueue creates a [Queue] with an optional capacity.
// Passing a negative capacity will panic.
func NewQueue[T any](capacity ...int) *Queue[T] {
	q := new(Queue[T])
	if len(capacity) > 0 {
		if capacity[0] < 0 {
			panic("queue capacity must be >= 0")
		}
		q.capacity = capacity[0]
		if q.capacity > 0 {
			q.values = make([]T, 0, q.capacity)
		}
	}
	q.notEmpty = sync.NewCond(&q.mux)
	q.notFull = sync.NewCond(&q.mux)
	return q
}

// Len gets the length of the Queue
func (q *Queue[T]) Len() int {
	q.mux.Lock()
	defer q.mux.Unlock()
	return len(q.values)
}

// PushFunc pushes the value produced by build to the tail of the Queue.
// The value is built while the Queue is locked, which allows stamping it with something that must agree with queue order, like a sequence number.
// The build function is not called if the Queue is closed, and it must not call back into the Queue.
//
// If the Queue is bounded and full, then PushFunc blocks until there's room or the Queue is closed.
// [ErrClosed] is returned if the Queue is closed.
func (q *Queue[T]) PushFunc(build func() T) error {
	q.mux.Lock()
	defer q.mux.Unlock()
	for q.capacity > 0 && len(q.values) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}
	q.values = append(q.values, build())
	q.notEmpty.Signal()
	return nil
}

// Pop will pop an item from the head of the Queue, waiting for one if the Queue is empty.
// False is returned once the Queue is closed and no values remain.
func (q *Queue[T]) Pop() (T, bool) {
	q.mux.Lock()
	defer q.mux.Unlock()
	for len(q.values) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	return q.pop()
}

// Must be called with the lock held.
func (q *Queue[T]) pop() (T, bool) {
	var mt T
	if len(q.values) == 0 {
		return mt, false
	}
	val := q.values[0]
	q.values[0] = mt
	q.values = q.values[1:]
	q.notFull.Signal()
	return val, true
}

// Close stops the Queue from accepting new values.
// Values already queued may still be consumed with [Queue.Pop].
// Blocked producers and consumers are released.
// This is safe to call multiple times.
func (q *Queue[T]) Close() {
	q.mux.Lock()
	defer q.mux.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Drain removes all queued values and returns how many were removed.
func (q *Queue[T]) Drain() int {
	q.mux.Lock()
	defer q.mux.Unlock()
	n := len(q.values)
	clear(q.values)
	q.values = q.values[:0]
	q.notFull.Broadcast()
	return n
}
