// Package queue provides a single-flight FIFO execution queue.
//
// Items are executed one at a time, in submission order, by a drain loop that runs
// only while the queue holds work. Enqueue never blocks and never executes the item
// on the caller's goroutine: it appends the item and starts a drain loop if none is
// running. At most one item is executing at any time.
package queue

import "sync"

// Queue executes items of type T in FIFO order, one at a time.
type Queue[T any] struct {
	exec func(T)

	mu       sync.Mutex
	items    []T
	draining bool
	idle     *sync.Cond
}

// New returns a Queue that runs exec for every enqueued item.
func New[T any](exec func(T)) *Queue[T] {
	q := &Queue[T]{exec: exec}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends item to the tail of the queue and starts draining if needed.
func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	go q.drain()
}

// drain executes the head item until the queue is empty.
func (q *Queue[T]) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}
		var zero T
		item := q.items[0]
		q.items[0] = zero
		q.items = q.items[1:]
		q.mu.Unlock()

		q.exec(item)
	}
}

// Len returns the number of items waiting to execute.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wait blocks until the queue is empty and no item is executing.
func (q *Queue[T]) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.draining || len(q.items) > 0 {
		q.idle.Wait()
	}
}
