package transport

import "sync"

// Mailbox is an unbounded FIFO channel between two goroutines. Send never blocks,
// so a producer is never held up by a slow consumer.
type Mailbox[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

// NewMailbox returns an open, empty Mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	m := &Mailbox[T]{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Send appends item. It reports false once the mailbox is closed.
func (m *Mailbox[T]) Send(item T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.items = append(m.items, item)
	m.cond.Signal()
	return true
}

// Recv blocks until an item is available and stores it in item. Items sent before
// Close are still delivered; Recv reports false once the mailbox is closed and empty.
func (m *Mailbox[T]) Recv(item *T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.items) == 0 {
		if m.closed {
			return false
		}
		m.cond.Wait()
	}

	var zero T
	*item = m.items[0]
	m.items[0] = zero
	m.items = m.items[1:]
	return true
}

// Close stops accepting items and wakes every blocked receiver.
func (m *Mailbox[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.cond.Broadcast()
	return nil
}

// Len returns the number of undelivered items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
