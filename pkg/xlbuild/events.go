package xlbuild

import (
	"fmt"
	"slices"
	"sync"
)

// EventKind identifies a lifecycle notification.
type EventKind string

const (
	EventStart       EventKind = "start"
	EventFlush       EventKind = "flush"
	EventFlushSheet  EventKind = "flushsheet"
	EventFileStart   EventKind = "filestart"
	EventFileEnd     EventKind = "fileend"
	EventStreamStart EventKind = "streamstart"
	EventStreamEnd   EventKind = "streamend"
	EventError       EventKind = "error"
)

// EventKinds lists every event kind.
var EventKinds = []EventKind{
	EventStart, EventFlush, EventFlushSheet,
	EventFileStart, EventFileEnd,
	EventStreamStart, EventStreamEnd,
	EventError,
}

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	return slices.Contains(EventKinds, k)
}

// Event is a lifecycle notification.
type Event struct {
	Kind EventKind
	// Sheet is set for flushsheet events.
	Sheet string
	// Path is set for file events.
	Path string
	// Err is set for error events.
	Err error
}

// Handler receives events. Handlers run on the goroutine that raised the event and
// must not block.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Notifier dispatches events to subscribed handlers in subscription order.
// The zero value is ready to use.
type Notifier struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[EventKind][]subscription
}

// Subscribe registers h for events of kind. The returned function removes the
// subscription; calling it more than once is harmless.
func (n *Notifier) Subscribe(kind EventKind, h Handler) (func(), error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}
	if h == nil {
		return nil, fmt.Errorf("nil handler for %q", kind)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs == nil {
		n.subs = make(map[EventKind][]subscription)
	}
	n.nextID++
	id := n.nextID
	n.subs[kind] = append(n.subs[kind], subscription{id: id, handler: h})

	return func() { n.unsubscribe(kind, id) }, nil
}

func (n *Notifier) unsubscribe(kind EventKind, id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.subs[kind] = slices.DeleteFunc(n.subs[kind], func(s subscription) bool {
		return s.id == id
	})
}

// Emit delivers ev to the handlers subscribed to its kind.
func (n *Notifier) Emit(ev Event) {
	n.mu.Lock()
	subs := slices.Clone(n.subs[ev.Kind])
	n.mu.Unlock()

	for _, s := range subs {
		s.handler(ev)
	}
}
