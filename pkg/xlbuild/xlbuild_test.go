package xlbuild

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/protocol"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/transport"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeConn records what a builder sends. When the builder closes its side, reply
// is called to produce the worker's answer.
type fakeConn struct {
	mu      sync.Mutex
	sent    []protocol.Message
	out     *transport.Mailbox[protocol.Message]
	reply   func(out *transport.Mailbox[protocol.Message])
	waitErr error
	// holdOpen keeps the worker side open after CloseSend, like a worker that
	// never answers.
	holdOpen bool
}

func newFakeConn(reply func(out *transport.Mailbox[protocol.Message])) *fakeConn {
	return &fakeConn{out: transport.NewMailbox[protocol.Message](), reply: reply}
}

func (c *fakeConn) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) CloseSend() error {
	if c.reply != nil {
		c.reply(c.out)
	}
	if c.holdOpen {
		return nil
	}
	return c.out.Close()
}

func (c *fakeConn) Recv(msg *protocol.Message) bool {
	return c.out.Recv(msg)
}

func (c *fakeConn) Wait() error {
	return c.waitErr
}

func (c *fakeConn) Kill() error {
	return c.out.Close()
}

func (c *fakeConn) messages() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Message(nil), c.sent...)
}

type fakeSpawner struct {
	mu     sync.Mutex
	conn   *fakeConn
	spawns int
}

func (s *fakeSpawner) Spawn(context.Context, worker.Config) (transport.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawns++
	return s.conn, nil
}

func replyFile(path string) func(*transport.Mailbox[protocol.Message]) {
	return func(out *transport.Mailbox[protocol.Message]) {
		out.Send(protocol.File(path))
	}
}

// eventLog subscribes to every event kind of a builder.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func recordEvents(t *testing.T, b Builder) *eventLog {
	t.Helper()
	l := &eventLog{}
	for _, kind := range EventKinds {
		if _, err := b.Subscribe(kind, l.add); err != nil {
			t.Fatalf("Subscribe(%q) error = %v", kind, err)
		}
	}
	return l
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]EventKind, len(l.events))
	for i, ev := range l.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func (l *eventLog) count(kind EventKind) int {
	n := 0
	for _, k := range l.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) first(kind EventKind) Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev.Kind == kind {
			return ev
		}
	}
	return Event{}
}
