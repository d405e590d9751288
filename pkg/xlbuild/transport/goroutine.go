package transport

import (
	"context"

	"github.com/sourcegraph/conc/panics"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/protocol"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/worker"
)

// GoroutineSpawner runs workers on goroutines of the current process. A panic in
// the worker is recovered and reported as a Crash.
type GoroutineSpawner struct{}

var _ Spawner = GoroutineSpawner{}

// Spawn implements Spawner.
func (GoroutineSpawner) Spawn(_ context.Context, cfg worker.Config) (Conn, error) {
	c := &localConn{
		id:   cfg.ID,
		in:   NewMailbox[protocol.Message](),
		out:  NewMailbox[protocol.Message](),
		done: make(chan struct{}),
	}
	go c.run(cfg)
	return c, nil
}

type localConn struct {
	id   string
	in   *Mailbox[protocol.Message]
	out  *Mailbox[protocol.Message]
	done chan struct{}
	err  error
}

func (c *localConn) run(cfg worker.Config) {
	defer close(c.done)
	defer c.out.Close()
	defer c.in.Close()

	var pc panics.Catcher
	pc.Try(func() {
		if err := worker.Run(c.in, c.out, cfg); err != nil {
			c.err = &Crash{ID: c.id, Err: err}
		}
	})
	if r := pc.Recovered(); r != nil {
		c.err = &Crash{ID: c.id, Err: r.AsError()}
	}
}

func (c *localConn) Send(msg protocol.Message) error {
	if !c.in.Send(msg) {
		return ErrClosed
	}
	return nil
}

func (c *localConn) CloseSend() error {
	return c.in.Close()
}

func (c *localConn) Recv(msg *protocol.Message) bool {
	return c.out.Recv(msg)
}

func (c *localConn) Wait() error {
	<-c.done
	return c.err
}

// Kill closes the inbound mailbox. A goroutine cannot be stopped from outside, so
// the worker finishes the commands it already holds and then exits.
func (c *localConn) Kill() error {
	return c.in.Close()
}
