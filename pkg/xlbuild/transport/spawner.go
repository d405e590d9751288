// Package transport runs document workers in isolated execution contexts and carries
// protocol messages to and from them.
//
// Two isolation modes exist. GoroutineSpawner runs the worker on a goroutine of the
// current process and exchanges messages through in-memory mailboxes.
// ProcessSpawner starts a child process that serves the worker over stdin and stdout
// with line-delimited JSON. Both share nothing mutable with the builder: every
// message is copied on construction or serialized.
package transport

import (
	"context"
	"errors"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/protocol"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/worker"
)

// ErrClosed is returned when sending to a worker whose inbound side is closed.
var ErrClosed = errors.New("worker connection closed")

// Conn is the builder's end of a connection to a running worker.
type Conn interface {
	// Send delivers a message to the worker.
	Send(protocol.Message) error
	// CloseSend tells the worker no more messages follow.
	CloseSend() error
	// Recv blocks for the next worker message. It reports false once the worker's
	// outbound side is closed.
	Recv(*protocol.Message) bool
	// Wait blocks until the worker has terminated and returns its crash error, if
	// any. It must be called after Recv has reported false.
	Wait() error
	// Kill terminates the worker without waiting for queued work.
	Kill() error
}

// Spawner starts workers.
type Spawner interface {
	Spawn(ctx context.Context, cfg worker.Config) (Conn, error)
}

// Crash wraps a failure that terminated a worker.
type Crash struct {
	ID  string
	Err error
}

func (e *Crash) Error() string {
	if e.ID == "" {
		return "worker crashed: " + e.Err.Error()
	}
	return "worker " + e.ID + " crashed: " + e.Err.Error()
}

func (e *Crash) Unwrap() error {
	return e.Err
}
