package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/protocol"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/worker"
)

const (
	// WorkerPathEnv overrides the executable started by ProcessSpawner.
	WorkerPathEnv = "XLBUILD_WORKER_PATH"
	// WorkerTempDirEnv passes the temporary directory to a worker process.
	WorkerTempDirEnv = "XLBUILD_WORKER_TEMP_DIR"
	// WorkerIDEnv passes the worker identifier to a worker process.
	WorkerIDEnv = "XLBUILD_WORKER_ID"
)

// DefaultWorkerArgs starts the hidden worker subcommand of the xlbuild binary.
var DefaultWorkerArgs = []string{"worker"}

// ProcessSpawner runs each worker in a child process speaking line-delimited JSON
// on stdin and stdout. The child is expected to call ServeStdio.
type ProcessSpawner struct {
	// Path is the executable to start. When empty, $XLBUILD_WORKER_PATH is used,
	// then the current executable.
	Path string
	// Args are passed to the executable; nil means DefaultWorkerArgs.
	Args []string
	// Env is appended to the current environment.
	Env []string
	// Stderr receives the child's stderr; nil means os.Stderr.
	Stderr io.Writer
}

var _ Spawner = ProcessSpawner{}

func (s ProcessSpawner) executable() (string, error) {
	if s.Path != "" {
		return s.Path, nil
	}
	if p := os.Getenv(WorkerPathEnv); p != "" {
		return p, nil
	}
	return os.Executable()
}

// Spawn implements Spawner. ctx only bounds process startup; the child outlives it.
func (s ProcessSpawner) Spawn(ctx context.Context, cfg worker.Config) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.executable()
	if err != nil {
		return nil, fmt.Errorf("locate worker executable: %w", err)
	}
	args := s.Args
	if args == nil {
		args = DefaultWorkerArgs
	}

	cmd := exec.Command(path, args...)
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.Env = append(cmd.Env,
		WorkerTempDirEnv+"="+cfg.TempDir,
		WorkerIDEnv+"="+cfg.ID,
	)
	cmd.Stderr = s.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %s: %w", path, err)
	}

	return &processConn{
		id:    cfg.ID,
		cmd:   cmd,
		stdin: stdin,
		tx:    protocol.NewWriter(stdin),
		rx:    protocol.NewReader(stdout),
	}, nil
}

type processConn struct {
	id    string
	cmd   *exec.Cmd
	stdin io.WriteCloser
	tx    *protocol.Writer
	rx    *protocol.Reader

	closeOnce sync.Once
	closeErr  error
	waitOnce  sync.Once
	waitErr   error
}

func (c *processConn) Send(msg protocol.Message) error {
	if !c.tx.Send(msg) {
		if err := c.tx.Err(); err != nil {
			return err
		}
		return ErrClosed
	}
	return nil
}

func (c *processConn) CloseSend() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.stdin.Close()
	})
	return c.closeErr
}

func (c *processConn) Recv(msg *protocol.Message) bool {
	return c.rx.Recv(msg)
}

func (c *processConn) Wait() error {
	c.waitOnce.Do(func() {
		err := c.cmd.Wait()
		if rerr := c.rx.Err(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		if err != nil {
			c.waitErr = &Crash{ID: c.id, Err: err}
		}
	})
	return c.waitErr
}

func (c *processConn) Kill() error {
	err := c.cmd.Process.Kill()
	_ = c.CloseSend()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// ServeStdio runs a worker over r and w, the child side of ProcessSpawner. It
// returns when r reaches end of input and every queued command has executed.
func ServeStdio(r io.Reader, w io.Writer, cfg worker.Config) error {
	rx := protocol.NewReader(r)
	tx := protocol.NewWriter(w)

	if err := worker.Run(rx, tx, cfg); err != nil {
		return err
	}
	if err := rx.Err(); err != nil {
		return err
	}
	return tx.Err()
}

// ConfigFromEnv returns the worker configuration passed by ProcessSpawner.
func ConfigFromEnv() worker.Config {
	return worker.Config{
		ID:      os.Getenv(WorkerIDEnv),
		TempDir: os.Getenv(WorkerTempDirEnv),
	}
}
