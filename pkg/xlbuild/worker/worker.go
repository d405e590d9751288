// Package worker implements the background side of a large document build.
//
// A Worker owns one streaming encoder bound to a private temporary file and one
// command queue. Inbound protocol messages are translated into commands and queued;
// the queue executes them one at a time, in arrival order, so the streaming encoder
// never sees interleaved writes. A flush message finalizes the file and answers with
// either a file message carrying its path or an error message.
//
// Write failures never stop the worker. The first failure is kept, later writes are
// skipped, and the failure is reported when the document is flushed.
package worker

import (
	"fmt"
	"os"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/ukaji3/xlbuild-go/pkg/logger"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/encoder"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/protocol"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/queue"
)

// Kind identifies a command.
type Kind int

const (
	AppendRow Kind = iota
	AppendRows
	CommitSheet
	FlushAll
)

func (k Kind) String() string {
	switch k {
	case AppendRow:
		return "append-row"
	case AppendRows:
		return "append-rows"
	case CommitSheet:
		return "commit-sheet"
	case FlushAll:
		return "flush-all"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Command is a unit of work executed against the encoder.
type Command struct {
	Kind  Kind
	Sheet string
	Rows  []models.Row
	// Done receives the finalized path or the failure of a FlushAll command.
	Done func(path string, err error)
}

// Encoder is the streaming encoder a Worker writes through.
type Encoder interface {
	Append(sheet string, rows ...models.Row) error
	Commit(sheet string) error
	Finalize() (string, error)
	Close() error
}

var _ Encoder = (*encoder.StreamEncoder)(nil)

// Config configures a Worker.
type Config struct {
	// ID identifies the worker in logs.
	ID string
	// TempDir is where the temporary document is created; empty means os.TempDir.
	TempDir string
	Logger  logger.Logger
}

// Worker builds one document from queued commands.
type Worker struct {
	path  string
	enc   Encoder
	queue *queue.Queue[Command]
	out   protocol.Tx
	log   logger.Logger

	// touched only by the drain loop
	err       error
	finalized bool
}

// New allocates a temporary file and returns a Worker that writes to it and
// reports to out.
func New(cfg Config, out protocol.Tx) (*Worker, error) {
	f, err := os.CreateTemp(cfg.TempDir, "excel*.xlsx")
	if err != nil {
		return nil, fmt.Errorf("allocate temporary file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return nil, err
	}
	return newWorker(cfg, path, encoder.NewStreamEncoder(path), out), nil
}

func newWorker(cfg Config, path string, enc Encoder, out protocol.Tx) *Worker {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}
	w := &Worker{
		path: path,
		enc:  enc,
		out:  out,
		log:  log.With(zap.String("worker_id", cfg.ID)),
	}
	w.queue = queue.New(w.execute)
	return w
}

// Path returns the temporary file the document is written to.
func (w *Worker) Path() string {
	return w.path
}

// AddRow queues a row for the sheet.
func (w *Worker) AddRow(row models.Row, sheet string) {
	w.queue.Enqueue(Command{Kind: AppendRow, Sheet: sheet, Rows: []models.Row{row}})
}

// AddRows queues rows for the sheet.
func (w *Worker) AddRows(rows []models.Row, sheet string) {
	w.queue.Enqueue(Command{Kind: AppendRows, Sheet: sheet, Rows: rows})
}

// FlushSheet queues a commit of the sheet.
func (w *Worker) FlushSheet(sheet string) {
	w.queue.Enqueue(Command{Kind: CommitSheet, Sheet: sheet})
}

// Flush queues finalization of the document. done runs after every previously
// queued command has completed.
func (w *Worker) Flush(done func(path string, err error)) {
	w.queue.Enqueue(Command{Kind: FlushAll, Done: done})
}

// Wait blocks until every queued command has executed.
func (w *Worker) Wait() {
	w.queue.Wait()
}

// Handle translates an inbound message into a queued command.
func (w *Worker) Handle(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeRow:
		w.AddRow(msg.Data.Row, msg.Data.Name)
	case protocol.TypeRows:
		w.AddRows(msg.Data.Rows, msg.Data.Name)
	case protocol.TypeFlushSheet:
		w.FlushSheet(msg.Data.Name)
	case protocol.TypeFlush:
		w.Flush(func(path string, err error) {
			if err != nil {
				w.send(protocol.Error(err))
				return
			}
			w.send(protocol.File(path))
		})
	default:
		w.log.Warn("ignoring message", zap.String("type", string(msg.Type)))
	}
}

func (w *Worker) execute(cmd Command) {
	var pc panics.Catcher
	pc.Try(func() { w.run(cmd) })
	if r := pc.Recovered(); r != nil {
		w.fail(cmd, r.AsError())
	}
}

func (w *Worker) run(cmd Command) {
	switch cmd.Kind {
	case AppendRow, AppendRows:
		if w.err != nil {
			return
		}
		if err := w.enc.Append(cmd.Sheet, cmd.Rows...); err != nil {
			w.fail(cmd, err)
		}
	case CommitSheet:
		if w.err != nil {
			return
		}
		if err := w.enc.Commit(cmd.Sheet); err != nil {
			w.fail(cmd, err)
			return
		}
		w.log.Debug("sheet committed", zap.String("sheet", cmd.Sheet))
		w.send(protocol.Event(protocol.TypeFlushSheet, cmd.Sheet, ""))
	case FlushAll:
		path, err := w.finalize()
		if cmd.Done != nil {
			cmd.Done(path, err)
		}
	}
}

func (w *Worker) finalize() (string, error) {
	if w.finalized {
		return "", encoder.ErrFinalized
	}
	w.finalized = true

	if w.err != nil {
		w.discard()
		return "", w.err
	}

	path, err := w.enc.Finalize()
	if err != nil {
		w.log.Error("finalize failed", zap.Error(err))
		w.discard()
		return "", err
	}
	w.log.Debug("document finalized", zap.String("path", path))
	return path, nil
}

func (w *Worker) fail(cmd Command, err error) {
	if w.err == nil {
		w.err = fmt.Errorf("%s %q: %w", cmd.Kind, cmd.Sheet, err)
	}
	w.log.Error("command failed",
		zap.Stringer("command", cmd.Kind),
		zap.String("sheet", cmd.Sheet),
		zap.Error(err),
	)
}

// discard drops the encoder and its temporary file.
func (w *Worker) discard() {
	if err := w.enc.Close(); err != nil {
		w.log.Warn("close encoder", zap.Error(err))
	}
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		w.log.Warn("remove temporary file", zap.String("path", w.path), zap.Error(err))
	}
}

func (w *Worker) send(msg protocol.Message) {
	if !w.out.Send(msg) {
		w.log.Warn("outbound channel closed", zap.String("type", string(msg.Type)))
	}
}

// Run creates a Worker and feeds it every message received from in. When in is
// closed it waits for the queued commands; a document that was never flushed is
// discarded.
func Run(in protocol.Rx, out protocol.Tx, cfg Config) error {
	w, err := New(cfg, out)
	if err != nil {
		return err
	}
	w.log.Debug("worker started", zap.String("path", w.path))

	var msg protocol.Message
	for in.Recv(&msg) {
		w.Handle(msg)
	}
	w.Wait()

	if !w.finalized {
		w.discard()
	}
	w.log.Debug("worker stopped")
	return nil
}
