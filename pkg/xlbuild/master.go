package xlbuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ukaji3/xlbuild-go/pkg/logger"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/protocol"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/transport"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/worker"
)

// pendingSheet holds rows appended to one sheet before construction started.
type pendingSheet struct {
	name    string
	rows    []models.Row
	flushed bool
}

// pendingBuffer keeps pending sheets in insertion order. Sheet names match
// case-insensitively, so "data" and "Data" buffer into the same sheet.
type pendingBuffer struct {
	sheets []*pendingSheet
}

func newPendingBuffer() *pendingBuffer {
	return &pendingBuffer{}
}

func (p *pendingBuffer) find(name string) *pendingSheet {
	for _, s := range p.sheets {
		if models.SameSheet(s.name, name) {
			return s
		}
	}
	return nil
}

func (p *pendingBuffer) add(name string, rows ...models.Row) {
	if name == "" {
		name = models.DefaultSheetName(0)
	}
	s := p.find(name)
	if s == nil {
		s = &pendingSheet{name: name}
		p.sheets = append(p.sheets, s)
	}
	for _, row := range rows {
		s.rows = append(s.rows, slices.Clone(row))
	}
}

// take marks the named sheet flushed and returns its rows. It reports false when
// the sheet was never buffered or was already taken.
func (p *pendingBuffer) take(name string) ([]models.Row, bool) {
	s := p.find(name)
	if s == nil || s.flushed {
		return nil, false
	}
	s.flushed = true
	return s.rows, true
}

// WorkerBuilder builds a document in a background worker. Rows appended before
// Start are buffered; Start sends every sheet to the worker in row batches and asks
// it to finalize the document into a temporary file.
type WorkerBuilder struct {
	notifier Notifier
	doc      models.Document
	opts     Options
	id       string
	log      logger.Logger

	mu     sync.Mutex
	state  State
	closed bool
	// killed is set when the worker is stopped on purpose; its exit is not a failure.
	killed    bool
	pending   *pendingBuffer
	conn      transport.Conn
	listening chan struct{} // closed when the listener has returned
	handedOut bool          // the temporary file was returned to the caller

	ready     chan struct{}
	readyOnce sync.Once
	path      string
	err       error
}

// NewWorkerBuilder returns a builder for doc. The worker is spawned by Start.
func NewWorkerBuilder(doc models.Document, opts Options) *WorkerBuilder {
	id := uuid.NewString()
	return &WorkerBuilder{
		doc:       doc,
		opts:      opts,
		id:        id,
		log:       opts.logger().With(zap.String("worker_id", id)),
		pending:   newPendingBuffer(),
		listening: make(chan struct{}),
		ready:     make(chan struct{}),
	}
}

// AddRow buffers a row for the named sheet. It fails with ErrAlreadyStarted once
// construction has started and is a no-op after Close.
func (b *WorkerBuilder) AddRow(row models.Row, sheet string) error {
	return b.AddRows([]models.Row{row}, sheet)
}

// AddRows buffers rows for the named sheet. It fails with ErrAlreadyStarted once
// construction has started and is a no-op after Close.
func (b *WorkerBuilder) AddRows(rows []models.Row, sheet string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	if b.state != NotStarted {
		return ErrAlreadyStarted
	}
	b.pending.add(sheet, rows...)
	return nil
}

// Flush starts construction if needed. Start already ends with the global flush.
func (b *WorkerBuilder) Flush(ctx context.Context) error {
	return b.Start(ctx)
}

// FlushSheet fails with ErrNotStarted before Start. Once started the call is
// accepted but redundant: Start commits every sheet itself, and the worker reports
// each commit as a flushsheet event, so no message is sent and no event is emitted.
func (b *WorkerBuilder) FlushSheet(_ context.Context, _ string) error {
	if b.State() == NotStarted {
		return ErrNotStarted
	}
	return nil
}

// Start spawns the worker and sends it the whole document: for each sheet the
// header, the data rows in batches and a commit, then one flush. Sheet rows are the
// definition rows followed by the buffered rows. Buffered sheets unknown to the
// definition follow in insertion order. ctx cancels the pauses between batches.
func (b *WorkerBuilder) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state != NotStarted || b.closed {
		b.mu.Unlock()
		return nil
	}
	b.state = Started
	b.mu.Unlock()

	b.notifier.Emit(Event{Kind: EventStart})

	conn, err := b.opts.spawner().Spawn(ctx, worker.Config{
		ID:      b.id,
		TempDir: b.opts.TempDir,
		Logger:  b.opts.logger(),
	})
	if err != nil {
		err = fmt.Errorf("spawn worker: %w", err)
		b.fail(err)
		b.mu.Lock()
		b.state = Ended
		b.mu.Unlock()
		close(b.listening)
		return err
	}
	b.log.Debug("worker spawned")

	b.mu.Lock()
	b.conn = conn
	closed := b.closed
	b.mu.Unlock()

	go b.listen(conn)
	if closed {
		b.kill(conn)
		return transport.ErrClosed
	}

	if err := b.send(ctx, conn); err != nil {
		b.mu.Lock()
		stopped := b.closed || b.killed
		b.mu.Unlock()

		b.kill(conn)
		if stopped {
			b.log.Debug("worker stopped while sending", zap.Error(err))
			b.settle("", ErrWorkerExited)
			return err
		}
		b.log.Error("sending document failed", zap.Error(err))
		b.fail(err)
		return err
	}
	if err := conn.CloseSend(); err != nil {
		b.log.Warn("close worker input", zap.Error(err))
	}

	b.notifier.Emit(Event{Kind: EventFlush})
	return nil
}

func (b *WorkerBuilder) send(ctx context.Context, conn transport.Conn) error {
	for i, sheet := range b.doc.Sheets {
		name := b.doc.SheetName(i)
		rows := sheet.Data
		if buffered, ok := b.pending.take(name); ok {
			rows = append(slices.Clip(rows), buffered...)
		}
		var header models.Row
		if len(sheet.Header) > 0 {
			header = sheet.HeaderRow()
		}
		if err := b.sendSheet(ctx, conn, name, header, rows); err != nil {
			return err
		}
	}

	for _, pending := range b.pending.sheets {
		rows, ok := b.pending.take(pending.name)
		if !ok {
			continue
		}
		if err := b.sendSheet(ctx, conn, pending.name, nil, rows); err != nil {
			return err
		}
	}

	return conn.Send(protocol.Flush())
}

// sendSheet sends the header (if any), the rows in batches and a commit.
func (b *WorkerBuilder) sendSheet(ctx context.Context, conn transport.Conn, name string, header models.Row, rows []models.Row) error {
	if header != nil {
		if err := conn.Send(protocol.Row(name, header)); err != nil {
			return err
		}
	}

	size := b.opts.RowsPerBatch()
	for start := 0; start < len(rows); start += size {
		if start > 0 {
			if err := b.pause(ctx); err != nil {
				return err
			}
		}
		end := min(start+size, len(rows))
		if err := conn.Send(protocol.Rows(name, rows[start:end])); err != nil {
			return err
		}
		rowBatchesTotal.Inc()
	}

	b.log.Debug("sheet sent", zap.String("sheet", name), zap.Int("rows", len(rows)))
	return conn.Send(protocol.FlushSheet(name))
}

func (b *WorkerBuilder) pause(ctx context.Context) error {
	delay := b.opts.Pacing()
	if delay == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// listen relays worker messages until the worker's outbound side closes.
func (b *WorkerBuilder) listen(conn transport.Conn) {
	defer close(b.listening)

	var msg protocol.Message
	for conn.Recv(&msg) {
		switch msg.Type {
		case protocol.TypeFile:
			b.log.Debug("document ready", zap.String("path", msg.Data.Path))
			b.settle(msg.Data.Path, nil)
		case protocol.TypeError:
			b.fail(&WorkerError{Message: msg.Data.Error})
		default:
			if msg.Type.Lifecycle() {
				b.notifier.Emit(Event{
					Kind:  EventKind(msg.Type),
					Sheet: msg.Data.Name,
					Path:  msg.Data.Path,
				})
			}
		}
	}

	err := conn.Wait()

	b.mu.Lock()
	b.state = Ended
	killed := b.killed
	b.mu.Unlock()

	if err != nil && !killed {
		b.fail(err)
	}
	b.settle("", ErrWorkerExited)
	b.log.Debug("worker exited")
}

func (b *WorkerBuilder) kill(conn transport.Conn) {
	b.mu.Lock()
	b.killed = true
	b.mu.Unlock()

	if err := conn.Kill(); err != nil {
		b.log.Warn("kill worker", zap.Error(err))
	}
}

// fail reports err to listeners, then rejects readiness if still pending.
func (b *WorkerBuilder) fail(err error) {
	workerFailuresTotal.Inc()
	b.log.Error("worker failed", zap.Error(err))
	b.notifier.Emit(Event{Kind: EventError, Err: err})
	b.settle("", err)
}

// settle resolves readiness; only the first call has an effect.
func (b *WorkerBuilder) settle(path string, err error) {
	b.readyOnce.Do(func() {
		b.path, b.err = path, err
		close(b.ready)
	})
}

func (b *WorkerBuilder) autoStart(ctx context.Context) error {
	if b.State() != NotStarted {
		return nil
	}
	if b.doc.NoStart {
		return ErrNotStarted
	}
	return b.Start(ctx)
}

// wait blocks until the worker reported the document or failed.
func (b *WorkerBuilder) wait(ctx context.Context) (string, error) {
	if err := b.autoStart(ctx); err != nil {
		return "", err
	}
	began := time.Now()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-b.ready:
	}
	if b.err != nil {
		return "", b.err
	}
	finalizeDuration.WithLabelValues(string(StrategyWorker)).Observe(time.Since(began).Seconds())
	return b.path, nil
}

// ToFile waits for the document and copies it to path. With an empty path the
// worker's temporary file is returned as is and belongs to the caller from then on.
func (b *WorkerBuilder) ToFile(ctx context.Context, path string) (string, error) {
	tmp, err := b.wait(ctx)
	if err != nil {
		return "", err
	}
	if path == "" {
		b.mu.Lock()
		b.handedOut = true
		b.mu.Unlock()
		return tmp, nil
	}

	b.notifier.Emit(Event{Kind: EventFileStart, Path: path})
	if err := copyFile(tmp, path); err != nil {
		err = NewBuildError("", "copy", err)
		b.log.Error("copy failed", zap.String("path", path), zap.Error(err))
		b.notifier.Emit(Event{Kind: EventError, Path: path, Err: err})
		return "", err
	}
	b.notifier.Emit(Event{Kind: EventFileEnd, Path: path})
	return path, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

// ToStream waits for the document and returns a reader over the temporary file.
func (b *WorkerBuilder) ToStream(ctx context.Context) (io.ReadCloser, error) {
	tmp, err := b.wait(ctx)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(tmp)
	if err != nil {
		err = NewBuildError("", "stream", err)
		b.notifier.Emit(Event{Kind: EventError, Err: err})
		return nil, err
	}
	b.notifier.Emit(Event{Kind: EventStreamStart})
	return newEventReader(f, f, &b.notifier), nil
}

// Subscribe implements Builder.
func (b *WorkerBuilder) Subscribe(kind EventKind, h Handler) (func(), error) {
	return b.notifier.Subscribe(kind, h)
}

// State implements Builder.
func (b *WorkerBuilder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Strategy implements Builder.
func (b *WorkerBuilder) Strategy() Strategy {
	return StrategyWorker
}

// Close stops the worker, waits for its messages to drain and removes the
// temporary file unless it was handed to the caller.
func (b *WorkerBuilder) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	conn := b.conn
	started := b.state != NotStarted
	b.mu.Unlock()

	if conn != nil {
		b.kill(conn)
	}
	if started {
		<-b.listening
	}

	b.mu.Lock()
	b.state = Ended
	handedOut := b.handedOut
	b.mu.Unlock()

	b.settle("", ErrWorkerExited)
	if b.err == nil && !handedOut {
		if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
