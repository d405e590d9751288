package xlbuild

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ukaji3/xlbuild-go/pkg/logger"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/encoder"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
)

// InlineBuilder builds the whole document in memory and serializes it once.
type InlineBuilder struct {
	notifier Notifier
	doc      models.Document
	log      logger.Logger

	mu    sync.Mutex
	enc   *encoder.MemoryEncoder
	state State
}

// NewInlineBuilder writes every sheet of doc into a new in-memory workbook.
func NewInlineBuilder(doc models.Document, opts Options) (*InlineBuilder, error) {
	enc := encoder.NewMemoryEncoder()
	for i, sheet := range doc.Sheets {
		name := doc.SheetName(i)
		if _, err := enc.AddSheet(name, sheetRows(sheet)...); err != nil {
			_ = enc.Close()
			return nil, NewBuildError(name, "add sheet", err)
		}
	}

	return &InlineBuilder{
		doc: doc,
		log: opts.logger().With(zap.String("strategy", string(StrategyInline))),
		enc: enc,
	}, nil
}

// sheetRows returns the header, when present, followed by the data rows.
func sheetRows(sheet models.Sheet) []models.Row {
	if len(sheet.Header) == 0 {
		return sheet.Data
	}
	rows := make([]models.Row, 0, len(sheet.Data)+1)
	rows = append(rows, sheet.HeaderRow())
	return append(rows, sheet.Data...)
}

// AddRow appends a row to the named sheet, creating the sheet when it does not
// exist. After Close it is a no-op.
func (b *InlineBuilder) AddRow(row models.Row, sheet string) error {
	return b.AddRows([]models.Row{row}, sheet)
}

// AddRows appends rows to the named sheet, creating the sheet when it does not
// exist. After Close it is a no-op.
func (b *InlineBuilder) AddRows(rows []models.Row, sheet string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.enc == nil {
		return nil
	}
	if err := b.enc.Append(sheet, rows...); err != nil {
		return NewBuildError(sheet, "append", err)
	}
	return nil
}

// Flush emits a flush event. In-memory sheets have nothing to flush.
func (b *InlineBuilder) Flush(context.Context) error {
	b.notifier.Emit(Event{Kind: EventFlush})
	return nil
}

// FlushSheet emits a flushsheet event for the sheet.
func (b *InlineBuilder) FlushSheet(_ context.Context, sheet string) error {
	b.notifier.Emit(Event{Kind: EventFlushSheet, Sheet: sheet})
	return nil
}

// Start emits start then flush the first time it is called.
func (b *InlineBuilder) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state != NotStarted {
		b.mu.Unlock()
		return nil
	}
	b.state = Started
	b.mu.Unlock()

	b.notifier.Emit(Event{Kind: EventStart})
	return b.Flush(ctx)
}

func (b *InlineBuilder) autoStart(ctx context.Context) error {
	if b.doc.NoStart {
		return nil
	}
	return b.Start(ctx)
}

// ToFile serializes the document to path. An empty path falls back to the document
// name, then DefaultFileName. On failure an error event is emitted and the empty
// path is returned with the error.
func (b *InlineBuilder) ToFile(ctx context.Context, path string) (string, error) {
	if err := b.autoStart(ctx); err != nil {
		return "", err
	}
	if path == "" {
		path = b.doc.Name
	}
	if path == "" {
		path = DefaultFileName
	}

	b.notifier.Emit(Event{Kind: EventFileStart, Path: path})
	began := time.Now()

	b.mu.Lock()
	err := ErrNoWorkbook
	if b.enc != nil {
		err = b.enc.SaveAs(path)
	}
	b.mu.Unlock()

	if err != nil {
		err = NewBuildError("", "save", err)
		b.log.Error("save failed", zap.String("path", path), zap.Error(err))
		b.notifier.Emit(Event{Kind: EventError, Path: path, Err: err})
		return "", err
	}
	finalizeDuration.WithLabelValues(string(StrategyInline)).Observe(time.Since(began).Seconds())

	b.log.Debug("document written", zap.String("path", path))
	b.notifier.Emit(Event{Kind: EventFileEnd, Path: path})
	return path, nil
}

// ToStream serializes the document to memory and returns a reader over it.
// streamstart is emitted now and streamend once the reader is exhausted.
func (b *InlineBuilder) ToStream(ctx context.Context) (io.ReadCloser, error) {
	if err := b.autoStart(ctx); err != nil {
		return nil, err
	}
	began := time.Now()

	b.mu.Lock()
	var (
		data []byte
		err  = ErrNoWorkbook
	)
	if b.enc != nil {
		data, err = b.enc.Bytes()
	}
	b.mu.Unlock()

	if err != nil {
		err = NewBuildError("", "stream", err)
		b.notifier.Emit(Event{Kind: EventError, Err: err})
		return nil, err
	}
	finalizeDuration.WithLabelValues(string(StrategyInline)).Observe(time.Since(began).Seconds())

	b.notifier.Emit(Event{Kind: EventStreamStart})
	return newEventReader(bytes.NewReader(data), nil, &b.notifier), nil
}

// Subscribe implements Builder.
func (b *InlineBuilder) Subscribe(kind EventKind, h Handler) (func(), error) {
	return b.notifier.Subscribe(kind, h)
}

// State implements Builder.
func (b *InlineBuilder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Strategy implements Builder.
func (b *InlineBuilder) Strategy() Strategy {
	return StrategyInline
}

// Close releases the workbook and ends the builder.
func (b *InlineBuilder) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Ended
	if b.enc == nil {
		return nil
	}
	err := b.enc.Close()
	b.enc = nil
	return err
}
