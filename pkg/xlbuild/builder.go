package xlbuild

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
)

// State is the construction state of a builder.
type State int

const (
	NotStarted State = iota
	Started
	Ended
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Started:
		return "started"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Builder builds one spreadsheet document.
type Builder interface {
	// AddRow appends a row to the named sheet. An empty name addresses the first sheet.
	AddRow(row models.Row, sheet string) error
	// AddRows appends rows to the named sheet.
	AddRows(rows []models.Row, sheet string) error
	// Flush finalizes the rows written so far.
	Flush(ctx context.Context) error
	// FlushSheet commits the named sheet.
	FlushSheet(ctx context.Context, sheet string) error
	// Start begins construction. Calls after the first are no-ops.
	Start(ctx context.Context) error
	// ToFile writes the document to path and returns the path written.
	ToFile(ctx context.Context, path string) (string, error)
	// ToStream returns the document as a single-pass byte stream.
	ToStream(ctx context.Context) (io.ReadCloser, error)
	// Subscribe registers h for events of kind and returns a function removing it.
	Subscribe(kind EventKind, h Handler) (func(), error)
	// State returns the construction state.
	State() State
	// Strategy returns the construction strategy.
	Strategy() Strategy
	// Close releases the builder's resources.
	Close() error
}

var (
	_ Builder = (*InlineBuilder)(nil)
	_ Builder = (*WorkerBuilder)(nil)
)

// New validates doc and returns the builder selected for it.
func New(doc models.Document, opts Options) (Builder, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	strategy, err := opts.strategy(doc)
	if err != nil {
		return nil, err
	}
	documentsTotal.WithLabelValues(string(strategy)).Inc()

	if strategy == StrategyWorker {
		return NewWorkerBuilder(doc, opts), nil
	}
	return NewInlineBuilder(doc, opts)
}

// eventReader reports the end of a stream to a Notifier: streamend once the
// stream is exhausted, error if reading fails.
type eventReader struct {
	r        io.Reader
	closer   io.Closer
	notifier *Notifier
	once     sync.Once
}

func newEventReader(r io.Reader, closer io.Closer, n *Notifier) *eventReader {
	return &eventReader{r: r, closer: closer, notifier: n}
}

func (e *eventReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	switch {
	case err == io.EOF:
		e.once.Do(func() { e.notifier.Emit(Event{Kind: EventStreamEnd}) })
	case err != nil:
		e.once.Do(func() {
			e.notifier.Emit(Event{Kind: EventError, Err: NewBuildError("", "stream", err)})
		})
	}
	return n, err
}

func (e *eventReader) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}
