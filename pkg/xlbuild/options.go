// Package xlbuild builds spreadsheet documents from row data.
//
// Small documents are built in memory by an InlineBuilder. Documents with a sheet
// larger than the cell threshold are built by a WorkerBuilder, which streams rows to
// a background worker that writes them incrementally to a temporary file. New picks
// the builder; callers depend only on the Builder interface.
package xlbuild

import (
	"time"

	"github.com/ukaji3/xlbuild-go/pkg/logger"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/transport"
)

// Mode selects the construction strategy.
type Mode string

const (
	// ModeAuto lets SelectStrategy decide from the sheet sizes.
	ModeAuto Mode = "auto"
	// ModeInline always builds in memory.
	ModeInline Mode = "inline"
	// ModeWorker always builds in a background worker.
	ModeWorker Mode = "worker"
)

const (
	// DefaultThreshold is the per-sheet cell count above which a worker is used.
	DefaultThreshold = 10000
	// DefaultBatchSize is the number of rows per message sent to a worker.
	DefaultBatchSize = 1000
	// DefaultBatchDelay is the pause between two row batches.
	DefaultBatchDelay = 2 * time.Millisecond
	// DefaultFileName is used by the inline builder when neither a path nor a
	// document name is given.
	DefaultFileName = "test.xlsx"
)

// Options configures a builder.
type Options struct {
	// Mode specifies the construction strategy (auto, inline, worker).
	Mode Mode
	// Threshold overrides DefaultThreshold when positive.
	Threshold int
	// BatchSize overrides DefaultBatchSize when positive.
	BatchSize int
	// BatchDelay is the pause between row batches.
	// If nil, defaults to DefaultBatchDelay; zero disables pacing.
	BatchDelay *time.Duration
	// TempDir is where workers create their temporary files; empty means os.TempDir.
	TempDir string
	// Spawner starts workers. If nil, workers run on goroutines.
	Spawner transport.Spawner
	// Logger receives builder logs. If nil, nothing is logged.
	Logger logger.Logger
}

// DefaultOptions returns default builder options.
func DefaultOptions() Options {
	return Options{
		Mode: ModeAuto,
	}
}

// CellThreshold returns the effective cell threshold.
func (o Options) CellThreshold() int {
	if o.Threshold > 0 {
		return o.Threshold
	}
	return DefaultThreshold
}

// RowsPerBatch returns the effective batch size.
func (o Options) RowsPerBatch() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

// Pacing returns the effective pause between row batches.
func (o Options) Pacing() time.Duration {
	if o.BatchDelay != nil {
		return max(*o.BatchDelay, 0)
	}
	return DefaultBatchDelay
}

func (o Options) spawner() transport.Spawner {
	if o.Spawner != nil {
		return o.Spawner
	}
	return transport.GoroutineSpawner{}
}

func (o Options) logger() logger.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.NewNoopLogger()
}
