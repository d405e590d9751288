package xlbuild

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted indicates rows were appended after construction started.
	ErrAlreadyStarted = errors.New("builder already started")
	// ErrNotStarted indicates output was requested from a builder created with
	// NoStart before Start was called.
	ErrNotStarted = errors.New("builder not started")
	// ErrNoWorkbook indicates output was requested after the workbook was released.
	ErrNoWorkbook = errors.New("no workbook to write")
	// ErrWorkerExited indicates the worker terminated before the document was ready.
	ErrWorkerExited = errors.New("worker exited before the document was ready")
	// ErrUnknownEvent indicates a subscription to an event kind that does not exist.
	ErrUnknownEvent = errors.New("unknown event kind")
	// ErrInvalidDocument indicates a document definition that cannot be built.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrInvalidMode indicates an unknown construction mode.
	ErrInvalidMode = errors.New("invalid mode")
)

// BuildError represents a failure while writing a document.
type BuildError struct {
	Sheet string
	Op    string // "add sheet", "append", "save", "stream", "copy"
	Err   error
}

func (e *BuildError) Error() string {
	if e.Sheet == "" {
		return fmt.Sprintf("build error (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("build error in sheet %q (%s): %v", e.Sheet, e.Op, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// NewBuildError creates a new BuildError.
func NewBuildError(sheet, op string, err error) *BuildError {
	return &BuildError{
		Sheet: sheet,
		Op:    op,
		Err:   err,
	}
}

// WorkerError is a failure reported by a worker. Only its message crosses the
// worker boundary.
type WorkerError struct {
	Message string
}

func (e *WorkerError) Error() string {
	return "worker: " + e.Message
}
