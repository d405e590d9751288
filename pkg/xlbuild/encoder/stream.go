package encoder

import (
	"fmt"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
	"github.com/xuri/excelize/v2"
)

type streamSheet struct {
	writer    *excelize.StreamWriter
	next      int
	committed bool
}

// StreamEncoder writes a workbook incrementally to a file bound at construction.
// It is not safe for concurrent use; callers serialize access.
type StreamEncoder struct {
	path   string
	file   *excelize.File
	book   *sheetBook
	sheets map[string]*streamSheet
	done   bool
}

// NewStreamEncoder returns an encoder that finalizes to path.
func NewStreamEncoder(path string) *StreamEncoder {
	f := excelize.NewFile()
	return &StreamEncoder{
		path:   path,
		file:   f,
		book:   newSheetBook(f),
		sheets: make(map[string]*streamSheet),
	}
}

// Path returns the file the workbook is finalized to.
func (e *StreamEncoder) Path() string {
	return e.path
}

// Sheets returns the sheet names in creation order.
func (e *StreamEncoder) Sheets() []string {
	return e.book.list()
}

// Open resolves name to a sheet, creating the sheet and its stream writer when missing.
func (e *StreamEncoder) Open(name string) (string, error) {
	if e.done {
		return "", ErrFinalized
	}

	resolved, err := e.book.resolve(name)
	if err != nil {
		return "", err
	}
	if _, ok := e.sheets[resolved]; ok {
		return resolved, nil
	}

	sw, err := e.file.NewStreamWriter(resolved)
	if err != nil {
		return "", fmt.Errorf("open stream writer for %q: %w", resolved, err)
	}
	e.sheets[resolved] = &streamSheet{writer: sw, next: 1}
	return resolved, nil
}

// Append writes rows after the last row written to the sheet.
func (e *StreamEncoder) Append(name string, rows ...models.Row) error {
	resolved, err := e.Open(name)
	if err != nil {
		return err
	}

	s := e.sheets[resolved]
	if s.committed {
		return fmt.Errorf("%w: %q", ErrSheetCommitted, resolved)
	}

	for _, row := range rows {
		cell, err := rowCell(s.next)
		if err != nil {
			return err
		}
		if err := s.writer.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d of %q: %w", s.next, resolved, err)
		}
		s.next++
	}
	return nil
}

// Commit flushes the sheet's stream writer. Committing twice is a no-op.
func (e *StreamEncoder) Commit(name string) error {
	resolved, err := e.Open(name)
	if err != nil {
		return err
	}
	return e.commit(resolved)
}

func (e *StreamEncoder) commit(name string) error {
	s := e.sheets[name]
	if s.committed {
		return nil
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("commit %q: %w", name, err)
	}
	s.committed = true
	return nil
}

// Rows returns how many rows were written to the sheet.
func (e *StreamEncoder) Rows(name string) int {
	resolved, ok := e.book.lookup(name)
	if !ok {
		return 0
	}
	if s, ok := e.sheets[resolved]; ok {
		return s.next - 1
	}
	return 0
}

// Finalize commits every open sheet and writes the workbook to its path.
func (e *StreamEncoder) Finalize() (string, error) {
	if e.done {
		return "", ErrFinalized
	}

	for _, name := range e.book.names {
		if _, ok := e.sheets[name]; !ok {
			continue
		}
		if err := e.commit(name); err != nil {
			return "", err
		}
	}

	if err := e.file.SaveAs(e.path); err != nil {
		return "", fmt.Errorf("save %s: %w", e.path, err)
	}
	e.done = true
	if err := e.file.Close(); err != nil {
		return "", err
	}
	return e.path, nil
}

// Close releases the workbook without writing it. It is a no-op after Finalize.
func (e *StreamEncoder) Close() error {
	if e.done {
		return nil
	}
	e.done = true
	return e.file.Close()
}
