package encoder

import (
	"fmt"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
	"github.com/xuri/excelize/v2"
)

// MemoryEncoder holds a whole workbook in memory.
// It is not safe for concurrent use; callers serialize access.
type MemoryEncoder struct {
	file *excelize.File
	book *sheetBook
	next map[string]int
}

// NewMemoryEncoder returns an empty in-memory workbook.
func NewMemoryEncoder() *MemoryEncoder {
	f := excelize.NewFile()
	return &MemoryEncoder{
		file: f,
		book: newSheetBook(f),
		next: make(map[string]int),
	}
}

// Sheets returns the sheet names in creation order.
func (e *MemoryEncoder) Sheets() []string {
	return e.book.list()
}

// AddSheet creates a new sheet holding rows. An empty name is assigned lazily.
func (e *MemoryEncoder) AddSheet(name string, rows ...models.Row) (string, error) {
	created, err := e.book.create(name)
	if err != nil {
		return "", err
	}
	e.next[created] = 1
	return created, e.write(created, rows)
}

// Append writes rows after the last row of the resolved sheet.
func (e *MemoryEncoder) Append(name string, rows ...models.Row) error {
	resolved, err := e.book.resolve(name)
	if err != nil {
		return err
	}
	if _, ok := e.next[resolved]; !ok {
		e.next[resolved] = 1
	}
	return e.write(resolved, rows)
}

func (e *MemoryEncoder) write(sheet string, rows []models.Row) error {
	for _, row := range rows {
		cell, err := rowCell(e.next[sheet])
		if err != nil {
			return err
		}
		values := []any(row)
		if err := e.file.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d of %q: %w", e.next[sheet], sheet, err)
		}
		e.next[sheet]++
	}
	return nil
}

// Commit is a no-op: in-memory sheets are complete as soon as they are written.
func (e *MemoryEncoder) Commit(string) error {
	return nil
}

// SaveAs serializes the workbook to path.
func (e *MemoryEncoder) SaveAs(path string) error {
	if err := e.file.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Bytes serializes the workbook to memory.
func (e *MemoryEncoder) Bytes() ([]byte, error) {
	buf, err := e.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Close releases the workbook.
func (e *MemoryEncoder) Close() error {
	return e.file.Close()
}
