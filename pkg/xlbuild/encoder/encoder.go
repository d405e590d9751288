// Package encoder adapts excelize to the sheet-at-a-time operations used by the builders.
//
// Two encoders are provided. StreamEncoder writes rows through excelize stream writers
// and is append-only: a sheet must be committed before another sheet's content is
// guaranteed durable, and the workbook is finalized once to the path it was bound to.
// MemoryEncoder keeps the whole workbook in memory and serializes it on demand.
//
// Both resolve sheets the same way: an empty name addresses the first sheet (sheets
// count from 1), and a name that does not exist yet creates a new sheet, named lazily
// when no name was given. Names match case-insensitively, as they do in excelize.
package encoder

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrSheetCommitted indicates a write to a sheet that was already committed.
	ErrSheetCommitted = errors.New("sheet already committed")
	// ErrFinalized indicates an operation on an encoder that was already finalized.
	ErrFinalized = errors.New("encoder already finalized")
	// ErrDuplicateSheet indicates an attempt to create a sheet whose name is taken.
	ErrDuplicateSheet = errors.New("sheet already exists")
)

// SheetEncoder is the contract shared by the encoders.
type SheetEncoder interface {
	// Append writes rows to the end of the named sheet.
	Append(sheet string, rows ...models.Row) error
	// Commit marks the named sheet complete.
	Commit(sheet string) error
	// Sheets returns the sheet names in creation order.
	Sheets() []string
}

var (
	_ SheetEncoder = (*StreamEncoder)(nil)
	_ SheetEncoder = (*MemoryEncoder)(nil)
)

// sheetBook tracks sheet names in creation order on top of an excelize file.
type sheetBook struct {
	file  *excelize.File
	names []string
	// claimed reports whether the default sheet created by excelize.NewFile was taken over.
	claimed bool
}

func newSheetBook(f *excelize.File) *sheetBook {
	return &sheetBook{file: f}
}

// lookup finds an existing sheet. An empty name resolves to the first sheet.
func (b *sheetBook) lookup(name string) (string, bool) {
	if name == "" {
		if len(b.names) == 0 {
			return "", false
		}
		return b.names[0], true
	}
	if i := b.index(name); i >= 0 {
		return b.names[i], true
	}
	return "", false
}

// index returns the position of the sheet matching name case-insensitively, or -1.
func (b *sheetBook) index(name string) int {
	return slices.IndexFunc(b.names, func(s string) bool { return models.SameSheet(s, name) })
}

// create adds a sheet, naming it lazily when name is empty.
func (b *sheetBook) create(name string) (string, error) {
	if name == "" {
		name = b.nextName()
	}
	if i := b.index(name); i >= 0 {
		return "", fmt.Errorf("%w: %q matches %q", ErrDuplicateSheet, name, b.names[i])
	}

	if !b.claimed {
		// excelize.NewFile always starts with one sheet; the first sheet we create replaces it.
		def := b.file.GetSheetList()[0]
		if def != name {
			if err := b.file.SetSheetName(def, name); err != nil {
				return "", fmt.Errorf("rename sheet %q: %w", def, err)
			}
		}
		b.claimed = true
	} else if _, err := b.file.NewSheet(name); err != nil {
		return "", fmt.Errorf("create sheet %q: %w", name, err)
	}

	b.names = append(b.names, name)
	return name, nil
}

// resolve returns an existing sheet or creates it.
func (b *sheetBook) resolve(name string) (string, error) {
	if existing, ok := b.lookup(name); ok {
		return existing, nil
	}
	return b.create(name)
}

func (b *sheetBook) nextName() string {
	for i := len(b.names) + 1; ; i++ {
		name := models.DefaultSheetName(i - 1)
		if b.index(name) < 0 {
			return name
		}
	}
}

func (b *sheetBook) list() []string {
	return slices.Clone(b.names)
}

// rowCell returns the first cell of a 1-based row.
func rowCell(row int) (string, error) {
	return excelize.CoordinatesToCellName(1, row)
}
