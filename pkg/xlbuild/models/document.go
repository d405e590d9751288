// Package models defines data structures for spreadsheet documents.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// ErrDuplicateSheet indicates two sheets of a document share a name.
var ErrDuplicateSheet = errors.New("duplicate sheet name")

// Row is an ordered sequence of scalar cell values.
type Row []any

// Sheet describes one table of a document.
type Sheet struct {
	// Name is the sheet name. When empty the sheet is addressed by position.
	Name string `json:"name,omitempty"`
	// Header holds the column labels written as the first row.
	Header []string `json:"header"`
	// Data holds the data rows written after the header.
	Data []Row `json:"data"`
}

// Cells returns the number of cells the sheet spans (header width times row count).
func (s Sheet) Cells() int {
	return len(s.Header) * len(s.Data)
}

// HeaderRow returns the header as a Row.
func (s Sheet) HeaderRow() Row {
	row := make(Row, len(s.Header))
	for i, h := range s.Header {
		row[i] = h
	}
	return row
}

// DefaultSheetName returns the name used for the sheet at the given 0-based position
// when the definition leaves it unnamed.
func DefaultSheetName(index int) string {
	return fmt.Sprintf("Sheet%d", index+1)
}

// Document is the input definition of a spreadsheet document.
type Document struct {
	// Name is the file name used when the document is written without an explicit path.
	Name string `json:"name,omitempty"`
	// Sheets are the document sheets in output order.
	Sheets []Sheet `json:"sheets"`
	// NoStart suppresses the automatic start of construction.
	NoStart bool `json:"noStart,omitempty"`
}

// SheetName returns the effective name of the sheet at index i.
func (d Document) SheetName(i int) string {
	if d.Sheets[i].Name != "" {
		return d.Sheets[i].Name
	}
	return DefaultSheetName(i)
}

// SameSheet reports whether a and b name the same sheet. Workbooks compare sheet
// names case-insensitively.
func SameSheet(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Validate reports whether the effective sheet names are unique, ignoring case.
func (d Document) Validate() error {
	seen := make([]string, 0, len(d.Sheets))
	for i := range d.Sheets {
		name := d.SheetName(i)
		if j := slices.IndexFunc(seen, func(s string) bool { return SameSheet(s, name) }); j >= 0 {
			return fmt.Errorf("%w: %q and %q", ErrDuplicateSheet, seen[j], name)
		}
		seen = append(seen, name)
	}
	return nil
}

// DecodeDocument reads a JSON document definition from r.
// Numeric cells are normalised with NormalizeCell.
func DecodeDocument(r io.Reader) (Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	for i := range doc.Sheets {
		NormalizeRows(doc.Sheets[i].Data)
	}
	return doc, nil
}
