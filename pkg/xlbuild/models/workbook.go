package models

// SheetData represents the content read back from a single sheet.
type SheetData struct {
	// Name is the sheet name.
	Name string `json:"name"`
	// Range is the used cell range (e.g. "A1:C10"), empty for blank sheets.
	Range string `json:"range,omitempty"`
	// Rows contains the sheet rows with parsed cell values.
	Rows []Row `json:"rows,omitempty"`
}

// WorkbookData represents a finalized document read back from disk.
type WorkbookData struct {
	// BookName is the workbook file name (no path).
	BookName string `json:"book_name"`
	// Sheets lists the sheets in workbook order.
	Sheets []SheetData `json:"sheets"`
}

// Sheet returns the sheet with the given name.
func (w *WorkbookData) Sheet(name string) (SheetData, bool) {
	for _, s := range w.Sheets {
		if s.Name == name {
			return s, true
		}
	}
	return SheetData{}, false
}
