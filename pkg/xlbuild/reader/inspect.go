package reader

import (
	"fmt"
	"path/filepath"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
	"github.com/xuri/excelize/v2"
)

// Inspect reads every sheet of the workbook at path, in workbook order.
func Inspect(path string) (*models.WorkbookData, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	wb := &models.WorkbookData{BookName: filepath.Base(path)}
	for _, sheetName := range f.GetSheetList() {
		raw, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
		}
		wb.Sheets = append(wb.Sheets, models.SheetData{
			Name:  sheetName,
			Range: UsedRange(raw),
			Rows:  parseRows(raw),
		})
	}
	return wb, nil
}
