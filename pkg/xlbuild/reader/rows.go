// Package reader reads finalized documents back for inspection and verification.
package reader

import (
	"strconv"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
	"github.com/xuri/excelize/v2"
)

// ReadRows returns the rows of a sheet with parsed cell values.
// Empty cells are returned as nil; trailing empty rows are dropped by excelize.
func ReadRows(f *excelize.File, sheetName string) ([]models.Row, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	return parseRows(rows), nil
}

func parseRows(rows [][]string) []models.Row {
	result := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		parsed := make(models.Row, len(row))
		for colIdx, cellValue := range row {
			if cellValue == "" {
				continue
			}
			parsed[colIdx] = parseValue(cellValue)
		}
		result = append(result, parsed)
	}
	return result
}

// parseValue attempts to parse a string value as a number.
// Returns int64 for integers, float64 for decimals, or the original string.
func parseValue(s string) any {
	// Try integer first
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	// Try float
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
