package encoder

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/reader"
)

func TestMemoryEncoderSheetResolution(t *testing.T) {
	enc := NewMemoryEncoder()
	defer enc.Close()

	first, err := enc.AddSheet("", models.Row{"h"})
	require.NoError(t, err)
	require.Equal(t, "Sheet1", first)

	second, err := enc.AddSheet("", models.Row{"h2"})
	require.NoError(t, err)
	require.Equal(t, "Sheet2", second)

	// An unnamed append goes to the first sheet, not the most recent one.
	require.NoError(t, enc.Append("", models.Row{"to first"}))
	// An unknown name creates a new sheet.
	require.NoError(t, enc.Append("extra", models.Row{"x"}))
	require.Equal(t, []string{"Sheet1", "Sheet2", "extra"}, enc.Sheets())

	_, err = enc.AddSheet("extra")
	require.ErrorIs(t, err, ErrDuplicateSheet)

	path := filepath.Join(t.TempDir(), "memory.xlsx")
	require.NoError(t, enc.SaveAs(path))

	wb, err := reader.Inspect(path)
	require.NoError(t, err)
	sheet1, ok := wb.Sheet("Sheet1")
	require.True(t, ok)
	require.Equal(t, []models.Row{{"h"}, {"to first"}}, sheet1.Rows)
}

func TestMemoryEncoderBytes(t *testing.T) {
	enc := NewMemoryEncoder()
	defer enc.Close()

	_, err := enc.AddSheet("Data", models.Row{"a", "b"}, models.Row{int64(1), 2.5})
	require.NoError(t, err)

	data, err := enc.Bytes()
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := reader.ReadRows(f, "Data")
	require.NoError(t, err)
	require.Equal(t, []models.Row{{"a", "b"}, {int64(1), 2.5}}, rows)
}

func TestMemoryEncoderMatchesNamesIgnoringCase(t *testing.T) {
	tests := []struct {
		name   string
		append string
	}{
		{"lower", "data"},
		{"upper", "DATA"},
		{"exact", "Data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewMemoryEncoder()
			defer enc.Close()

			_, err := enc.AddSheet("Data", models.Row{"h"}, models.Row{int64(1)})
			require.NoError(t, err)
			require.NoError(t, enc.Append(tt.append, models.Row{int64(2)}))
			require.Equal(t, []string{"Data"}, enc.Sheets())

			_, err = enc.AddSheet(tt.append)
			require.ErrorIs(t, err, ErrDuplicateSheet)

			path := filepath.Join(t.TempDir(), "case.xlsx")
			require.NoError(t, enc.SaveAs(path))
			wb, err := reader.Inspect(path)
			require.NoError(t, err)
			require.Len(t, wb.Sheets, 1)
			require.Equal(t, []models.Row{{"h"}, {int64(1)}, {int64(2)}}, wb.Sheets[0].Rows)
		})
	}
}
