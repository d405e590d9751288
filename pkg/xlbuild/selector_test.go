package xlbuild

import (
	"errors"
	"testing"
	"time"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
)

func rowsOf(n int) []models.Row {
	rows := make([]models.Row, n)
	for i := range rows {
		rows[i] = models.Row{i}
	}
	return rows
}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		name   string
		sheets []models.Sheet
		want   Strategy
	}{
		{"empty document", nil, StrategyInline},
		{"exactly at threshold", []models.Sheet{{Header: []string{"a"}, Data: rowsOf(10000)}}, StrategyInline},
		{"one cell over", []models.Sheet{{Header: []string{"a"}, Data: rowsOf(10001)}}, StrategyWorker},
		{"wide header", []models.Sheet{{Header: []string{"a", "b"}, Data: rowsOf(5001)}}, StrategyWorker},
		{"no header", []models.Sheet{{Data: rowsOf(20000)}}, StrategyInline},
		{
			"any sheet decides",
			[]models.Sheet{
				{Header: []string{"a"}, Data: rowsOf(10)},
				{Header: []string{"a"}, Data: rowsOf(10001)},
			},
			StrategyWorker,
		},
		{
			"sizes are not summed",
			[]models.Sheet{
				{Header: []string{"a"}, Data: rowsOf(6000)},
				{Header: []string{"a"}, Data: rowsOf(6000)},
			},
			StrategyInline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectStrategy(models.Document{Sheets: tt.sheets}, DefaultThreshold)
			if got != tt.want {
				t.Errorf("SelectStrategy() = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestOptionsStrategy(t *testing.T) {
	small := models.Document{Sheets: []models.Sheet{{Header: []string{"a"}, Data: rowsOf(3)}}}

	tests := []struct {
		opts    Options
		want    Strategy
		wantErr error
	}{
		{DefaultOptions(), StrategyInline, nil},
		{Options{}, StrategyInline, nil},
		{Options{Mode: ModeAuto, Threshold: 2}, StrategyWorker, nil},
		{Options{Mode: ModeWorker}, StrategyWorker, nil},
		{Options{Mode: ModeInline, Threshold: 1}, StrategyInline, nil},
		{Options{Mode: "turbo"}, "", ErrInvalidMode},
	}

	for _, tt := range tests {
		got, err := tt.opts.strategy(small)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%+v: error = %v, expected %v", tt.opts, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("%+v: strategy = %q, expected %q", tt.opts, got, tt.want)
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := DefaultOptions()
	if opts.CellThreshold() != 10000 {
		t.Errorf("CellThreshold() = %d, expected 10000", opts.CellThreshold())
	}
	if opts.RowsPerBatch() != 1000 {
		t.Errorf("RowsPerBatch() = %d, expected 1000", opts.RowsPerBatch())
	}
	if opts.Pacing() != 2*time.Millisecond {
		t.Errorf("Pacing() = %v, expected 2ms", opts.Pacing())
	}

	zero := time.Duration(0)
	negative := -time.Second
	if (Options{BatchDelay: &zero}).Pacing() != 0 {
		t.Error("explicit zero delay should disable pacing")
	}
	if (Options{BatchDelay: &negative}).Pacing() != 0 {
		t.Error("negative delay should disable pacing")
	}
	if (Options{BatchSize: 250}).RowsPerBatch() != 250 {
		t.Error("BatchSize should override the default")
	}
}
