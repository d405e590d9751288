package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// NormalizeCell converts decoded JSON values into the scalar types written to a sheet.
// Numbers become int64 when integral and float64 otherwise; other values are returned unchanged.
func NormalizeCell(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(string(n), 64); err == nil {
		return f
	}
	return string(n)
}

// NormalizeRows applies NormalizeCell to every cell in place.
func NormalizeRows(rows []Row) {
	for _, row := range rows {
		NormalizeRow(row)
	}
}

// NormalizeRow applies NormalizeCell to every cell of row in place.
func NormalizeRow(row Row) {
	for i, v := range row {
		row[i] = NormalizeCell(v)
	}
}

// ScalarCell converts v to the value it holds after a JSON round trip: nil, bool,
// string, int64 or float64 for scalars, and decoded maps or slices otherwise.
// Values JSON cannot encode are formatted with fmt.Sprint.
// Rows handed to a worker are converted so a document is written the same way
// whether the worker runs in-process or in a child process.
func ScalarCell(v any) any {
	switch x := v.(type) {
	case nil, bool, string, int64:
		return v
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return int64(x)
		}
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return fmt.Sprint(v)
	}
	return NormalizeCell(decoded)
}

// ScalarRow returns a copy of row with every cell converted by ScalarCell.
func ScalarRow(row Row) Row {
	if row == nil {
		return nil
	}
	out := make(Row, len(row))
	for i, v := range row {
		out[i] = ScalarCell(v)
	}
	return out
}
