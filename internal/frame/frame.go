package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Frame is a small columnar batch: one downloaded vendor file after type
// coercion. Cells are int64, float64, string, or nil for null.
type Frame struct {
	Schema *Schema
	Rows   [][]any
}

// ParseReport captures per-file coercion outcomes.
type ParseReport struct {
	Rows        int
	SkippedRows int
	NullCells   int
}

// ParseCSV reads a vendor CSV and coerces it against the schema. Columns not
// in the schema (exchange, symbol, anything unknown) are dropped; schema
// columns missing from the header come out all-null. Non-numeric values in
// numeric columns become nulls. A malformed row is skipped, never the file.
func ParseCSV(schema *Schema, r io.Reader) (*Frame, ParseReport, error) {
	var rep ParseReport
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return &Frame{Schema: schema}, rep, nil
	}
	if err != nil {
		return nil, rep, fmt.Errorf("read csv header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	// Column index in the CSV for each schema column, -1 when absent.
	idx := make([]int, len(schema.Columns))
	for i, c := range schema.Columns {
		if j, ok := pos[c.CSV]; ok {
			idx[i] = j
		} else {
			idx[i] = -1
		}
	}

	f := &Frame{Schema: schema}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				rep.SkippedRows++
				continue
			}
			return nil, rep, fmt.Errorf("read csv row: %w", err)
		}
		row := make([]any, len(schema.Columns))
		for i, c := range schema.Columns {
			j := idx[i]
			if j < 0 || j >= len(rec) {
				row[i] = nil
				rep.NullCells++
				continue
			}
			v, ok := coerce(rec[j], c.Kind)
			if !ok {
				rep.NullCells++
			}
			row[i] = v
		}
		f.Rows = append(f.Rows, row)
		rep.Rows++
	}
	return f, rep, nil
}

// coerce converts one CSV cell to the column kind; ok is false when the cell
// becomes a null.
func coerce(s string, kind Kind) (any, bool) {
	if s == "" {
		return nil, false
	}
	switch kind {
	case KindInt64:
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v, true
		}
		// Some venues emit integral timestamps in float notation.
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(v), true
		}
		return nil, false
	case KindFloat64:
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, true
		}
		return nil, false
	default:
		return s, true
	}
}
