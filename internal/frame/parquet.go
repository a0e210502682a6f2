package frame

import (
	"bytes"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

const writeChunk = 4096

// parquetSchema builds the parquet layout from the static product schema.
// Every column is optional so coercion nulls survive the round trip.
func parquetSchema(s *Schema) *parquet.Schema {
	group := parquet.Group{}
	for _, c := range s.Columns {
		var leaf parquet.Node
		switch c.Kind {
		case KindInt64:
			leaf = parquet.Int(64)
		case KindFloat64:
			leaf = parquet.Leaf(parquet.DoubleType)
		default:
			leaf = parquet.String()
		}
		group[c.Name] = parquet.Optional(leaf)
	}
	return parquet.NewSchema(s.Product, group)
}

// WriteParquet encodes the frame with snappy compression.
func (f *Frame) WriteParquet(w io.Writer) error {
	pw := parquet.NewGenericWriter[map[string]any](w, parquetSchema(f.Schema),
		parquet.Compression(&parquet.Snappy))
	for start := 0; start < len(f.Rows); start += writeChunk {
		end := start + writeChunk
		if end > len(f.Rows) {
			end = len(f.Rows)
		}
		chunk := make([]map[string]any, 0, end-start)
		for _, row := range f.Rows[start:end] {
			m := make(map[string]any, len(f.Schema.Columns))
			for i, c := range f.Schema.Columns {
				if row[i] != nil {
					m[c.Name] = row[i]
				}
			}
			chunk = append(chunk, m)
		}
		if _, err := pw.Write(chunk); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// Bytes encodes the frame to an in-memory parquet file.
func (f *Frame) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.WriteParquet(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadParquet decodes a parquet file produced by WriteParquet back into a
// frame. Used by inspection paths and tests; the hot pipeline only writes.
func ReadParquet(schema *Schema, data []byte) (*Frame, error) {
	rows, err := parquet.Read[map[string]any](bytes.NewReader(data), int64(len(data)), parquetSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	f := &Frame{Schema: schema}
	for _, m := range rows {
		row := make([]any, len(schema.Columns))
		for i, c := range schema.Columns {
			v, ok := m[c.Name]
			if !ok || v == nil {
				continue
			}
			row[i] = normalizeCell(v, c.Kind)
		}
		f.Rows = append(f.Rows, row)
	}
	return f, nil
}

func normalizeCell(v any, kind Kind) any {
	switch kind {
	case KindInt64:
		switch n := v.(type) {
		case int64:
			return n
		case int32:
			return int64(n)
		case int:
			return int64(n)
		}
	case KindFloat64:
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		}
	case KindString:
		switch s := v.(type) {
		case string:
			return s
		case []byte:
			return string(s)
		}
	}
	return v
}
