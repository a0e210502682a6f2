package missing

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tickforge/tickforge/internal/domain"
	"github.com/tickforge/tickforge/internal/objstore"
)

// Filters narrow both the expected and available sets symmetrically.
// Matching is always exact; an empty list means no restriction.
type Filters struct {
	Venues   []string
	Types    []string
	Products []string
}

func toSet(vals []string) map[string]bool {
	if len(vals) == 0 {
		return nil
	}
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			m[v] = true
		}
	}
	return m
}

func joinFilter(vals []string) string {
	return strings.Join(vals, ",")
}

// reportRow is the parquet layout of one missing-data entry, carrying the
// provenance of the detection run. generated_at derives from the report
// date, not the wall clock, so re-running on unchanged inputs reproduces the
// report byte for byte.
type reportRow struct {
	Date           string    `parquet:"date"`
	InstrumentKey  string    `parquet:"instrument_key"`
	Product        string    `parquet:"product"`
	Status         string    `parquet:"status"`
	ReportDate     string    `parquet:"report_date"`
	VenuesFilter   string    `parquet:"venues_filter"`
	TypesFilter    string    `parquet:"types_filter"`
	ProductsFilter string    `parquet:"products_filter"`
	GeneratedAt    time.Time `parquet:"generated_at,timestamp(millisecond)"`
}

// EncodeReport renders a day's missing entries as a snappy parquet file.
// Entries must already be sorted.
func EncodeReport(day time.Time, entries []domain.MissingEntry, f Filters) ([]byte, error) {
	rows := make([]reportRow, len(entries))
	dayStr := objstore.FormatDay(day)
	for i, e := range entries {
		rows[i] = reportRow{
			Date:           objstore.FormatDay(e.Date),
			InstrumentKey:  e.InstrumentKey,
			Product:        e.Product,
			Status:         e.Status,
			ReportDate:     dayStr,
			VenuesFilter:   joinFilter(f.Venues),
			TypesFilter:    joinFilter(f.Types),
			ProductsFilter: joinFilter(f.Products),
			GeneratedAt:    objstore.DayOf(day),
		}
	}
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows, parquet.Compression(&parquet.Snappy)); err != nil {
		return nil, fmt.Errorf("encode missing-data report: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReport reads a report file back into entries.
func DecodeReport(data []byte) ([]domain.MissingEntry, error) {
	rows, err := parquet.Read[reportRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("decode missing-data report: %w", err)
	}
	entries := make([]domain.MissingEntry, 0, len(rows))
	for _, r := range rows {
		day, err := objstore.ParseDay(r.Date)
		if err != nil {
			return nil, fmt.Errorf("report row date %q: %w", r.Date, err)
		}
		entries = append(entries, domain.MissingEntry{
			Date:          day,
			InstrumentKey: r.InstrumentKey,
			Product:       r.Product,
			Status:        r.Status,
		})
	}
	return entries, nil
}
