package objstore

import (
	"regexp"
	"strings"
	"time"
)

// Object-store layout. All keys are relative to a single bucket; every
// artifact is exclusively owned by its canonical key.
const (
	dayLayout     = "2006-01-02"
	compactLayout = "20060102"
)

// CatalogDayKey is the per-day instrument catalog.
func CatalogDayKey(day time.Time) string {
	return "catalog/by_date/day-" + day.UTC().Format(dayLayout) + "/instruments.parquet"
}

// CatalogDayFallbacks are older catalog layouts still honored on read.
func CatalogDayFallbacks(day time.Time) []string {
	d := day.UTC()
	return []string{
		"catalog/instruments_" + d.Format(compactLayout) + ".parquet",
		"catalog/" + d.Format(dayLayout) + "_enhanced.parquet",
	}
}

// AggregateCatalogKey is the convenience view spanning a date range. Per-day
// files remain the system of record.
func AggregateCatalogKey(start, end time.Time) string {
	return "catalog/aggregate/instruments_" + start.UTC().Format(compactLayout) +
		"_" + end.UTC().Format(compactLayout) + ".parquet"
}

// TickDataKey is the home of one downloaded (instrument, product, date) file.
func TickDataKey(day time.Time, product, instrumentKey string) string {
	return TickDataDayPrefix(day) + "data_type-" + product + "/" + instrumentKey + ".parquet"
}

// TickDataDayPrefix is the listing prefix for one day of tick data.
func TickDataDayPrefix(day time.Time) string {
	return "raw_tick_data/by_date/day-" + day.UTC().Format(dayLayout) + "/"
}

// MissingReportKey is the per-day missing-data report.
func MissingReportKey(day time.Time) string {
	return "missing_data_reports/by_date/day-" + day.UTC().Format(dayLayout) + "/missing_data.parquet"
}

var tickKeyRe = regexp.MustCompile(`^raw_tick_data/by_date/day-(\d{4}-\d{2}-\d{2})/data_type-([^/]+)/(.+)\.parquet$`)

// ParseTickDataKey recovers (product, instrument key) from a tick-data object
// key. ok is false for keys outside the tick-data layout.
func ParseTickDataKey(key string) (product, instrumentKey string, ok bool) {
	m := tickKeyRe.FindStringSubmatch(key)
	if m == nil {
		return "", "", false
	}
	return m[2], m[3], true
}

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDay renders a day the way the layout spells it.
func FormatDay(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// ParseDay parses a YYYY-MM-DD day string.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(dayLayout, strings.TrimSpace(s), time.UTC)
}
