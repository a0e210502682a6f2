package missing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tickforge/tickforge/internal/catalog"
	"github.com/tickforge/tickforge/internal/domain"
	"github.com/tickforge/tickforge/internal/metrics"
	"github.com/tickforge/tickforge/internal/objstore"
)

// pair is one (product, instrument) cell of a day.
type pair struct {
	InstrumentKey string
	Product       string
}

// DayResult summarizes detection for one date.
type DayResult struct {
	Day       time.Time
	Expected  int
	Available int
	Missing   int
	ReportKey string // empty when nothing is missing
}

// Report aggregates a detection run across the date range.
type Report struct {
	Days            []DayResult
	SkippedDays     []string // dates with no readable catalog
	TotalExpected   int
	TotalAvailable  int
	TotalMissing    int
	DaysWithMissing int
	PerProduct      map[string]int
	PerInstrument   map[string]int
	CoveragePct     float64
}

// Detector computes expected-but-absent tick files by set difference
// between the catalog and the tick-data inventory.
type Detector struct {
	store  objstore.Store
	reader *catalog.Reader
	met    *metrics.Pipeline
	log    zerolog.Logger
}

// NewDetector wires a detector.
func NewDetector(store objstore.Store, reader *catalog.Reader, met *metrics.Pipeline, log zerolog.Logger) *Detector {
	return &Detector{
		store:  store,
		reader: reader,
		met:    met,
		log:    log.With().Str("component", "missing_detector").Logger(),
	}
}

// Detect runs detection for every date in [start, end], writing one report
// file per date that has gaps. Days without a catalog are skipped with a
// warning. Detection is idempotent: unchanged inputs reproduce each report
// bit for bit.
func (d *Detector) Detect(ctx context.Context, start, end time.Time, f Filters) (*Report, error) {
	rep := &Report{
		PerProduct:    make(map[string]int),
		PerInstrument: make(map[string]int),
	}
	for day := objstore.DayOf(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res, entries, err := d.detectDay(ctx, day, f)
		if err != nil {
			if errors.Is(err, objstore.ErrNotFound) {
				d.log.Warn().Str("day", objstore.FormatDay(day)).Msg("No catalog for date; skipping")
				rep.SkippedDays = append(rep.SkippedDays, objstore.FormatDay(day))
				continue
			}
			return rep, err
		}
		rep.Days = append(rep.Days, res)
		rep.TotalExpected += res.Expected
		rep.TotalAvailable += res.Available
		rep.TotalMissing += res.Missing
		if res.Missing > 0 {
			rep.DaysWithMissing++
		}
		for _, e := range entries {
			rep.PerProduct[e.Product]++
			rep.PerInstrument[e.InstrumentKey]++
		}
	}
	if rep.TotalExpected > 0 {
		rep.CoveragePct = 100 * float64(rep.TotalExpected-rep.TotalMissing) / float64(rep.TotalExpected)
	}
	d.log.Info().Int("expected", rep.TotalExpected).Int("missing", rep.TotalMissing).
		Int("days_with_missing", rep.DaysWithMissing).
		Float64("coverage_pct", rep.CoveragePct).Msg("Detection finished")
	return rep, nil
}

func (d *Detector) detectDay(ctx context.Context, day time.Time, f Filters) (DayResult, []domain.MissingEntry, error) {
	res := DayResult{Day: day}

	defs, err := d.reader.LoadDay(ctx, day)
	if err != nil {
		return res, nil, err
	}
	expected, err := expectedSet(defs, f)
	if err != nil {
		return res, nil, err
	}
	available, err := d.availableSet(ctx, day, f)
	if err != nil {
		return res, nil, err
	}

	// Filtering is symmetric, so the inventory must be a subset of the
	// expectations; anything else means the store holds files the catalog
	// cannot account for, which is fatal.
	for p := range available {
		if !expected[p] {
			return res, nil, fmt.Errorf("invariant violation on %s: %s/%s present in store but not expected by catalog",
				objstore.FormatDay(day), p.Product, p.InstrumentKey)
		}
	}

	var entries []domain.MissingEntry
	for p := range expected {
		if !available[p] {
			entries = append(entries, domain.MissingEntry{
				Date:          day,
				InstrumentKey: p.InstrumentKey,
				Product:       p.Product,
				Status:        "missing",
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].InstrumentKey != entries[j].InstrumentKey {
			return entries[i].InstrumentKey < entries[j].InstrumentKey
		}
		return entries[i].Product < entries[j].Product
	})

	res.Expected = len(expected)
	res.Available = len(available)
	res.Missing = len(entries)
	d.met.MissingDetected.Add(float64(len(entries)))

	if len(entries) > 0 {
		data, err := EncodeReport(day, entries, f)
		if err != nil {
			return res, nil, err
		}
		key := objstore.MissingReportKey(day)
		if err := objstore.PutWithRetry(ctx, d.store, key, data, d.log); err != nil {
			return res, nil, err
		}
		res.ReportKey = key
		d.log.Info().Str("day", objstore.FormatDay(day)).Int("missing", len(entries)).
			Str("key", key).Msg("Missing-data report written")
	}
	return res, entries, nil
}

// expectedSet explodes catalog rows into (product, instrument) pairs under
// the filters.
func expectedSet(defs []domain.InstrumentDefinition, f Filters) (map[pair]bool, error) {
	venues := toSet(f.Venues)
	types := toSet(f.Types)
	products := toSet(f.Products)

	set := make(map[pair]bool)
	for i := range defs {
		def := &defs[i]
		if venues != nil && !venues[def.Venue] {
			continue
		}
		if types != nil && !types[string(def.InstrumentType)] {
			continue
		}
		for _, product := range def.ProductList() {
			if products != nil && !products[product] {
				continue
			}
			set[pair{InstrumentKey: def.InstrumentKey, Product: product}] = true
		}
	}
	return set, nil
}

// availableSet lists the day's tick-data prefix and restricts it with the
// same filters applied to the catalog side.
func (d *Detector) availableSet(ctx context.Context, day time.Time, f Filters) (map[pair]bool, error) {
	venues := toSet(f.Venues)
	types := toSet(f.Types)
	products := toSet(f.Products)

	keys, err := d.store.List(ctx, objstore.TickDataDayPrefix(day))
	if err != nil {
		return nil, fmt.Errorf("list tick data for %s: %w", objstore.FormatDay(day), err)
	}
	set := make(map[pair]bool, len(keys))
	for _, key := range keys {
		product, instrumentKey, ok := objstore.ParseTickDataKey(key)
		if !ok {
			d.log.Debug().Str("key", key).Msg("Ignoring foreign object under tick-data prefix")
			continue
		}
		if products != nil && !products[product] {
			continue
		}
		if venues != nil || types != nil {
			parsed, err := domain.ParseInstrumentKey(instrumentKey)
			if err != nil {
				d.log.Warn().Str("key", key).Err(err).Msg("Unparseable instrument key in store")
				continue
			}
			if venues != nil && !venues[parsed.Venue] {
				continue
			}
			if types != nil && !types[string(parsed.Type)] {
				continue
			}
		}
		set[pair{InstrumentKey: instrumentKey, Product: product}] = true
	}
	return set, nil
}
