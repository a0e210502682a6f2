package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tickforge/tickforge/internal/domain"
	"github.com/tickforge/tickforge/internal/metrics"
	"github.com/tickforge/tickforge/internal/objstore"
	"github.com/tickforge/tickforge/internal/symbols"
)

// Source is the slice of the vendor API the generator needs.
type Source interface {
	ExchangeCatalog(ctx context.Context, vendorExchange string) ([]symbols.Listing, error)
}

// Options narrows a generation run.
type Options struct {
	// Exchanges accepts canonical venue names or vendor exchange ids;
	// empty means every supported venue.
	Exchanges      []string
	Start, End     time.Time
	MaxInstruments int // 0 = unlimited; applied after sorting, for smoke runs
	EnableCaching  bool
}

// WriteReport summarizes one generation run.
type WriteReport struct {
	Days          int
	RowsWritten   int
	FailedParsing int
	Skipped       int
	Filtered      int
	EmptyDays     []string
	DailyKeys     []string
	AggregateKey  string
	// AggregateError records a failed aggregate write. Per-day files are
	// the system of record; the aggregate is a convenience view, so the
	// error is reported but never raised.
	AggregateError string
	FailedVenues   []string
}

// Generator is the instrument-catalog producer: it fetches vendor listings,
// runs the symbol parser, and writes per-day catalog files plus the
// aggregate view.
type Generator struct {
	source Source
	store  objstore.Store
	met    *metrics.Pipeline
	log    zerolog.Logger
}

// NewGenerator wires a generator from its collaborators.
func NewGenerator(source Source, store objstore.Store, met *metrics.Pipeline, log zerolog.Logger) *Generator {
	return &Generator{
		source: source,
		store:  store,
		met:    met,
		log:    log.With().Str("component", "catalog_generator").Logger(),
	}
}

// ResolveVenues normalizes a mixed venue/vendor-exchange list to canonical
// venues, defaulting to all supported venues.
func ResolveVenues(exchanges []string) ([]string, error) {
	if len(exchanges) == 0 {
		return domain.AllVenues(), nil
	}
	out := make([]string, 0, len(exchanges))
	for _, e := range exchanges {
		name := strings.TrimSpace(e)
		if name == "" {
			continue
		}
		upper := strings.ToUpper(name)
		if _, ok := domain.VendorExchange(upper); ok {
			out = append(out, upper)
			continue
		}
		if venue, ok := domain.VenueForVendor(strings.ToLower(name)); ok {
			out = append(out, venue)
			continue
		}
		return nil, fmt.Errorf("unknown exchange %q", e)
	}
	return out, nil
}

// Generate runs the catalog pipeline for every date in [Start, End]. One
// venue failing does not block others; a date with zero instruments produces
// no file and is recorded as a warning.
func (g *Generator) Generate(ctx context.Context, opts Options) (*WriteReport, error) {
	venues, err := ResolveVenues(opts.Exchanges)
	if err != nil {
		return nil, err
	}
	parsers := make(map[string]*symbols.Parser, len(venues))
	for _, v := range venues {
		p, err := symbols.NewParser(v)
		if err != nil {
			return nil, err
		}
		parsers[v] = p
	}

	rep := &WriteReport{}
	cache := make(map[string][]symbols.Listing)
	failedVenues := make(map[string]bool)
	var aggregate []domain.InstrumentDefinition

	for day := objstore.DayOf(opts.Start); !day.After(opts.End); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Days++
		var defs []domain.InstrumentDefinition

		for _, venue := range venues {
			listings, err := g.listings(ctx, venue, cache, opts.EnableCaching)
			if err != nil {
				g.log.Error().Err(err).Str("venue", venue).Str("day", objstore.FormatDay(day)).
					Msg("Catalog fetch failed; continuing with other exchanges")
				failedVenues[venue] = true
				continue
			}
			parser := parsers[venue]
			for _, l := range listings {
				def, err := parser.Parse(l)
				if err != nil {
					if symbols.IsSkip(err) {
						rep.Skipped++
						continue
					}
					rep.FailedParsing++
					g.met.ParseFailures.WithLabelValues(venue).Inc()
					g.log.Debug().Err(err).Str("venue", venue).Msg("Symbol rejected")
					continue
				}
				if ok, _ := symbols.Admit(def); !ok {
					rep.Filtered++
					continue
				}
				if !def.AvailableOn(day) {
					continue
				}
				defs = append(defs, *def)
			}
		}

		sort.Slice(defs, func(i, j int) bool { return defs[i].InstrumentKey < defs[j].InstrumentKey })
		if opts.MaxInstruments > 0 && len(defs) > opts.MaxInstruments {
			defs = defs[:opts.MaxInstruments]
		}
		if len(defs) == 0 {
			g.log.Warn().Str("day", objstore.FormatDay(day)).Msg("No instruments for date; skipping file")
			rep.EmptyDays = append(rep.EmptyDays, objstore.FormatDay(day))
			continue
		}

		data, err := EncodeDefinitions(defs)
		if err != nil {
			return rep, err
		}
		key := objstore.CatalogDayKey(day)
		if err := objstore.PutWithRetry(ctx, g.store, key, data, g.log); err != nil {
			return rep, fmt.Errorf("write catalog %s: %w", key, err)
		}
		for i := range defs {
			g.met.CatalogRows.WithLabelValues(defs[i].Venue).Inc()
		}
		rep.RowsWritten += len(defs)
		rep.DailyKeys = append(rep.DailyKeys, key)
		aggregate = append(aggregate, defs...)
		g.log.Info().Str("day", objstore.FormatDay(day)).Int("instruments", len(defs)).
			Msg("Catalog written")
	}

	for v := range failedVenues {
		rep.FailedVenues = append(rep.FailedVenues, v)
	}
	sort.Strings(rep.FailedVenues)

	if len(aggregate) > 0 {
		key := objstore.AggregateCatalogKey(opts.Start, opts.End)
		rep.AggregateKey = key
		data, err := EncodeDefinitions(aggregate)
		if err == nil {
			err = objstore.PutWithRetry(ctx, g.store, key, data, g.log)
		}
		if err != nil {
			rep.AggregateError = err.Error()
			g.log.Error().Err(err).Str("key", key).
				Msg("Aggregate catalog write failed; daily files remain valid")
		}
	}
	return rep, nil
}

func (g *Generator) listings(ctx context.Context, venue string, cache map[string][]symbols.Listing, caching bool) ([]symbols.Listing, error) {
	if caching {
		if cached, ok := cache[venue]; ok {
			return cached, nil
		}
	}
	vendor, _ := domain.VendorExchange(venue)
	listings, err := g.source.ExchangeCatalog(ctx, vendor)
	if err != nil {
		return nil, err
	}
	if caching {
		cache[venue] = listings
	}
	return listings, nil
}
