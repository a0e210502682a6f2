package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tickforge/tickforge/internal/domain"
	"github.com/tickforge/tickforge/internal/objstore"
)

// Reader loads per-day catalogs, honoring the legacy layouts still present
// in older buckets.
type Reader struct {
	store objstore.Store
	log   zerolog.Logger
}

// NewReader builds a catalog reader.
func NewReader(store objstore.Store, log zerolog.Logger) *Reader {
	return &Reader{store: store, log: log.With().Str("component", "catalog_reader").Logger()}
}

// LoadDay returns the catalog for one date, trying the canonical path and
// then the legacy fallbacks in order. objstore.ErrNotFound means no layout
// holds the date.
func (r *Reader) LoadDay(ctx context.Context, day time.Time) ([]domain.InstrumentDefinition, error) {
	keys := append([]string{objstore.CatalogDayKey(day)}, objstore.CatalogDayFallbacks(day)...)
	for i, key := range keys {
		data, err := r.store.Get(ctx, key)
		if errors.Is(err, objstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", key, err)
		}
		if i > 0 {
			r.log.Debug().Str("key", key).Msg("Catalog loaded from legacy layout")
		}
		return DecodeDefinitions(data)
	}
	return nil, fmt.Errorf("catalog for %s: %w", objstore.FormatDay(day), objstore.ErrNotFound)
}

// IndexByKey builds an instrument-key lookup over a day's definitions.
func IndexByKey(defs []domain.InstrumentDefinition) map[string]*domain.InstrumentDefinition {
	idx := make(map[string]*domain.InstrumentDefinition, len(defs))
	for i := range defs {
		idx[defs[i].InstrumentKey] = &defs[i]
	}
	return idx
}
