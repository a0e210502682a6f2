package gapfill

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tickforge/tickforge/internal/catalog"
	"github.com/tickforge/tickforge/internal/domain"
	"github.com/tickforge/tickforge/internal/missing"
	"github.com/tickforge/tickforge/internal/objstore"
	"github.com/tickforge/tickforge/internal/orchestrator"
)

// Report summarizes a gap-fill run.
type Report struct {
	DaysWithReports int
	RowsRead        int
	RowsUnmatched   int // report rows whose catalog entry is gone
	TargetsQueued   int
	Uploaded        int
	NoData          int
	Failed          int
}

// Downloader turns missing-data reports back into download targets and
// drives the orchestrator over exactly those gaps.
type Downloader struct {
	store  objstore.Store
	reader *catalog.Reader
	orch   *orchestrator.Orchestrator
	log    zerolog.Logger
}

// New wires a gap downloader.
func New(store objstore.Store, reader *catalog.Reader, orch *orchestrator.Orchestrator, log zerolog.Logger) *Downloader {
	return &Downloader{
		store:  store,
		reader: reader,
		orch:   orch,
		log:    log.With().Str("component", "gap_downloader").Logger(),
	}
}

// Fill processes every date in [start, end]. A missing report means no known
// gaps for the date, never an error. Report rows whose catalog entry has
// become unreadable are logged and skipped per row.
func (d *Downloader) Fill(ctx context.Context, start, end time.Time, shardIndex, totalShards int) (*Report, error) {
	rep := &Report{}
	for day := objstore.DayOf(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		data, err := d.store.Get(ctx, objstore.MissingReportKey(day))
		if errors.Is(err, objstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return rep, err
		}
		entries, err := missing.DecodeReport(data)
		if err != nil {
			return rep, err
		}
		rep.DaysWithReports++
		rep.RowsRead += len(entries)

		targets, unmatched := d.rehydrate(ctx, day, entries)
		rep.RowsUnmatched += unmatched
		targets = orchestrator.FilterShard(targets, shardIndex, totalShards)
		if len(targets) == 0 {
			continue
		}
		rep.TargetsQueued += len(targets)

		dl, err := d.orch.Download(ctx, targets)
		if err != nil {
			return rep, err
		}
		rep.Uploaded += dl.Uploaded
		rep.NoData += dl.NoData
		rep.Failed += dl.Failed
	}
	d.log.Info().Int("days", rep.DaysWithReports).Int("targets", rep.TargetsQueued).
		Int("uploaded", rep.Uploaded).Int("failed", rep.Failed).
		Msg("Gap fill finished")
	return rep, nil
}

// rehydrate joins report rows back to the day's catalog to recover the
// vendor identifiers a download needs.
func (d *Downloader) rehydrate(ctx context.Context, day time.Time, entries []domain.MissingEntry) ([]domain.DownloadTarget, int) {
	defs, err := d.reader.LoadDay(ctx, day)
	if err != nil {
		d.log.Warn().Err(err).Str("day", objstore.FormatDay(day)).
			Msg("Catalog unreadable for report; skipping all rows")
		return nil, len(entries)
	}
	index := catalog.IndexByKey(defs)

	var targets []domain.DownloadTarget
	unmatched := 0
	for _, e := range entries {
		def, ok := index[e.InstrumentKey]
		if !ok {
			unmatched++
			d.log.Warn().Str("instrument", e.InstrumentKey).Str("day", objstore.FormatDay(day)).
				Msg("Report row has no catalog entry; skipping")
			continue
		}
		targets = append(targets, domain.DownloadTarget{
			InstrumentKey:  e.InstrumentKey,
			VendorExchange: def.VendorExchange,
			VendorSymbol:   def.VendorSymbol,
			Product:        e.Product,
			Date:           day,
		})
	}
	return targets, unmatched
}
