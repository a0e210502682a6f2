package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tickforge/tickforge/internal/catalog"
	"github.com/tickforge/tickforge/internal/missing"
	"github.com/tickforge/tickforge/internal/objstore"
	"github.com/tickforge/tickforge/internal/orchestrator"
)

// runFullPipeline chains catalog generation, the bulk download, and gap
// detection over one date range.
func runFullPipeline(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.finish()

	start, end, err := dateRange(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	maxInstruments, _ := cmd.Flags().GetInt("max-instruments")
	products := csvFlag(cmd, "data-types")

	gen := catalog.NewGenerator(app.vendor, app.store, app.met, app.log)
	genRep, err := gen.Generate(ctx, catalog.Options{
		Exchanges:      csvFlag(cmd, "exchanges"),
		Start:          start,
		End:            end,
		MaxInstruments: maxInstruments,
		EnableCaching:  app.cfg.EnableCaching,
	})
	if err != nil {
		return err
	}
	if len(genRep.FailedVenues) > 0 {
		return fmt.Errorf("catalog generation failed for venues: %v", genRep.FailedVenues)
	}

	orch, err := app.orchestrator()
	if err != nil {
		return err
	}
	reader := catalog.NewReader(app.store, app.log)

	failed := 0
	for day := objstore.DayOf(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		defs, err := reader.LoadDay(ctx, day)
		if err != nil {
			return fmt.Errorf("load catalog for %s: %w", objstore.FormatDay(day), err)
		}
		targets := orchestrator.TargetsForDay(defs, day)
		targets = orchestrator.FilterProducts(targets, products)
		targets = orchestrator.FilterShard(targets, app.cfg.ShardIndex, app.cfg.TotalShards)
		if len(targets) == 0 {
			continue
		}
		dlRep, err := orch.Download(ctx, targets)
		if err != nil {
			return err
		}
		failed += dlRep.Failed
	}

	det := missing.NewDetector(app.store, reader, app.met, app.log)
	detRep, err := det.Detect(ctx, start, end, missing.Filters{
		Venues:   csvFlag(cmd, "venues"),
		Types:    csvFlag(cmd, "instrument-types"),
		Products: products,
	})
	if err != nil {
		return err
	}

	summary := struct {
		Catalog   any `json:"catalog"`
		Failed    int `json:"download_failures"`
		Detection any `json:"detection"`
	}{genRep, failed, detRep}
	if err := writeSummary(cmd, summary); err != nil {
		return err
	}

	app.log.Info().Int("catalog_rows", genRep.RowsWritten).
		Int("download_failures", failed).
		Int("missing", detRep.TotalMissing).
		Float64("coverage_pct", detRep.CoveragePct).
		Msg("Pipeline complete")
	if failed > 0 {
		return fmt.Errorf("%d downloads failed", failed)
	}
	return nil
}
