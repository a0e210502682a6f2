package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tickforge/tickforge/internal/catalog"
	"github.com/tickforge/tickforge/internal/objstore"
	"github.com/tickforge/tickforge/internal/orchestrator"
)

// runCheckGaps is the lightweight coverage summary: it reads only catalogs
// and report markers, never the tick-data inventory.
func runCheckGaps(cmd *cobra.Command, args []string) error {
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
	reader := catalog.NewReader(app.store, app.log)

	totalExpected := 0
	daysWithReports := 0
	for day := objstore.DayOf(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		defs, err := reader.LoadDay(ctx, day)
		if errors.Is(err, objstore.ErrNotFound) {
			app.log.Warn().Str("day", objstore.FormatDay(day)).Msg("No catalog for date")
			continue
		}
		if err != nil {
			return err
		}
		targets := orchestrator.TargetsForDay(defs, day)
		targets = orchestrator.FilterProducts(targets, csvFlag(cmd, "data-types"))

		hasReport, err := app.store.Exists(ctx, objstore.MissingReportKey(day))
		if err != nil {
			return err
		}
		if hasReport {
			daysWithReports++
		}
		totalExpected += len(targets)
		app.log.Info().Str("day", objstore.FormatDay(day)).
			Int("instruments", len(defs)).Int("expected_files", len(targets)).
			Bool("missing_report", hasReport).Msg("Coverage")
	}
	app.log.Info().Int("expected_files", totalExpected).
		Int("days_with_reports", daysWithReports).Msg("Gap check complete")
	return nil
}
