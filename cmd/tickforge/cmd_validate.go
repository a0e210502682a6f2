package main

import (
	"github.com/spf13/cobra"

	"github.com/tickforge/tickforge/internal/catalog"
	"github.com/tickforge/tickforge/internal/missing"
)

func runValidate(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.finish()

	start, end, err := dateRange(cmd)
	if err != nil {
		return err
	}

	det := missing.NewDetector(app.store, catalog.NewReader(app.store, app.log), app.met, app.log)
	rep, err := det.Detect(cmd.Context(), start, end, missing.Filters{
		Venues:   csvFlag(cmd, "venues"),
		Types:    csvFlag(cmd, "instrument-types"),
		Products: csvFlag(cmd, "data-types"),
	})
	if err != nil {
		return err
	}
	if err := writeSummary(cmd, rep); err != nil {
		return err
	}
	app.log.Info().Int("expected", rep.TotalExpected).Int("missing", rep.TotalMissing).
		Int("days_with_missing", rep.DaysWithMissing).Strs("skipped_days", rep.SkippedDays).
		Float64("coverage_pct", rep.CoveragePct).Msg("Validation complete")
	return nil
}
