package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tickforge/tickforge/internal/catalog"
)

func runInstruments(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.finish()

	start, end, err := dateRange(cmd)
	if err != nil {
		return err
	}
	maxInstruments, _ := cmd.Flags().GetInt("max-instruments")

	gen := catalog.NewGenerator(app.vendor, app.store, app.met, app.log)
	rep, err := gen.Generate(cmd.Context(), catalog.Options{
		Exchanges:      csvFlag(cmd, "exchanges"),
		Start:          start,
		End:            end,
		MaxInstruments: maxInstruments,
		EnableCaching:  app.cfg.EnableCaching,
	})
	if err != nil {
		return err
	}
	if err := writeSummary(cmd, rep); err != nil {
		return err
	}
	if len(rep.FailedVenues) > 0 {
		return fmt.Errorf("catalog generation failed for venues: %v", rep.FailedVenues)
	}
	app.log.Info().Int("days", rep.Days).Int("rows", rep.RowsWritten).
		Int("failed_parsing", rep.FailedParsing).Int("filtered", rep.Filtered).
		Msg("Catalog generation complete")
	return nil
}
