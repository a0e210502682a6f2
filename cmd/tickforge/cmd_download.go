package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tickforge/tickforge/internal/catalog"
	"github.com/tickforge/tickforge/internal/gapfill"
)

func runDownload(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.finish()

	start, end, err := dateRange(cmd)
	if err != nil {
		return err
	}
	orch, err := app.orchestrator()
	if err != nil {
		return err
	}

	reader := catalog.NewReader(app.store, app.log)
	filler := gapfill.New(app.store, reader, orch, app.log)
	rep, err := filler.Fill(cmd.Context(), start, end, app.cfg.ShardIndex, app.cfg.TotalShards)
	if err != nil {
		return err
	}
	if err := writeSummary(cmd, rep); err != nil {
		return err
	}
	if rep.Failed > 0 {
		return fmt.Errorf("%d of %d gap downloads failed", rep.Failed, rep.TargetsQueued)
	}
	return nil
}
