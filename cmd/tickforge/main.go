package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	appName = "tickforge"
	version = "v1.0.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Historical tick-data ingestion pipeline",
		Version: version,
		Long: `tickforge ingests historical cryptocurrency market data: it generates the
daily instrument catalog from vendor exchange listings, downloads raw tick
archives into the object store, detects coverage gaps by set difference, and
backfills exactly the gaps it found.`,
		SilenceUsage: true,
	}

	// Tolerate snake_case spellings of the flag names.
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("env-file", "", "Path to .env file")
	rootCmd.PersistentFlags().String("log-level", "", "Override configured log level (DEBUG|INFO|WARNING|ERROR|CRITICAL)")

	instrumentsCmd := &cobra.Command{
		Use:   "instruments",
		Short: "Generate daily instrument catalogs",
		Long:  "Fetches vendor exchange listings for each date in the range, parses them into canonical instrument definitions, and writes one catalog file per day",
		RunE:  runInstruments,
	}

	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Backfill gaps from missing-data reports",
		Long:  "Reads the per-day missing-data reports for the date range and downloads exactly the reported gaps. Dates without a report are assumed complete",
		RunE:  runDownload,
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Detect missing tick files",
		Long:  "Compares each day's catalog expectations against the tick-data inventory and writes a missing-data report for every day with gaps",
		RunE:  runValidate,
	}

	checkGapsCmd := &cobra.Command{
		Use:   "check-gaps",
		Short: "Summarize expected coverage from catalogs only",
		Long:  "Loads each day's catalog and prints the expected file counts and whether a missing-data report exists, without listing the tick-data inventory",
		RunE:  runCheckGaps,
	}

	pipelineCmd := &cobra.Command{
		Use:   "full-pipeline",
		Short: "Run catalog generation, download, and detection in sequence",
		RunE:  runFullPipeline,
	}

	for _, cmd := range []*cobra.Command{instrumentsCmd, downloadCmd, validateCmd, checkGapsCmd, pipelineCmd} {
		cmd.Flags().String("start-date", "", "First date, YYYY-MM-DD (required)")
		cmd.Flags().String("end-date", "", "Last date, YYYY-MM-DD (required)")
		cmd.Flags().String("exchanges", "", "Comma-separated venue names or vendor exchange ids")
		cmd.Flags().String("venues", "", "Comma-separated venue filter for detection")
		cmd.Flags().String("instrument-types", "", "Comma-separated instrument type filter")
		cmd.Flags().String("data-types", "", "Comma-separated product filter")
		cmd.Flags().Int("max-instruments", 0, "Truncate each day's catalog to N instruments (0 = unlimited)")
		cmd.Flags().Int("max-workers", 0, "Override configured concurrent download limit")
		cmd.Flags().Int("shard-index", -1, "Override configured shard index")
		cmd.Flags().Int("total-shards", 0, "Override configured shard count")
		cmd.Flags().String("output", "", "Write the run summary as JSON to this file")
	}

	rootCmd.AddCommand(instrumentsCmd, downloadCmd, validateCmd, checkGapsCmd, pipelineCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
