package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tickforge/tickforge/internal/config"
	"github.com/tickforge/tickforge/internal/logging"
	"github.com/tickforge/tickforge/internal/metrics"
	"github.com/tickforge/tickforge/internal/objstore"
	"github.com/tickforge/tickforge/internal/orchestrator"
	"github.com/tickforge/tickforge/internal/ratelimit"
	"github.com/tickforge/tickforge/internal/vendorapi"
)

// app is the shared runtime every subcommand builds on: frozen config, one
// logger, one object-store client, one vendor client, one metrics registry.
type app struct {
	cfg    config.Config
	log    zerolog.Logger
	store  objstore.Store
	vendor *vendorapi.Client
	met    *metrics.Pipeline
}

// newApp loads configuration, applies CLI overrides, and constructs the
// process-wide clients. Everything here fails before any pipeline I/O.
func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetInt("max-workers"); v > 0 {
		cfg.MaxConcurrent = v
	}
	if v, _ := cmd.Flags().GetInt("shard-index"); v >= 0 {
		cfg.ShardIndex = v
	}
	if v, _ := cmd.Flags().GetInt("total-shards"); v > 0 {
		cfg.TotalShards = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logging.Setup(cfg.LogLevel, cfg.LogDestination)
	if err != nil {
		return nil, err
	}
	log = log.With().Str("run_id", uuid.NewString()).Logger()

	store, err := objstore.NewS3Store(cmd.Context(), objstore.S3Options{
		Bucket: cfg.Bucket,
		Region: cfg.Region,
	}, log)
	if err != nil {
		return nil, err
	}

	met := metrics.NewPipeline()
	vendor := vendorapi.NewClient(vendorapi.Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout(),
		MaxRetries: cfg.MaxRetries,
		OnRetry:    met.RetriesTotal.Inc,
	}, log)

	return &app{
		cfg:    cfg,
		log:    log,
		store:  store,
		vendor: vendor,
		met:    met,
	}, nil
}

// orchestrator builds the downloader over the shared clients with the run's
// daily request budget.
func (a *app) orchestrator() (*orchestrator.Orchestrator, error) {
	bucket, err := ratelimit.NewDailyBucket(a.cfg.RateLimitPerVM, ratelimit.DefaultRefillPeriod)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(a.vendor, a.store, bucket, orchestrator.Options{
		BatchSize:     a.cfg.BatchSize,
		MaxConcurrent: a.cfg.MaxConcurrent,
	}, a.met, a.log), nil
}

// finish logs the metrics summary every subcommand ends with.
func (a *app) finish() {
	a.met.LogSummary(a.log)
}

// writeSummary dumps a run report to the --output file when one was asked
// for.
func writeSummary(cmd *cobra.Command, report any) error {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run summary: %w", err)
	}
	return nil
}

// dateRange parses the required --start-date/--end-date pair.
func dateRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	startStr, _ := cmd.Flags().GetString("start-date")
	endStr, _ := cmd.Flags().GetString("end-date")
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--start-date and --end-date are required")
	}
	start, err := objstore.ParseDay(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--start-date: %w", err)
	}
	end, err := objstore.ParseDay(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--end-date: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end-date %s precedes --start-date %s", endStr, startStr)
	}
	return start, end, nil
}

// csvFlag splits a comma-separated flag into trimmed, non-empty values.
func csvFlag(cmd *cobra.Command, name string) []string {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
