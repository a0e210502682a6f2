package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/tickforge/tickforge/internal/domain"
	"github.com/tickforge/tickforge/internal/frame"
	"github.com/tickforge/tickforge/internal/metrics"
	"github.com/tickforge/tickforge/internal/objstore"
	"github.com/tickforge/tickforge/internal/ratelimit"
	"github.com/tickforge/tickforge/internal/vendorapi"
)

// Fetcher is the slice of the vendor client the orchestrator needs.
type Fetcher interface {
	TickFile(ctx context.Context, vendorExchange, product string, day time.Time, vendorSymbol string) ([]byte, error)
}

// Options bounds a download run.
type Options struct {
	BatchSize     int  // targets per batch; bounds in-flight memory
	MaxConcurrent int  // Gate 1: host semaphore capacity
	StrictMissing bool // count vendor 404s as failures
}

func (o *Options) normalize() {
	if o.BatchSize < 1 {
		o.BatchSize = 100
	}
	if o.MaxConcurrent < 1 {
		o.MaxConcurrent = 20
	}
}

// Target terminal statuses.
const (
	StatusUploaded = "uploaded"
	StatusNoData   = "no_data"
	StatusFailed   = "failed"
)

// TargetStatus is one target's outcome.
type TargetStatus struct {
	Status string
	Rows   int
	Error  string
}

// DownloadReport is the end-of-run summary. Per-target failures live here
// and are never raised as errors.
type DownloadReport struct {
	Processed       int
	Uploaded        int
	NoData          int
	Failed          int
	SkippedRows     int
	UploadedPaths   []string
	PerTargetStatus map[string]TargetStatus
	Elapsed         time.Duration
	// Throughput is completed targets per second.
	Throughput float64
}

// TargetID names a target in the per-target status map.
func TargetID(t domain.DownloadTarget) string {
	return fmt.Sprintf("%s|%s|%s", t.InstrumentKey, t.Product, objstore.FormatDay(t.Date))
}

// Orchestrator drives the fetch/decompress/coerce/upload pipeline under the
// two concurrency gates. It exclusively owns the rate limiter, semaphore,
// and shared clients for the duration of a run; none of them is mutated
// after construction.
type Orchestrator struct {
	vendor Fetcher
	store  objstore.Store
	bucket *ratelimit.DailyBucket
	sem    *ratelimit.Semaphore
	opts   Options
	met    *metrics.Pipeline
	log    zerolog.Logger
}

// New wires an orchestrator. The bucket carries the per-VM daily request
// budget; capacity is rate_limit_per_vm over a 24h horizon.
func New(vendor Fetcher, store objstore.Store, bucket *ratelimit.DailyBucket, opts Options, met *metrics.Pipeline, log zerolog.Logger) *Orchestrator {
	opts.normalize()
	return &Orchestrator{
		vendor: vendor,
		store:  store,
		bucket: bucket,
		sem:    ratelimit.NewSemaphore(opts.MaxConcurrent),
		opts:   opts,
		met:    met,
		log:    log.With().Str("component", "download_orchestrator").Logger(),
	}
}

// Download processes every target. Targets are partitioned into batches;
// batch N+1 does not start before batch N drains, and cancellation stops new
// batches while letting in-flight tasks complete. The returned report is
// valid even when the run is cut short.
func (o *Orchestrator) Download(ctx context.Context, targets []domain.DownloadTarget) (*DownloadReport, error) {
	start := time.Now()
	rep := &DownloadReport{PerTargetStatus: make(map[string]TargetStatus, len(targets))}
	var mu sync.Mutex

	total := len(targets)
	o.log.Info().Int("targets", total).Int("batch_size", o.opts.BatchSize).
		Int("max_concurrent", o.opts.MaxConcurrent).Msg("Starting download run")

	for offset := 0; offset < total; offset += o.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			o.log.Warn().Int("remaining", total-offset).Msg("Cancelled; not starting further batches")
			break
		}
		end := offset + o.opts.BatchSize
		if end > total {
			end = total
		}
		batch := targets[offset:end]

		p := pool.New().WithMaxGoroutines(len(batch))
		for _, t := range batch {
			t := t
			p.Go(func() {
				st := o.process(ctx, t)
				mu.Lock()
				rep.PerTargetStatus[TargetID(t)] = st.TargetStatus
				rep.Processed++
				rep.SkippedRows += st.skippedRows
				switch st.Status {
				case StatusUploaded:
					rep.Uploaded++
					rep.UploadedPaths = append(rep.UploadedPaths, st.path)
				case StatusNoData:
					rep.NoData++
				default:
					rep.Failed++
				}
				mu.Unlock()
			})
		}
		p.Wait()
		o.met.BatchesCompleted.Inc()

		elapsed := time.Since(start)
		done := end
		eta := time.Duration(0)
		if done > 0 {
			eta = time.Duration(float64(elapsed) / float64(done) * float64(total-done))
		}
		o.log.Info().
			Int("done", done).Int("total", total).
			Int("failed", rep.Failed).Int("no_data", rep.NoData).
			Dur("elapsed", elapsed.Round(time.Second)).
			Dur("eta", eta.Round(time.Second)).
			Msg("Batch complete")
	}

	rep.Elapsed = time.Since(start)
	if rep.Elapsed > 0 {
		rep.Throughput = float64(rep.Processed) / rep.Elapsed.Seconds()
	}
	o.log.Info().Int("uploaded", rep.Uploaded).Int("no_data", rep.NoData).
		Int("failed", rep.Failed).Dur("elapsed", rep.Elapsed.Round(time.Second)).
		Float64("targets_per_sec", rep.Throughput).Msg("Download run finished")
	return rep, nil
}

// processResult extends the public status with fields only the aggregation
// loop needs.
type processResult struct {
	TargetStatus
	path        string
	skippedRows int
}

// process runs one target through the strictly sequential
// fetch -> decompress -> coerce -> upload chain. The gates are taken in
// order (rate budget, then host slot); once work starts it is shielded from
// cancellation so no upload is interrupted mid-write.
func (o *Orchestrator) process(ctx context.Context, t domain.DownloadTarget) (st processResult) {
	if err := o.bucket.Acquire(ctx); err != nil {
		st.Status, st.Error = StatusFailed, err.Error()
		return st
	}
	if err := o.sem.Acquire(ctx); err != nil {
		st.Status, st.Error = StatusFailed, err.Error()
		return st
	}
	defer o.sem.Release()
	workCtx := context.WithoutCancel(ctx)

	raw, err := o.vendor.TickFile(workCtx, t.VendorExchange, t.Product, t.Date, t.VendorSymbol)
	if err != nil {
		if errors.Is(err, vendorapi.ErrNoData) && !o.opts.StrictMissing {
			o.met.DownloadsTotal.WithLabelValues(StatusNoData).Inc()
			st.Status = StatusNoData
			return st
		}
		o.met.DownloadsTotal.WithLabelValues(StatusFailed).Inc()
		o.log.Warn().Err(err).Str("target", TargetID(t)).Msg("Fetch failed")
		st.Status, st.Error = StatusFailed, err.Error()
		return st
	}
	o.met.DownloadBytes.Add(float64(len(raw)))

	schema, err := frame.SchemaFor(t.Product)
	if err != nil {
		st.Status, st.Error = StatusFailed, err.Error()
		return st
	}
	f, prep, err := frame.ParseCSV(schema, bytes.NewReader(raw))
	if err != nil {
		// A complete but unparseable response is not retried.
		o.met.DownloadsTotal.WithLabelValues(StatusFailed).Inc()
		o.log.Warn().Err(err).Str("target", TargetID(t)).Msg("Parse failed")
		st.Status, st.Error = StatusFailed, err.Error()
		return st
	}
	if prep.SkippedRows > 0 {
		o.log.Warn().Int("rows", prep.SkippedRows).Str("target", TargetID(t)).
			Msg("Skipped malformed rows")
	}

	data, err := f.Bytes()
	if err != nil {
		st.Status, st.Error = StatusFailed, err.Error()
		return st
	}
	key := objstore.TickDataKey(t.Date, t.Product, t.InstrumentKey)
	if err := objstore.PutWithRetry(workCtx, o.store, key, data, o.log); err != nil {
		o.met.DownloadsTotal.WithLabelValues(StatusFailed).Inc()
		st.Status, st.Error = StatusFailed, err.Error()
		return st
	}

	o.met.DownloadsTotal.WithLabelValues(StatusUploaded).Inc()
	o.met.RowsWritten.Add(float64(prep.Rows))
	st.Status = StatusUploaded
	st.Rows = prep.Rows
	st.path = key
	st.skippedRows = prep.SkippedRows
	return st
}
