package metrics

import (
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Pipeline holds the prometheus collectors for one run. The registry is
// private to the process; no HTTP endpoint is mounted. The final gather is
// logged at the end of a run instead.
type Pipeline struct {
	reg *prometheus.Registry

	DownloadsTotal   *prometheus.CounterVec // status: uploaded|failed|no_data
	DownloadBytes    prometheus.Counter
	RowsWritten      prometheus.Counter
	RetriesTotal     prometheus.Counter
	ParseFailures    *prometheus.CounterVec // venue
	CatalogRows      *prometheus.CounterVec // venue
	MissingDetected  prometheus.Counter
	BatchesCompleted prometheus.Counter
}

// NewPipeline builds and registers the pipeline collectors.
func NewPipeline() *Pipeline {
	p := &Pipeline{
		reg: prometheus.NewRegistry(),
		DownloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickforge_downloads_total",
			Help: "Download targets by terminal status",
		}, []string{"status"}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickforge_download_bytes_total",
			Help: "Decompressed bytes fetched from the vendor archive",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickforge_rows_written_total",
			Help: "Tick rows written to the object store",
		}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickforge_vendor_retries_total",
			Help: "Vendor request retries across all categories",
		}),
		ParseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickforge_symbol_parse_failures_total",
			Help: "Vendor symbols rejected by the parser",
		}, []string{"venue"}),
		CatalogRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickforge_catalog_rows_total",
			Help: "Instrument definitions written to the catalog",
		}, []string{"venue"}),
		MissingDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickforge_missing_entries_total",
			Help: "Expected-but-absent tick files detected",
		}),
		BatchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickforge_batches_completed_total",
			Help: "Download batches drained",
		}),
	}
	p.reg.MustRegister(
		p.DownloadsTotal, p.DownloadBytes, p.RowsWritten, p.RetriesTotal,
		p.ParseFailures, p.CatalogRows, p.MissingDetected, p.BatchesCompleted,
	)
	return p
}

// LogSummary writes every non-zero counter to the log.
func (p *Pipeline) LogSummary(log zerolog.Logger) {
	families, err := p.reg.Gather()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to gather metrics")
		return
	}
	ev := log.Info()
	names := make([]string, 0, len(families))
	values := make(map[string]float64, len(families))
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, l := range m.GetLabel() {
				name = fmt.Sprintf("%s{%s=%s}", name, l.GetName(), l.GetValue())
			}
			if v := m.GetCounter().GetValue(); v > 0 {
				names = append(names, name)
				values[name] = v
			}
		}
	}
	sort.Strings(names)
	for _, n := range names {
		ev = ev.Float64(n, values[n])
	}
	ev.Msg("Run metrics")
}
