// Package metrics defines the Prometheus collectors for the indexing pipeline
// and exposes an HTTP handler for scraping. Every recording method is safe to
// call on a nil *Metrics, which is how metrics are disabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	DocsIndexedTotal  prometheus.Counter
	DocsSkippedTotal  prometheus.Counter
	SpillsTotal       *prometheus.CounterVec
	SpillBytes        prometheus.Histogram
	SegmentsMerged    prometheus.Counter
	TermsWrittenTotal prometheus.Counter
	MergeDuration     prometheus.Histogram
	RunDuration       *prometheus.HistogramVec
	RunsTotal         *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them through Handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexer_docs_indexed_total",
				Help: "Total documents tokenized and indexed.",
			},
		),
		DocsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexer_docs_skipped_total",
				Help: "Total documents skipped because they could not be read.",
			},
		),
		SpillsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_spills_total",
				Help: "Total in-memory index spills to segment files by status.",
			},
			[]string{"status"},
		),
		SpillBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "indexer_spill_bytes",
				Help:    "Size of spilled segment files in bytes.",
				Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
			},
		),
		SegmentsMerged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexer_segments_merged_total",
				Help: "Total segment files consumed by the external merge.",
			},
		),
		TermsWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexer_terms_written_total",
				Help: "Total term blocks written to final indexes.",
			},
		),
		MergeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "indexer_merge_duration_seconds",
				Help:    "External merge latency in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexer_run_duration_seconds",
				Help:    "End-to-end pipeline run latency in seconds by status.",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"status"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_runs_total",
				Help: "Total pipeline runs by status (success, error).",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.DocsIndexedTotal,
		m.DocsSkippedTotal,
		m.SpillsTotal,
		m.SpillBytes,
		m.SegmentsMerged,
		m.TermsWrittenTotal,
		m.MergeDuration,
		m.RunDuration,
		m.RunsTotal,
	)

	return m
}

func (m *Metrics) DocIndexed() {
	if m == nil {
		return
	}
	m.DocsIndexedTotal.Inc()
}

func (m *Metrics) DocSkipped() {
	if m == nil {
		return
	}
	m.DocsSkippedTotal.Inc()
}

// Spill records one spill attempt; size is ignored on failure.
func (m *Metrics) Spill(size int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SpillsTotal.WithLabelValues("error").Inc()
		return
	}
	m.SpillsTotal.WithLabelValues("success").Inc()
	m.SpillBytes.Observe(float64(size))
}

func (m *Metrics) Merged(segments, terms int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SegmentsMerged.Add(float64(segments))
	m.TermsWrittenTotal.Add(float64(terms))
	m.MergeDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Run(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
