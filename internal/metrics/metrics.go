// Package metrics exposes Prometheus metrics for the ingest pipeline.
package metrics

import (
	"time"

	"github.com/dvloznov/txn-quality/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "txn_quality"

// PipelineMetrics holds the Prometheus metrics of the ingest pipeline.
type PipelineMetrics struct {
	RecordsTotal  *prometheus.CounterVec
	FlagsTotal    *prometheus.CounterVec
	BatchesTotal  *prometheus.CounterVec
	BatchDuration prometheus.Histogram
}

// NewPipelineMetrics creates the pipeline metrics and registers them with reg.
// A nil reg registers with the default registry.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PipelineMetrics{
		RecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Total number of transaction records by outcome.",
		}, []string{"outcome"}), // outcome: read, inserted, skipped
		FlagsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "flags_total",
			Help:      "Total number of quality flags raised by flag.",
		}, []string{"flag"}),
		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "batches_total",
			Help:      "Total number of ingest batches by status.",
		}, []string{"status"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "batch_duration_seconds",
			Help:      "Time taken to ingest one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

// ObserveRecords adds n records with the given outcome.
func (m *PipelineMetrics) ObserveRecords(outcome string, n int) {
	m.RecordsTotal.WithLabelValues(outcome).Add(float64(n))
}

// ObserveFlag adds n occurrences of flag.
func (m *PipelineMetrics) ObserveFlag(flag domain.Flag, n int) {
	m.FlagsTotal.WithLabelValues(string(flag)).Add(float64(n))
}

// ObserveBatch records a finished batch.
func (m *PipelineMetrics) ObserveBatch(status string, d time.Duration) {
	m.BatchesTotal.WithLabelValues(status).Inc()
	m.BatchDuration.Observe(d.Seconds())
}
