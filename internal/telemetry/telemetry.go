// Package telemetry exports the counters of a finished run as Prometheus
// metrics.
//
// Metrics live in a private registry per run so concurrent runs and tests
// never share state. The CLI writes them in the node_exporter textfile
// format with WriteToTextfile.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/littleponywork/IPMES/internal/engine"
)

// Metrics holds the collectors for one run.
type Metrics struct {
	registry *prometheus.Registry

	peakPoolSize   prometheus.Gauge
	results        prometheus.Counter
	batches        prometheus.Counter
	events         prometheus.Counter
	skippedBatches prometheus.Counter
	triggerCounts  *prometheus.GaugeVec
	usageCounts    *prometheus.GaugeVec
	runDuration    prometheus.Histogram
}

// New creates the collectors in a fresh registry. Every series carries a
// run_id constant label.
func New(runID string) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := prometheus.Labels{"run_id": runID}

	return &Metrics{
		registry: reg,
		peakPoolSize: f.NewGauge(prometheus.GaugeOpts{
			Name:        "ipmes_peak_pool_size",
			Help:        "Peak number of partial results buffered by the matcher and join",
			ConstLabels: labels,
		}),
		results: f.NewCounter(prometheus.CounterOpts{
			Name:        "ipmes_results_total",
			Help:        "Distinct full matches found",
			ConstLabels: labels,
		}),
		batches: f.NewCounter(prometheus.CounterOpts{
			Name:        "ipmes_batches_total",
			Help:        "Event batches processed",
			ConstLabels: labels,
		}),
		events: f.NewCounter(prometheus.CounterOpts{
			Name:        "ipmes_events_total",
			Help:        "Events in processed batches",
			ConstLabels: labels,
		}),
		skippedBatches: f.NewCounter(prometheus.CounterOpts{
			Name:        "ipmes_skipped_batches_total",
			Help:        "Batches rejected as out of order",
			ConstLabels: labels,
		}),
		triggerCounts: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "ipmes_trigger_count",
			Help:        "Events matching each TC-Query position",
			ConstLabels: labels,
		}, []string{"tcq", "position"}),
		usageCounts: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "ipmes_join_usage",
			Help:        "TC-Query results offered to the join",
			ConstLabels: labels,
		}, []string{"tcq"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:        "ipmes_run_duration_seconds",
			Help:        "Wall time of a run",
			Buckets:     prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~43min
			ConstLabels: labels,
		}),
	}
}

// Record copies the counters of r into the collectors.
func (m *Metrics) Record(r engine.Report) {
	m.peakPoolSize.Set(float64(r.PeakPoolSize))
	m.results.Add(float64(r.NumResults))
	m.batches.Add(float64(r.Batches))
	m.events.Add(float64(r.Events))
	m.skippedBatches.Add(float64(r.SkippedBatches))

	for tcq, counts := range r.TriggerCounts {
		for pos, n := range counts {
			m.triggerCounts.WithLabelValues(strconv.Itoa(tcq), strconv.Itoa(pos)).Set(float64(n))
		}
	}
	for tcq, n := range r.UsageCounts {
		m.usageCounts.WithLabelValues(strconv.Itoa(tcq)).Set(float64(n))
	}
}

// ObserveDuration records the wall time of the run.
func (m *Metrics) ObserveDuration(d time.Duration) {
	m.runDuration.Observe(d.Seconds())
}

// Gatherer exposes the registry, for a scrape handler or tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteToTextfile writes every metric to path in the text exposition
// format. The file is replaced atomically.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
