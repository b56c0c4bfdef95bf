// Package metrics provides Prometheus collectors for the Logos service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names as constants for consistency.
const (
	MetricCommitsTotal         = "logos_commits_total"
	MetricRejectionsTotal      = "logos_rejections_total"
	MetricCommitLatency        = "logos_commit_latency_seconds"
	MetricDeliveredTotal       = "logos_fanout_delivered_total"
	MetricOverflowsTotal       = "logos_subscriber_overflows_total"
	MetricActiveSubscriptions  = "logos_subscriptions_active"
	MetricStorageWriteLatency  = "logos_storage_write_seconds"
	MetricStorageReadLatency   = "logos_storage_read_seconds"
	MetricStorageCommitLatency = "logos_storage_batch_commit_seconds"
	MetricStorageWriteBytes    = "logos_storage_write_bytes_total"
	MetricStorageReadBytes     = "logos_storage_read_bytes_total"
)

// Metrics contains the Prometheus collectors for commits, fan-out and
// storage IO. All operations are thread-safe. Metrics also satisfies the
// storage wrapper's MetricsHook interface.
type Metrics struct {
	commits       prometheus.Counter
	rejections    *prometheus.CounterVec
	commitLatency prometheus.Histogram

	delivered  prometheus.Counter
	overflows  prometheus.Counter
	activeSubs prometheus.Gauge

	storageWriteLatency  prometheus.Histogram
	storageReadLatency   prometheus.Histogram
	storageCommitLatency prometheus.Histogram
	storageWriteBytes    prometheus.Counter
	storageReadBytes     prometheus.Counter
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The collectors are not registered; call Register with a registry.
func NewMetrics() *Metrics {
	ioBuckets := []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25}
	return &Metrics{
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCommitsTotal,
			Help: "Total number of entries committed to the log",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRejectionsTotal,
			Help: "Total number of submissions rejected, by error code",
		}, []string{"code"}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricCommitLatency,
			Help:    "Histogram of submission latency in seconds, from receipt to durable commit",
			Buckets: ioBuckets,
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDeliveredTotal,
			Help: "Total number of entries delivered to live subscribers",
		}),
		overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricOverflowsTotal,
			Help: "Total number of subscriptions cancelled because their queue overflowed",
		}),
		activeSubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricActiveSubscriptions,
			Help: "Number of currently registered live subscriptions",
		}),
		storageWriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricStorageWriteLatency,
			Help:    "Histogram of storage write latency in seconds",
			Buckets: ioBuckets,
		}),
		storageReadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricStorageReadLatency,
			Help:    "Histogram of storage read latency in seconds",
			Buckets: ioBuckets,
		}),
		storageCommitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricStorageCommitLatency,
			Help:    "Histogram of storage batch commit latency in seconds",
			Buckets: ioBuckets,
		}),
		storageWriteBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricStorageWriteBytes,
			Help: "Total bytes written to storage",
		}),
		storageReadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricStorageReadBytes,
			Help: "Total bytes read from storage",
		}),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncCommits increments the committed-entries counter.
func (m *Metrics) IncCommits() { m.commits.Inc() }

// IncRejections increments the rejection counter for an error code.
func (m *Metrics) IncRejections(code string) { m.rejections.WithLabelValues(code).Inc() }

// ObserveCommitLatency records one submission's receipt-to-commit latency.
func (m *Metrics) ObserveCommitLatency(seconds float64) { m.commitLatency.Observe(seconds) }

// IncDelivered increments the fan-out delivery counter.
func (m *Metrics) IncDelivered() { m.delivered.Inc() }

// IncOverflows increments the subscriber-overflow counter.
func (m *Metrics) IncOverflows() { m.overflows.Inc() }

// IncActiveSubscriptions records a subscription registering.
func (m *Metrics) IncActiveSubscriptions() { m.activeSubs.Inc() }

// DecActiveSubscriptions records a subscription going away.
func (m *Metrics) DecActiveSubscriptions() { m.activeSubs.Dec() }

// ObserveWrite implements the storage MetricsHook.
func (m *Metrics) ObserveWrite(elapsed time.Duration, bytes int) {
	m.storageWriteLatency.Observe(elapsed.Seconds())
	m.storageWriteBytes.Add(float64(bytes))
}

// ObserveRead implements the storage MetricsHook.
func (m *Metrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.storageReadLatency.Observe(elapsed.Seconds())
	m.storageReadBytes.Add(float64(bytes))
}

// ObserveBatchCommit implements the storage MetricsHook.
func (m *Metrics) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	m.storageCommitLatency.Observe(elapsed.Seconds())
	m.storageWriteBytes.Add(float64(bytes))
}

// Collectors returns all Prometheus collectors, in registration order.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.commits,
		m.rejections,
		m.commitLatency,
		m.delivered,
		m.overflows,
		m.activeSubs,
		m.storageWriteLatency,
		m.storageReadLatency,
		m.storageCommitLatency,
		m.storageWriteBytes,
		m.storageReadBytes,
	}
}

// Handler creates an HTTP handler exposing the registry's metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
