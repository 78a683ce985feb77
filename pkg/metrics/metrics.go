package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arcuru/eidetica/pkg/storage"
)

var (
	EntriesPutTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eidetica_entries_put_total",
			Help: "Total number of entries persisted to a storage backend",
		},
	)

	CommitFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eidetica_commit_failures_total",
			Help: "Total number of AtomicOp commits rejected, by failure reason",
		},
		[]string{"reason"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eidetica_query_duration_seconds",
			Help:    "Duration of storage backend queries by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	TreesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eidetica_trees_total",
			Help: "Total number of root entries (trees) known to the backend",
		},
	)

	EntriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eidetica_entries_total",
			Help: "Total number of entries known to the backend, across all trees",
		},
	)

	VerificationFailuresTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eidetica_verification_failed_entries",
			Help: "Total number of entries currently marked Failed verification",
		},
	)
)

func init() {
	prometheus.MustRegister(EntriesPutTotal)
	prometheus.MustRegister(CommitFailuresTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(TreesTotal)
	prometheus.MustRegister(EntriesTotal)
	prometheus.MustRegister(VerificationFailuresTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// promRecorder is the Prometheus-backed storage.Recorder a caller injects
// into a backend constructor. Core packages never import client_golang
// directly; they depend only on storage.Recorder.
type promRecorder struct{}

// NewRecorder returns a storage.Recorder that reports into the package's
// registered Prometheus collectors.
func NewRecorder() storage.Recorder { return promRecorder{} }

func (promRecorder) EntriesPut(n int) {
	EntriesPutTotal.Add(float64(n))
	EntriesTotal.Add(float64(n))
}

func (promRecorder) CommitFailed(reason string) {
	CommitFailuresTotal.WithLabelValues(reason).Inc()
}

func (promRecorder) QueryDuration(op string, seconds float64) {
	QueryDuration.WithLabelValues(op).Observe(seconds)
}
