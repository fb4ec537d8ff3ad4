package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Telemetry tracks per-source retrieval outcomes and query-level results.
// All methods are nil-safe so components can run without metrics wired.
type Telemetry struct {
	sourceRequests *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec
	queries        *prometheus.CounterVec
	modelFailures  prometheus.Counter
	evidenceSize   prometheus.Histogram
}

// New registers the telemetry collectors on the given registerer.
func New(reg prometheus.Registerer) *Telemetry {
	factory := promauto.With(reg)
	return &Telemetry{
		sourceRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sourcefinder_source_requests_total",
			Help: "Source adapter invocations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		sourceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sourcefinder_source_duration_seconds",
			Help:    "Source adapter latency by kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sourcefinder_queries_total",
			Help: "Processed queries by outcome.",
		}, []string{"outcome"}),
		modelFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sourcefinder_model_failures_total",
			Help: "Synthesis calls that failed with an unavailable model.",
		}),
		evidenceSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sourcefinder_evidence_records",
			Help:    "Number of source records included per response.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
	}
}

func (t *Telemetry) RecordSource(kind string, outcome string, elapsed time.Duration) {
	if t == nil {
		return
	}
	t.sourceRequests.WithLabelValues(kind, outcome).Inc()
	t.sourceDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (t *Telemetry) RecordQuery(outcome string) {
	if t == nil {
		return
	}
	t.queries.WithLabelValues(outcome).Inc()
}

func (t *Telemetry) RecordModelFailure() {
	if t == nil {
		return
	}
	t.modelFailures.Inc()
}

func (t *Telemetry) RecordEvidence(count int) {
	if t == nil {
		return
	}
	t.evidenceSize.Observe(float64(count))
}
