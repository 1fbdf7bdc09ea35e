package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "peptopt"

// Recorder publishes optimization metrics. A nil Recorder discards
// observations.
type Recorder struct {
	requests   *prometheus.CounterVec
	failures   *prometheus.CounterVec
	candidates *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New creates a recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimize_requests_total",
			Help:      "Completed optimizations by indication and scoring mode.",
		}, []string{"indication", "mode"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimize_failures_total",
			Help:      "Failed optimizations by indication.",
		}, []string{"indication"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_scored_total",
			Help:      "Candidates generated and scored by indication.",
		}, []string{"indication"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimize_duration_seconds",
			Help:      "Optimization latency by indication.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"indication"}),
	}
	reg.MustRegister(r.requests, r.failures, r.candidates, r.duration)
	return r
}

// Observe records one optimization. mode is ignored when err is set.
func (r *Recorder) Observe(indication, mode string, scored int, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(indication).Observe(d.Seconds())
	if err != nil {
		r.failures.WithLabelValues(indication).Inc()
		return
	}
	r.requests.WithLabelValues(indication, mode).Inc()
	r.candidates.WithLabelValues(indication).Add(float64(scored))
}

// Handler exposes everything gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
