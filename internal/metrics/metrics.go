// Package metrics exposes dispatcher counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names.
const (
	MetricIntentsTotal           = "flame_intents_total"
	MetricOutcomesTotal          = "flame_outcomes_total"
	MetricRequestDurationSeconds = "flame_request_duration_seconds"
	MetricInFlight               = "flame_in_flight"
)

// Recorder collects dispatcher metrics on its own registry.
//
// A nil *Recorder is valid and records nothing, so callers never need to
// check whether metrics are enabled.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Recorder struct {
	registry *prometheus.Registry

	intentsTotal    *prometheus.CounterVec
	outcomesTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.intentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricIntentsTotal,
			Help: "Intents dispatched, by op and strategy.",
		},
		[]string{"op", "strategy"},
	)
	r.outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricOutcomesTotal,
			Help: "Intent outcomes, by op and status (ok, failed, superseded).",
		},
		[]string{"op", "status"},
	)
	r.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricRequestDurationSeconds,
			Help:    "Backend request duration in seconds, by op.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	r.inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricInFlight,
			Help: "Handler tasks currently running.",
		},
	)

	r.registry.MustRegister(r.intentsTotal, r.outcomesTotal, r.requestDuration, r.inFlight)
	return r
}

// IntentDispatched counts one dispatch.
func (r *Recorder) IntentDispatched(op, strategy string) {
	if r == nil {
		return
	}
	r.intentsTotal.WithLabelValues(op, strategy).Inc()
}

// OutcomeRecorded counts one outcome.
func (r *Recorder) OutcomeRecorded(op, status string) {
	if r == nil {
		return
	}
	r.outcomesTotal.WithLabelValues(op, status).Inc()
}

// ObserveRequest records how long a backend call took.
func (r *Recorder) ObserveRequest(op string, d time.Duration) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(op).Observe(d.Seconds())
}

// TaskStarted and TaskFinished track running handler tasks.
func (r *Recorder) TaskStarted() {
	if r == nil {
		return
	}
	r.inFlight.Inc()
}

func (r *Recorder) TaskFinished() {
	if r == nil {
		return
	}
	r.inFlight.Dec()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
