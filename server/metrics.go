package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wippyai/edge-runtime/bridge"
)

// Namespace prefixes every metric name.
const Namespace = "edge"

// Metrics holds the serve mode collectors.
type Metrics struct {
	// labels: outcome (ok, rejected, error), reason
	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration prometheus.Histogram

	// labels: method, outcome (status code or error kind)
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		InvocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "invocations_total",
				Help:      "Handler invocations by outcome",
			},
			[]string{"outcome", "reason"},
		),
		InvocationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Wall time of one invocation including guest startup",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "fetches_total",
				Help:      "Outbound fetches made by handlers",
			},
			[]string{"method", "outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Outbound fetch latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// ObserveFetch records a bridge fetch. It is meant for bridge.Options.Observe.
func (m *Metrics) ObserveFetch(e bridge.FetchEvent) {
	outcome := e.Kind
	if outcome == "" {
		outcome = strconv.Itoa(e.Status)
	}
	m.FetchesTotal.WithLabelValues(e.Method, outcome).Inc()
	if e.Duration > 0 {
		m.FetchDuration.WithLabelValues(e.Method).Observe(e.Duration.Seconds())
	}
}
