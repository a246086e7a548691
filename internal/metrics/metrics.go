// Package metrics holds Prometheus instrumentation for the HTTP boundary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments tariff evaluation requests.
type Metrics struct {
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	UpstreamFetchTotal *prometheus.CounterVec
}

// New registers and returns the evaluation metrics on the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests use a fresh
// registry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EvaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tariff_evaluations_total",
			Help: "Total number of tariff evaluation requests by outcome",
		}, []string{"status"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tariff_evaluation_duration_seconds",
			Help:    "End-to-end duration of tariff evaluation requests",
			Buckets: prometheus.DefBuckets,
		}),
		UpstreamFetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tariff_upstream_fetch_total",
			Help: "Total number of candidate-codes fetches by outcome",
		}, []string{"outcome"}),
	}
}
