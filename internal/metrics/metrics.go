// Package metrics provides Prometheus observability for the relay.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all relay metrics. A nil *Metrics is valid and records nothing,
// so tests can run the server without a registry.
type Metrics struct {
	FlowInitiated prometheus.Counter
	FlowCompleted *prometheus.CounterVec
	MailSent      *prometheus.CounterVec
	Duration      prometheus.Histogram
}

// New registers all relay metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FlowInitiated: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_flow_initiated_total",
			Help: "Total authorization flows initiated",
		}),

		FlowCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_flow_completed_total",
			Help: "Total authorization flow completions by outcome",
		}, []string{"outcome"}), // outcome: "success" or "error"

		MailSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_mail_sent_total",
			Help: "Total mail relay attempts by outcome",
		}, []string{"outcome"}),

		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_request_duration_seconds",
			Help:    "Duration of handled requests end to end",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// IncFlowInitiated records one initiated flow.
func (m *Metrics) IncFlowInitiated() {
	if m != nil {
		m.FlowInitiated.Inc()
	}
}

// IncFlowCompleted records one flow completion outcome.
func (m *Metrics) IncFlowCompleted(outcome string) {
	if m != nil {
		m.FlowCompleted.WithLabelValues(outcome).Inc()
	}
}

// IncMailSent records one mail relay outcome.
func (m *Metrics) IncMailSent(outcome string) {
	if m != nil {
		m.MailSent.WithLabelValues(outcome).Inc()
	}
}

// ObserveDuration records the end-to-end duration of a handled request.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m != nil {
		m.Duration.Observe(d.Seconds())
	}
}
