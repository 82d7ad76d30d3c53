package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus instruments.
type Metrics struct {
	registry *prometheus.Registry

	turnsTotal    *prometheus.CounterVec
	turnDuration  prometheus.Histogram
	tokensTotal   *prometheus.CounterVec
	feedbackTotal prometheus.Counter
}

// NewMetrics creates the instruments on a private registry, so tests can
// build servers side by side without duplicate registration panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chattrace_chat_turns_total",
			Help: "Total chat turns handled, labeled by outcome (ok, error).",
		}, []string{"outcome"}),
		turnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chattrace_chat_turn_duration_seconds",
			Help:    "Chat turn duration in seconds, model call included.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		tokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chattrace_chat_tokens_total",
			Help: "Total tokens consumed, labeled by direction (input, output).",
		}, []string{"direction"}),
		feedbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "chattrace_feedback_total",
			Help: "Total feedback submissions accepted.",
		}),
	}
}

func (m *Metrics) observeTurn(outcome string, seconds float64) {
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(seconds)
}

func (m *Metrics) observeTokens(input, output int) {
	m.tokensTotal.WithLabelValues("input").Add(float64(input))
	m.tokensTotal.WithLabelValues("output").Add(float64(output))
}
