// Package metrics exposes in-process counters for the main loop: how many
// opportunities the detector and mempool simulator surface, how many
// execution attempts run and with what outcome, and how often the cooldown
// tracker suppresses a route. Counters are registered against a private
// prometheus.Registry (not the global default) so multiple Engines in the
// same test binary never collide on metric names, and are read back with
// Gather rather than served over HTTP — there is no exporter here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics owns the counters the main loop increments.
type Metrics struct {
	registry               *prometheus.Registry
	OpportunitiesDetected   prometheus.Counter
	MempoolSignalsSimulated prometheus.Counter
	CooldownSuppressions    prometheus.Counter
	ExecutionAttempts       *prometheus.CounterVec
}

// New builds a Metrics with all counters registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		OpportunitiesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dexarb",
			Name:      "opportunities_detected_total",
			Help:      "Arbitrage opportunities surfaced by the block-reactive detector.",
		}),
		MempoolSignalsSimulated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dexarb",
			Name:      "mempool_signals_simulated_total",
			Help:      "Pending transactions the mempool monitor simulated into an opportunity.",
		}),
		CooldownSuppressions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dexarb",
			Name:      "cooldown_suppressions_total",
			Help:      "Times a route was skipped because it is still cooling down.",
		}),
		ExecutionAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dexarb",
			Name:      "execution_attempts_total",
			Help:      "Execution attempts by outcome.",
		}, []string{"outcome"}),
	}
	registry.MustRegister(m.OpportunitiesDetected, m.MempoolSignalsSimulated, m.CooldownSuppressions, m.ExecutionAttempts)
	return m
}

// Gather exposes the underlying registry for tests and for any future
// exporter; production wiring never calls this over HTTP.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}
