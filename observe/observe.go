package observe

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aureliano/fusivel/breaker"
)

// Slog returns a state-change listener that logs every transition through
// the given structured logger.
func Slog(logger *slog.Logger) breaker.StateChangeFunc {
	return func(key string, from, to breaker.State, at time.Time) {
		logger.Info("circuit breaker state change",
			slog.String("key", key),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
			slog.Time("at", at),
		)
	}
}

// Collector exports breaker transitions as Prometheus metrics: a counter of
// transitions by key/from/to and a gauge holding the current state per key
// (0 closed, 1 open, 2 half-open). It implements prometheus.Collector, so
// it can be registered directly.
type Collector struct {
	transitions *prometheus.CounterVec
	state       *prometheus.GaugeVec
}

// NewCollector creates a collector with the given metric namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_transitions_total",
				Help:      "Total circuit breaker state transitions",
			},
			[]string{"key", "from", "to"},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Current circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"key"},
		),
	}
}

// StateChange records a transition. The method value is assignable to
// breaker.StateChangeFunc:
//
//	reg.OnStateChange(collector.StateChange)
func (c *Collector) StateChange(key string, from, to breaker.State, _ time.Time) {
	c.transitions.WithLabelValues(key, from.String(), to.String()).Inc()
	c.state.WithLabelValues(key).Set(float64(to))
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.transitions.Describe(ch)
	c.state.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.transitions.Collect(ch)
	c.state.Collect(ch)
}
