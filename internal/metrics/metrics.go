package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "opencode_monitor"

// Metrics holds the Prometheus counters for the monitor pipeline
type Metrics struct {
	EventsScored    *prometheus.CounterVec
	EventsSkipped   prometheus.Counter
	ScopeVerdicts   *prometheus.CounterVec
	Correlations    *prometheus.CounterVec
	InvalidToolCall prometheus.Counter
}

// NewMetrics registers all counters with reg. A nil reg uses a fresh
// private registry so that several monitors can coexist in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		EventsScored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_scored_total",
			Help:      "Total number of security events scored, by event type and risk level",
		}, []string{"event_type", "level"}),
		EventsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_skipped_total",
			Help:      "Total number of tool calls ignored because the tool is not monitored",
		}),
		ScopeVerdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_verdicts_total",
			Help:      "Total number of scope classifications, by verdict",
		}, []string{"verdict"}),
		Correlations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "correlations_total",
			Help:      "Total number of correlations detected, by correlation type",
		}, []string{"type"}),
		InvalidToolCall: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_invalid_total",
			Help:      "Total number of tool call records that could not be decoded",
		}),
	}
}

// ObserveEvent increments the scored-events counter
func (m *Metrics) ObserveEvent(eventType, level string) {
	m.EventsScored.WithLabelValues(eventType, level).Inc()
}

// ObserveSkipped increments the skipped-events counter
func (m *Metrics) ObserveSkipped() {
	m.EventsSkipped.Inc()
}

// ObserveScope increments the scope verdict counter
func (m *Metrics) ObserveScope(verdict string) {
	m.ScopeVerdicts.WithLabelValues(verdict).Inc()
}

// ObserveCorrelation increments the correlations counter
func (m *Metrics) ObserveCorrelation(correlationType string) {
	m.Correlations.WithLabelValues(correlationType).Inc()
}

// ObserveInvalid increments the invalid tool call counter
func (m *Metrics) ObserveInvalid() {
	m.InvalidToolCall.Inc()
}

// WriteTextfile writes the current values of g in the node_exporter
// textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
