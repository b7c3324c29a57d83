package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes hub gauges and counters. All methods tolerate a nil
// receiver so tests can run the hub unmetered.
type Metrics struct {
	ConnectionsGauge prometheus.Gauge
	SubmittedTotal   *prometheus.CounterVec
	DroppedTotal     prometheus.Counter
	EvictedTotal     prometheus.Counter
}

// NewMetrics registers hub metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "spyglass_hub_connections",
			Help: "Number of registered observer connections.",
		}),
		SubmittedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spyglass_hub_events_submitted_total",
			Help: "Events accepted from producers, by type.",
		}, []string{"type"}),
		DroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "spyglass_hub_events_dropped_total",
			Help: "Events discarded by drop-oldest across all connections.",
		}),
		EvictedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "spyglass_hub_connections_evicted_total",
			Help: "Connections evicted by heartbeat timeout or probe failure.",
		}),
	}
}

func (m *Metrics) connections(n int) {
	if m != nil {
		m.ConnectionsGauge.Set(float64(n))
	}
}

func (m *Metrics) submitted(eventType string) {
	if m != nil {
		m.SubmittedTotal.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.DroppedTotal.Inc()
	}
}

func (m *Metrics) evicted() {
	if m != nil {
		m.EvictedTotal.Inc()
	}
}
