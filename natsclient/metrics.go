package natsclient

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorstream/metric"
)

type clientMetrics struct {
	connected     prometheus.Gauge
	reconnects    prometheus.Counter
	publishErrors prometheus.Counter
}

func newClientMetrics(registry *metric.MetricsRegistry) (*clientMetrics, error) {
	m := &clientMetrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats",
			Name:      "connected",
			Help:      "NATS connection status (1=connected, 0=not connected)",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats",
			Name:      "reconnects_total",
			Help:      "Total number of NATS reconnections",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats",
			Name:      "publish_errors_total",
			Help:      "Total number of failed JetStream publishes",
		}),
	}

	if err := registry.RegisterGauge("natsclient", "connected", m.connected); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("natsclient", "reconnects", m.reconnects); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("natsclient", "publish_errors", m.publishErrors); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *clientMetrics) recordStatus(status ConnectionStatus) {
	if status == StatusConnected {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}
