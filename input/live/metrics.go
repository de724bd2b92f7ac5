package live

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorstream/metric"
)

// Metrics holds Prometheus metrics for the subscriber
type Metrics struct {
	state             prometheus.Gauge
	messagesReceived  prometheus.Counter
	readingsQueued    prometheus.Counter
	messagesDropped   *prometheus.CounterVec
	connectionsTotal  prometheus.Counter
	reconnectAttempts prometheus.Counter
}

func newMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "live_subscriber",
			Name:      "state",
			Help:      "Connection state (0=disconnected, 1=connecting, 2=subscribed, 3=streaming)",
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "live_subscriber",
			Name:      "messages_received_total",
			Help:      "Total websocket messages received while streaming",
		}),
		readingsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "live_subscriber",
			Name:      "readings_queued_total",
			Help:      "Total readings queued for enrichment",
		}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "live_subscriber",
			Name:      "messages_dropped_total",
			Help:      "Total messages dropped by reason",
		}, []string{"reason"}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "live_subscriber",
			Name:      "connections_total",
			Help:      "Total successful websocket connections",
		}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "live_subscriber",
			Name:      "reconnect_attempts_total",
			Help:      "Total reconnection attempts",
		}),
	}

	if err := registry.RegisterGauge(componentName, "state", m.state); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(componentName, "messages_received", m.messagesReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(componentName, "readings_queued", m.readingsQueued); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "messages_dropped", m.messagesDropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(componentName, "connections_total", m.connectionsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(componentName, "reconnect_attempts", m.reconnectAttempts); err != nil {
		return nil, err
	}
	return m, nil
}
