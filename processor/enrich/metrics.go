package enrich

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorstream/metric"
)

type publisherMetrics struct {
	registry  *metric.MetricsRegistry
	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	restarts  prometheus.Counter
}

func (m *publisherMetrics) register() error {
	m.published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metric.Namespace,
		Subsystem: componentName,
		Name:      "readings_published_total",
		Help:      "Enriched readings acknowledged by the broker, by topic",
	}, []string{"topic"})
	m.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metric.Namespace,
		Subsystem: componentName,
		Name:      "readings_dropped_total",
		Help:      "Readings dropped before or during publish, by reason",
	}, []string{"reason"})
	m.restarts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metric.Namespace,
		Subsystem: componentName,
		Name:      "loop_restarts_total",
		Help:      "Processing loop restarts after a failure",
	})

	if m.registry == nil {
		return nil
	}
	if err := m.registry.RegisterCounterVec(componentName, "readings_published", m.published); err != nil {
		return err
	}
	if err := m.registry.RegisterCounterVec(componentName, "readings_dropped", m.dropped); err != nil {
		return err
	}
	return m.registry.RegisterCounter(componentName, "loop_restarts", m.restarts)
}
