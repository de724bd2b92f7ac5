package broker

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorstream/metric"
)

type publisherMetrics struct {
	published  *prometheus.CounterVec
	errors     prometheus.Counter
	duplicates prometheus.Counter
}

func newPublisherMetrics(registry *metric.MetricsRegistry) (*publisherMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &publisherMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: componentName,
			Name:      "messages_published_total",
			Help:      "Messages acknowledged by the stream, by topic",
		}, []string{"topic"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: componentName,
			Name:      "publish_errors_total",
			Help:      "Publishes that were not acknowledged",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: componentName,
			Name:      "duplicates_total",
			Help:      "Publishes the stream reported as duplicates",
		}),
	}

	if err := registry.RegisterCounterVec(componentName, "messages_published", m.published); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(componentName, "publish_errors", m.errors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(componentName, "duplicates", m.duplicates); err != nil {
		return nil, err
	}
	return m, nil
}
