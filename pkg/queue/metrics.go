package queue

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorstream/metric"
)

// queueMetrics holds Prometheus metrics for queue operations.
type queueMetrics struct {
	pushes prometheus.Counter
	pops   prometheus.Counter
	depth  prometheus.Gauge
}

func newQueueMetrics(registry *metric.MetricsRegistry, prefix string) (*queueMetrics, error) {
	labels := prometheus.Labels{"queue": prefix}

	m := &queueMetrics{
		pushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "queue",
			Name:        "pushes_total",
			ConstLabels: labels,
			Help:        "Total number of items pushed onto the queue",
		}),
		pops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "queue",
			Name:        "pops_total",
			ConstLabels: labels,
			Help:        "Total number of items popped from the queue",
		}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "queue",
			Name:        "depth",
			ConstLabels: labels,
			Help:        "Current number of queued items",
		}),
	}

	if err := registry.RegisterCounter(prefix, "queue_pushes", m.pushes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "queue_pops", m.pops); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "queue_depth", m.depth); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *queueMetrics) recordPush(depth int) {
	m.pushes.Inc()
	m.depth.Set(float64(depth))
}

func (m *queueMetrics) recordPop(depth int) {
	m.pops.Inc()
	m.depth.Set(float64(depth))
}
