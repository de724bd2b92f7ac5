package queue

import (
	"github.com/c360/sensorstream/metric"
)

// Option configures a queue using the functional options pattern.
type Option func(*queueOptions)

type queueOptions struct {
	// metricsReg is optional. When set, queue depth and throughput are exported.
	metricsReg *metric.MetricsRegistry

	// metricsPrefix is used as the component label for Prometheus metrics
	metricsPrefix string
}

// WithMetrics enables Prometheus metrics export for the queue.
// It is ignored when registry is nil or prefix is empty.
func WithMetrics(registry *metric.MetricsRegistry, prefix string) Option {
	return func(opts *queueOptions) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

func applyOptions(options ...Option) *queueOptions {
	opts := &queueOptions{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
