package live

import (
	"log/slog"

	"github.com/c360/sensorstream/health"
	"github.com/c360/sensorstream/metric"
)

// Option configures a Subscriber.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	monitor  *health.Monitor
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics exports Prometheus metrics through registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithHealth reports the connection state to monitor.
func WithHealth(monitor *health.Monitor) Option {
	return func(o *options) {
		o.monitor = monitor
	}
}
