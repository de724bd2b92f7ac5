package cachefill

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorstream/metric"
)

const subsystem = "cachefill"

type fetchMetrics struct {
	scans       prometheus.Counter
	pages       prometheus.Counter
	descriptors prometheus.Counter
	fetchErrors prometheus.Counter
}

func newFetchMetrics(registry *metric.MetricsRegistry) (*fetchMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &fetchMetrics{
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: subsystem,
			Name:      "scans_total",
			Help:      "Completed scans of the metadata listing",
		}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: subsystem,
			Name:      "pages_total",
			Help:      "Metadata pages fetched",
		}),
		descriptors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: subsystem,
			Name:      "descriptors_total",
			Help:      "Descriptors queued for parsing",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: subsystem,
			Name:      "fetch_errors_total",
			Help:      "Page fetches that failed and ended a scan early",
		}),
	}

	if err := registry.RegisterCounter(fetchLoopName, "scans", m.scans); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(fetchLoopName, "pages", m.pages); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(fetchLoopName, "descriptors", m.descriptors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(fetchLoopName, "fetch_errors", m.fetchErrors); err != nil {
		return nil, err
	}
	return m, nil
}

type consumerMetrics struct {
	written *prometheus.CounterVec
	dropped *prometheus.CounterVec
}

func newConsumerMetrics(registry *metric.MetricsRegistry) (*consumerMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &consumerMetrics{
		written: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: subsystem,
			Name:      "records_written_total",
			Help:      "Cache writes by operation",
		}, []string{"operation"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: subsystem,
			Name:      "descriptors_dropped_total",
			Help:      "Descriptors dropped before reaching the cache",
		}, []string{"reason"}),
	}

	if err := registry.RegisterCounterVec(consumerName, "records_written", m.written); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(consumerName, "descriptors_dropped", m.dropped); err != nil {
		return nil, err
	}
	return m, nil
}
