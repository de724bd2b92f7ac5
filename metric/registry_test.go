package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorstream/errors"
)

func gatheredNames(t *testing.T, r *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()
	require.NotNil(t, registry.CoreMetrics())

	registry.CoreMetrics().RecordRoleStatus("cache", StatusRunning)
	registry.CoreMetrics().RecordBuildInfo("1.2.3")

	names := gatheredNames(t, registry)
	assert.True(t, names["sensorstream_role_status"])
	assert.True(t, names["sensorstream_build_info"])
	assert.Equal(t, float64(StatusRunning),
		testutil.ToFloat64(registry.CoreMetrics().RoleStatus.WithLabelValues("cache")))
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	require.NoError(t, registry.RegisterCounter("svc", "test_counter", counter))
	counter.Inc()

	assert.True(t, gatheredNames(t, registry)["test_counter"])
}

func TestMetricsRegistry_Duplicate(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup_gauge", Help: "x"})
	second := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup_gauge", Help: "x"})

	require.NoError(t, registry.RegisterGauge("svc", "dup", first))

	err := registry.RegisterGauge("svc", "dup", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	err = registry.RegisterGauge("other", "dup", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "vec_total", Help: "x"}, []string{"reason"})
	require.NoError(t, registry.RegisterCounterVec("svc", "vec", vec))

	assert.True(t, registry.Unregister("svc", "vec"))
	assert.False(t, registry.Unregister("svc", "vec"))

	require.NoError(t, registry.RegisterCounterVec("svc", "vec", vec))
}

func TestMetricsRegistry_RegisterHistogram(t *testing.T) {
	registry := NewMetricsRegistry()

	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "latency_seconds", Help: "x"})
	require.NoError(t, registry.RegisterHistogram("svc", "latency", h))
	h.Observe(0.2)

	assert.True(t, gatheredNames(t, registry)["latency_seconds"])
}

func TestMetricsRegistry_GatherCounterVec(t *testing.T) {
	registry := NewMetricsRegistry()
	drops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "publisher",
		Name:      "readings_dropped_total",
		Help:      "Readings dropped before publishing",
	}, []string{"reason"})
	require.NoError(t, registry.RegisterCounterVec("publisher", "readings_dropped", drops))

	drops.WithLabelValues("cache_miss").Add(2)
	drops.WithLabelValues("no_key").Inc()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	var family *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "sensorstream_publisher_readings_dropped_total" {
			family = mf
		}
	}
	require.NotNil(t, family)
	assert.Equal(t, dto.MetricType_COUNTER, family.GetType())

	byReason := make(map[string]float64)
	for _, m := range family.GetMetric() {
		for _, label := range m.GetLabel() {
			if label.GetName() == "reason" {
				byReason[label.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, map[string]float64{"cache_miss": 2, "no_key": 1}, byReason)
}
