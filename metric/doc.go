// Package metric provides the Prometheus registry shared by every pipeline and
// the HTTP server exposing it.
//
// Components register their own collectors under a service name so duplicate
// registrations are reported as invalid errors instead of panicking:
//
//	registry := metric.NewMetricsRegistry()
//	if err := registry.RegisterCounterVec("cachefill", "drops", drops); err != nil {
//	    return nil, err
//	}
//
// The Server serves /metrics in OpenMetrics format and /health as the JSON
// encoding of an aggregated health.Status (503 when unhealthy).
package metric
