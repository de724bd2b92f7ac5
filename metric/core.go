package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Role status values reported by RoleStatus.
const (
	StatusStopped  = 0
	StatusStarting = 1
	StatusRunning  = 2
	StatusFailed   = 3
)

// Metrics contains process-level metrics that are not owned by one pipeline
type Metrics struct {
	RoleStatus *prometheus.GaugeVec
	BuildInfo  *prometheus.GaugeVec
}

// NewMetrics creates the process-level metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RoleStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "role",
				Name:      "status",
				Help:      "Pipeline role status (0=stopped, 1=starting, 2=running, 3=failed)",
			},
			[]string{"role"},
		),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "build_info",
				Help:      "Build information, always 1",
			},
			[]string{"version"},
		),
	}
}

// RecordRoleStatus sets the status gauge of a pipeline role
func (m *Metrics) RecordRoleStatus(role string, status int) {
	m.RoleStatus.WithLabelValues(role).Set(float64(status))
}

// RecordBuildInfo exports the running version
func (m *Metrics) RecordBuildInfo(version string) {
	m.BuildInfo.WithLabelValues(version).Set(1)
}
