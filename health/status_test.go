package health

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusConstructors(t *testing.T) {
	h := NewHealthy("cache", "ok")
	assert.True(t, h.IsHealthy())
	assert.True(t, h.Healthy)
	assert.False(t, h.Timestamp.IsZero())

	d := NewDegraded("cache", "slow")
	assert.True(t, d.IsDegraded())
	assert.False(t, d.Healthy)

	u := NewUnhealthy("cache", "down")
	assert.True(t, u.IsUnhealthy())
	assert.False(t, u.Healthy)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{"empty is healthy", nil, stateHealthy},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, stateHealthy},
		{"degraded wins over healthy", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, stateDegraded},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, stateUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("system", tt.subs)
			assert.Equal(t, tt.want, got.Status)
			assert.Len(t, got.SubStatuses, len(tt.subs))
		})
	}
}

func TestAggregate_SortsByComponent(t *testing.T) {
	got := Aggregate("system", []Status{NewHealthy("zeta", ""), NewHealthy("alpha", "")})
	assert.Equal(t, "alpha", got.SubStatuses[0].Component)
	assert.Equal(t, "zeta", got.SubStatuses[1].Component)
}

func TestFromError_Sanitizes(t *testing.T) {
	err := errors.New("dial wss://gira.local:443/endpoints/ws failed password=hunter2 from 10.0.0.5:6379")

	s := FromError("subscriber", err)
	assert.True(t, s.IsUnhealthy())
	assert.NotContains(t, s.Message, "gira.local")
	assert.NotContains(t, s.Message, "hunter2")
	assert.NotContains(t, s.Message, "10.0.0.5")
	assert.Contains(t, s.Message, "[URL]")

	assert.True(t, FromError("subscriber", nil).IsHealthy())
}
