package natsclient

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/metric"
)

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "closed", StatusClosed.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestNewClient_Options(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithMaxReconnects(3),
		WithReconnectWait(time.Second),
		WithTimeout(2*time.Second),
		WithDrainTimeout(time.Second),
		WithCredentials("user", "pass"),
		WithName(""),
	)
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, 3, c.maxReconnects)
	assert.Equal(t, 2*time.Second, c.timeout)
	assert.True(t, strings.HasPrefix(c.clientName, "sensorstream-"))
	assert.Len(t, c.buildConnectionOptions(), 11)
}

func TestNewClient_Invalid(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewClient("nats://x", WithReconnectWait(-time.Second))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestClient_NotConnected(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	_, err = c.JetStream()
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.PublishToStream(context.Background(), "house_1", []byte("{}"), "")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.True(t, errors.IsTransient(err))

	assert.NoError(t, c.Close(context.Background()))
	assert.Equal(t, StatusClosed, c.Status())
	assert.NoError(t, c.Close(context.Background()))
}

func TestClient_ConnectFailure(t *testing.T) {
	c, err := NewClient("nats://127.0.0.1:1", WithTimeout(200*time.Millisecond))
	require.NoError(t, err)

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestClient_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	c, err := NewClient("nats://localhost:4222", WithMetrics(registry))
	require.NoError(t, err)
	require.NotNil(t, c.metrics)

	c.setStatus(StatusConnected)
	c.setStatus(StatusReconnecting)

	_, err = NewClient("nats://localhost:4222", WithMetrics(registry))
	assert.Error(t, err)
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, isConnectionError(nats.ErrConnectionClosed))
	assert.True(t, isConnectionError(nats.ErrNoServers))
	assert.False(t, isConnectionError(nats.ErrTimeout))
}

func TestIsAlreadyExistsError(t *testing.T) {
	assert.False(t, isAlreadyExistsError(nil))
	assert.True(t, isAlreadyExistsError(fmt.Errorf("nats: stream name already in use")))
	assert.False(t, isAlreadyExistsError(assert.AnError))
}
