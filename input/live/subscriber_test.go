package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/gira"
	"github.com/c360/sensorstream/health"
	"github.com/c360/sensorstream/metric"
	"github.com/c360/sensorstream/pkg/queue"
)

type frame struct {
	msgType int
	data    string
}

func text(s string) frame { return frame{msgType: websocket.TextMessage, data: s} }

// gateway is a scripted websocket server. Each connection gets the frames
// of the next script entry after the subscribe request and snapshot; the
// last entry is reused once the scripts run out. A nil script closes the
// connection straight after the snapshot.
type gateway struct {
	upgrader websocket.Upgrader
	scripts  [][]frame

	mu          sync.Mutex
	connections int
	subscribes  []string
	authHeaders []string
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	idx := g.connections
	g.connections++
	g.authHeaders = append(g.authHeaders, r.Header.Get("Authorization"))
	g.mu.Unlock()

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_, sub, err := conn.ReadMessage()
	if err != nil {
		return
	}
	g.mu.Lock()
	g.subscribes = append(g.subscribes, string(sub))
	g.mu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"code":0,"type":"response","data":{}}`)); err != nil {
		return
	}

	if idx >= len(g.scripts) {
		idx = len(g.scripts) - 1
	}
	script := g.scripts[idx]
	if script == nil {
		return
	}
	for _, f := range script {
		if err := conn.WriteMessage(f.msgType, []byte(f.data)); err != nil {
			return
		}
	}

	// Hold the connection open until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *gateway) stats() (connections int, subscribes, auth []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connections, append([]string(nil), g.subscribes...), append([]string(nil), g.authHeaders...)
}

func startGateway(t *testing.T, scripts ...[]frame) (*gateway, string) {
	t.Helper()
	g := &gateway{scripts: scripts}
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	return g, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newReadingQueue(t *testing.T) *queue.Queue[Reading] {
	t.Helper()
	q, err := queue.New[Reading]()
	require.NoError(t, err)
	return q
}

func drain(q *queue.Queue[Reading]) []Reading {
	var out []Reading
	for {
		r, ok := q.TryPop()
		if !ok {
			return out
		}
		out = append(out, r)
	}
}

func TestSubscriber_StreamsReadings(t *testing.T) {
	g, url := startGateway(t, []frame{
		text(`{"data":{"value":34.62},"code":0,"type":"push","subscription":{"key":"CO@9_4_81"}}`),
		text(`{"data":{"value":null},"code":0,"type":"push","subscription":{"key":null}}`),
		{msgType: websocket.BinaryMessage, data: "\x01\x02"},
		text(`not json`),
		text(`{"data":{"value":"closed"},"subscription":{"key":"CO@1_0_9"}}`),
		text(`{"data":{"value":5156.080078125},"code":0,"type":"push","subscription":{"key":"CO@1_0_4"}}`),
	})

	q := newReadingQueue(t)
	monitor := health.NewMonitor()
	sub, err := NewSubscriber(Config{
		URL:         url,
		Username:    "user",
		Password:    "secret",
		MaxMessages: 6,
	}, q, WithHealth(monitor), WithMetrics(metric.NewMetricsRegistry()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sub.Run(ctx))

	assert.Equal(t, []Reading{
		{SensorKey: "CO@9_4_81", Value: 34.62},
		{SensorKey: "CO@1_0_4", Value: 5156.08},
	}, drain(q))

	messages, readings := sub.Stats()
	assert.Equal(t, int64(6), messages)
	assert.Equal(t, int64(2), readings)
	assert.Equal(t, StateDisconnected, sub.State())

	connections, subscribes, auth := g.stats()
	assert.Equal(t, 1, connections)
	require.Len(t, subscribes, 1)
	assert.JSONEq(t, `{"type":"subscribe","param":{"keys":["CO@*"],"context":"iotics-connector-cev"}}`, subscribes[0])
	assert.Equal(t, []string{gira.BasicAuth("user", "secret")}, auth)
}

func TestSubscriber_ReconnectsAfterDrop(t *testing.T) {
	g, url := startGateway(t,
		nil,
		[]frame{text(`{"data":{"value":7},"subscription":{"key":"CO@2_1_1"}}`)},
	)

	q := newReadingQueue(t)
	sub, err := NewSubscriber(Config{
		URL:            url,
		ReconnectDelay: 10 * time.Millisecond,
		MaxReconnects:  3,
		MaxMessages:    1,
	}, q)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sub.Run(ctx))

	connections, _, _ := g.stats()
	assert.Equal(t, 2, connections)
	assert.Equal(t, []Reading{{SensorKey: "CO@2_1_1", Value: 7}}, drain(q))
}

func TestSubscriber_GivesUpAfterMaxReconnects(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	monitor := health.NewMonitor()
	sub, err := NewSubscriber(Config{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		ReconnectDelay: time.Millisecond,
		MaxReconnects:  2,
	}, newReadingQueue(t), WithHealth(monitor))
	require.NoError(t, err)

	err = sub.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.ErrorIs(t, err, errors.ErrMaxRetriesExceeded)
	assert.Equal(t, int32(3), attempts.Load())

	status, ok := monitor.Get(componentName)
	require.True(t, ok)
	assert.True(t, status.IsUnhealthy())
}

func TestSubscriber_StopsOnCancel(t *testing.T) {
	_, url := startGateway(t, []frame{})

	monitor := health.NewMonitor()
	sub, err := NewSubscriber(Config{URL: url}, newReadingQueue(t), WithHealth(monitor))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool { return sub.State() == StateStreaming }, 2*time.Second, 5*time.Millisecond)

	status, ok := monitor.Get(componentName)
	require.True(t, ok)
	assert.True(t, status.IsHealthy())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop after cancel")
	}
	assert.Equal(t, StateDisconnected, sub.State())
}

func TestSubscriber_StopsWhenQueueClosed(t *testing.T) {
	_, url := startGateway(t, []frame{
		text(`{"data":{"value":1},"subscription":{"key":"CO@1_1_1"}}`),
	})

	q := newReadingQueue(t)
	q.Close()

	sub, err := NewSubscriber(Config{URL: url, ReconnectDelay: time.Hour}, q)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, sub.Run(ctx))
}

func TestNewSubscriber_Validation(t *testing.T) {
	q := newReadingQueue(t)

	_, err := NewSubscriber(Config{}, q)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewSubscriber(Config{URL: "ws://gateway", MaxReconnects: -1}, q)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewSubscriber(Config{URL: "ws://gateway"}, nil)
	assert.True(t, errors.IsInvalid(err))

	sub, err := NewSubscriber(Config{URL: "ws://gateway"}, q)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultSubscribeKey}, sub.cfg.Keys)
	assert.Equal(t, DefaultSubscribeContext, sub.cfg.Context)
	assert.Equal(t, DefaultReconnectDelay, sub.cfg.ReconnectDelay)
	assert.Equal(t, StateDisconnected, sub.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "state(9)", State(9).String())
}
