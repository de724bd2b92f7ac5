package live

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/gira"
	"github.com/c360/sensorstream/health"
	"github.com/c360/sensorstream/pkg/queue"
	"github.com/c360/sensorstream/pkg/retry"
	"github.com/c360/sensorstream/pkg/tlsutil"
)

const componentName = "live_subscriber"

// DefaultReconnectDelay is the fixed pause before redialling.
const DefaultReconnectDelay = 5 * time.Second

// State is the connection state of a Subscriber.
type State int32

// Connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config configures the websocket subscription.
type Config struct {
	URL                string        `json:"url"                  yaml:"url"`
	Username           string        `json:"username"             yaml:"username"`
	Password           string        `json:"-"                    yaml:"-"`
	InsecureSkipVerify bool          `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	CAFiles            []string      `json:"ca_files"             yaml:"ca_files"`
	Keys               []string      `json:"keys"                 yaml:"keys"`
	Context            string        `json:"context"              yaml:"context"`
	HandshakeTimeout   time.Duration `json:"handshake_timeout"    yaml:"handshake_timeout"`
	ReconnectDelay     time.Duration `json:"reconnect_delay"      yaml:"reconnect_delay"`

	// MaxReconnects bounds consecutive failed sessions. Zero retries forever.
	MaxReconnects int `json:"max_reconnects" yaml:"max_reconnects"`
	// MaxMessages ends Run after this many streamed messages. Zero streams
	// forever.
	MaxMessages int `json:"max_messages" yaml:"max_messages"`
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "live.Config", "Validate", "url is required")
	}
	if c.ReconnectDelay < 0 || c.HandshakeTimeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "live.Config", "Validate", "durations cannot be negative")
	}
	if c.MaxReconnects < 0 || c.MaxMessages < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "live.Config", "Validate", "limits cannot be negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if len(c.Keys) == 0 {
		c.Keys = []string{DefaultSubscribeKey}
	}
	if c.Context == "" {
		c.Context = DefaultSubscribeContext
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 45 * time.Second
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	return c
}

// Subscriber streams live readings from the websocket onto a queue.
type Subscriber struct {
	cfg     Config
	queue   *queue.Queue[Reading]
	dialer  *websocket.Dialer
	header  http.Header
	logger  *slog.Logger
	monitor *health.Monitor
	metrics *Metrics

	state    atomic.Int32
	messages atomic.Int64
	readings atomic.Int64
}

// NewSubscriber creates a subscriber that pushes readings onto q.
func NewSubscriber(cfg Config, q *queue.Queue[Reading], opts ...Option) (*Subscriber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if q == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Subscriber", "NewSubscriber", "queue is required")
	}
	cfg = cfg.withDefaults()

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	tlsConfig, err := tlsutil.LoadClientTLSConfig(tlsutil.ClientConfig{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		CAFiles:            cfg.CAFiles,
	})
	if err != nil {
		return nil, err
	}

	metrics, err := newMetrics(o.registry)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", gira.BasicAuth(cfg.Username, cfg.Password))

	return &Subscriber{
		cfg:   cfg,
		queue: q,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
			TLSClientConfig:  tlsConfig,
		},
		header:  header,
		logger:  o.logger.With("component", componentName),
		monitor: o.monitor,
		metrics: metrics,
	}, nil
}

// State returns the current connection state.
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

// Stats returns the number of streamed messages and queued readings.
func (s *Subscriber) Stats() (messages, readings int64) {
	return s.messages.Load(), s.readings.Load()
}

// Run connects and streams until ctx is cancelled, MaxMessages is reached
// or the queue is closed. Each failed session is followed by a fixed
// ReconnectDelay. When MaxReconnects consecutive sessions fail without
// reaching Streaming, Run returns a fatal error wrapping
// errors.ErrMaxRetriesExceeded.
func (s *Subscriber) Run(ctx context.Context) error {
	s.logger.Info("Subscriber started", "url", s.cfg.URL)
	defer s.logger.Info("Subscriber stopped")

	failures := 0
	for {
		streamed, err := s.session(ctx)
		s.setState(StateDisconnected)

		if ctx.Err() != nil {
			return nil
		}
		if err == nil || errors.Is(err, queue.ErrClosed) {
			return nil
		}

		if streamed {
			failures = 0
		}
		failures++
		if s.cfg.MaxReconnects > 0 && failures > s.cfg.MaxReconnects {
			s.reportError(err)
			return errors.WrapFatal(
				fmt.Errorf("%w: %d reconnects: %w", errors.ErrMaxRetriesExceeded, s.cfg.MaxReconnects, err),
				"Subscriber", "Run", "reconnect to websocket")
		}

		s.logger.Warn("Reconnecting to websocket",
			"delay", s.cfg.ReconnectDelay, "attempt", failures, "error", err)
		if s.metrics != nil {
			s.metrics.reconnectAttempts.Inc()
		}
		if err := retry.Wait(ctx, s.cfg.ReconnectDelay); err != nil {
			return nil
		}
	}
}

// session runs one connection. It reports whether Streaming was reached and
// returns nil only when the message limit was hit.
func (s *Subscriber) session(ctx context.Context) (bool, error) {
	s.setState(StateConnecting)

	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, s.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return false, errors.WrapTransient(err, "Subscriber", "session", "dial websocket")
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if s.metrics != nil {
		s.metrics.connectionsTotal.Inc()
	}
	s.logger.Info("Websocket connected")

	if err := conn.WriteJSON(NewSubscribeRequest(s.cfg.Keys, s.cfg.Context)); err != nil {
		return false, errors.WrapTransient(err, "Subscriber", "session", "send subscribe request")
	}
	s.setState(StateSubscribed)
	s.logger.Info("Websocket subscribed", "keys", s.cfg.Keys)

	// The first reply is the server's snapshot of last values.
	_, snapshot, err := conn.ReadMessage()
	if err != nil {
		return false, errors.WrapTransient(err, "Subscriber", "session", "read subscription response")
	}
	s.logger.Debug("Discarded subscription response", "bytes", len(snapshot))
	s.setState(StateStreaming)

	var streamed int
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return true, errors.WrapTransient(err, "Subscriber", "session", "read message")
		}

		streamed++
		s.messages.Add(1)
		if s.metrics != nil {
			s.metrics.messagesReceived.Inc()
		}

		if msgType != websocket.TextMessage {
			s.logger.Warn("Skipping non-text message", "type", msgType)
			s.drop("not_text")
		} else if err := s.handle(data); err != nil {
			return true, err
		}

		if s.cfg.MaxMessages > 0 && streamed >= s.cfg.MaxMessages {
			s.logger.Info("Message limit reached", "messages", streamed)
			return true, nil
		}
	}
}

// handle queues the reading carried by data. Malformed messages are dropped;
// only a closed queue is returned as an error.
func (s *Subscriber) handle(data []byte) error {
	reading, err := ParseMessage(data)
	if err != nil {
		reason := "invalid"
		switch {
		case errors.Is(err, ErrUndecodable):
			reason = "undecodable"
			s.logger.Warn("Failed to decode websocket message", "error", err)
		case errors.Is(err, ErrMissingKey):
			reason = "missing_key"
			s.logger.Debug("Dropping message without sensor key")
		case errors.Is(err, ErrMissingValue):
			reason = "missing_value"
			s.logger.Debug("Dropping message without value")
		case errors.Is(err, ErrNotNumeric):
			reason = "not_numeric"
			s.logger.Debug("Dropping non-numeric value", "error", err)
		}
		s.drop(reason)
		return nil
	}

	if err := s.queue.Push(reading); err != nil {
		return err
	}
	s.readings.Add(1)
	if s.metrics != nil {
		s.metrics.readingsQueued.Inc()
	}
	s.logger.Debug("Reading queued", "sensor_key", reading.SensorKey, "value", reading.Value)
	return nil
}

func (s *Subscriber) drop(reason string) {
	if s.metrics != nil {
		s.metrics.messagesDropped.WithLabelValues(reason).Inc()
	}
}

func (s *Subscriber) setState(state State) {
	s.state.Store(int32(state))
	if s.metrics != nil {
		s.metrics.state.Set(float64(state))
	}
	if s.monitor == nil {
		return
	}
	switch state {
	case StateStreaming:
		s.monitor.UpdateHealthy(componentName, state.String())
	default:
		s.monitor.UpdateDegraded(componentName, state.String())
	}
}

func (s *Subscriber) reportError(err error) {
	if s.monitor != nil {
		s.monitor.UpdateError(componentName, err)
	}
}
