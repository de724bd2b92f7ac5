package broker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/metric"
	"github.com/c360/sensorstream/sensor"
)

const componentName = "broker"

// Defaults for Config.
const (
	DefaultStream     = "SENSOR_READINGS"
	DefaultDuplicates = 2 * time.Minute
)

// StreamClient is the part of natsclient.Client the publisher needs.
type StreamClient interface {
	EnsureStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	PublishToStream(ctx context.Context, subject string, data []byte, msgID string) (*jetstream.PubAck, error)
}

// Config configures the stream and subject layout.
type Config struct {
	Stream        string        `json:"stream"         yaml:"stream"`
	SubjectPrefix string        `json:"subject_prefix" yaml:"subject_prefix"`
	Duplicates    time.Duration `json:"duplicates"     yaml:"duplicates"`
	MaxAge        time.Duration `json:"max_age"        yaml:"max_age"`
	Replicas      int           `json:"replicas"       yaml:"replicas"`
}

// Validate checks the configuration
func (c Config) Validate() error {
	if strings.ContainsAny(c.Stream, " .*>") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "broker.Config", "Validate", "stream name contains reserved characters")
	}
	if strings.ContainsAny(c.SubjectPrefix, " *>") || strings.HasSuffix(c.SubjectPrefix, ".") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "broker.Config", "Validate", "subject prefix must be a literal subject")
	}
	if c.Duplicates < 0 || c.MaxAge < 0 || c.Replicas < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "broker.Config", "Validate", "limits cannot be negative")
	}
	return nil
}

// Publisher publishes payloads to building subjects.
type Publisher struct {
	client  StreamClient
	cfg     Config
	logger  *slog.Logger
	metrics *publisherMetrics
}

// Option configures a Publisher.
type Option func(*Publisher) error

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// WithMetrics exports publish counters through registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(p *Publisher) error {
		m, err := newPublisherMetrics(registry)
		if err != nil {
			return err
		}
		p.metrics = m
		return nil
	}
}

// New creates a publisher over client.
func New(client StreamClient, cfg Config, opts ...Option) (*Publisher, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "broker", "New", "stream client is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Duplicates == 0 {
		cfg.Duplicates = DefaultDuplicates
	}
	if cfg.Replicas == 0 {
		cfg.Replicas = 1
	}

	p := &Publisher{
		client: client,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", componentName)
	return p, nil
}

// Subject returns the subject a topic is published to.
func (p *Publisher) Subject(topic string) string {
	if p.cfg.SubjectPrefix == "" {
		return topic
	}
	return p.cfg.SubjectPrefix + "." + topic
}

// Subjects returns the subjects captured by the stream. With a prefix the
// stream takes everything below it; without one it lists every known
// building topic.
func (p *Publisher) Subjects() []string {
	if p.cfg.SubjectPrefix != "" {
		return []string{p.cfg.SubjectPrefix + ".>"}
	}
	return sensor.Topics()
}

// Provision creates the stream or brings its configuration up to date.
func (p *Publisher) Provision(ctx context.Context) error {
	_, err := p.client.EnsureStream(ctx, jetstream.StreamConfig{
		Name:        p.cfg.Stream,
		Description: "Enriched live sensor readings by building",
		Subjects:    p.Subjects(),
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.cfg.MaxAge,
		Duplicates:  p.cfg.Duplicates,
		Replicas:    p.cfg.Replicas,
	})
	if err != nil {
		return errors.Wrap(err, "Publisher", "Provision", "ensure stream "+p.cfg.Stream)
	}
	return nil
}

// Publish sends payload to the topic's subject and waits for the stream
// acknowledgement.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	subject := p.Subject(topic)

	ack, err := p.client.PublishToStream(ctx, subject, payload, uuid.NewString())
	if err != nil {
		if p.metrics != nil {
			p.metrics.errors.Inc()
		}
		return errors.Wrap(err, "Publisher", "Publish", "publish to "+subject)
	}

	if p.metrics != nil {
		p.metrics.published.WithLabelValues(topic).Inc()
		if ack != nil && ack.Duplicate {
			p.metrics.duplicates.Inc()
		}
	}
	if ack != nil {
		p.logger.Debug("Message delivered", "subject", subject, "stream", ack.Stream, "sequence", ack.Sequence)
	}
	return nil
}
