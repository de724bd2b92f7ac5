package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/health"
	"github.com/c360/sensorstream/input/live"
	"github.com/c360/sensorstream/metadata"
	"github.com/c360/sensorstream/metric"
	"github.com/c360/sensorstream/pkg/queue"
	"github.com/c360/sensorstream/pkg/retry"
	"github.com/c360/sensorstream/sensor"
)

const componentName = "publisher"

// Defaults for Config.
const (
	DefaultMaxAttempts  = 3
	DefaultRestartDelay = 5 * time.Second
)

// Broker delivers a payload to a topic and returns once it is acknowledged.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Config controls loop restarts.
type Config struct {
	MaxAttempts  int           `json:"max_attempts"  yaml:"max_attempts"`
	RestartDelay time.Duration `json:"restart_delay" yaml:"restart_delay"`
}

// Publisher enriches queued readings and publishes them.
type Publisher struct {
	queue   *queue.Queue[live.Reading]
	cache   metadata.Cache
	broker  Broker
	cfg     Config
	logger  *slog.Logger
	monitor *health.Monitor
	metrics *publisherMetrics
	now     func() time.Time

	attempts  atomic.Int32
	published atomic.Int64
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithHealth reports loop health to monitor.
func WithHealth(monitor *health.Monitor) Option {
	return func(p *Publisher) {
		p.monitor = monitor
	}
}

// WithMetrics exports publisher metrics through registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(p *Publisher) {
		p.metrics = &publisherMetrics{registry: registry}
	}
}

// WithClock overrides the time source used for last_shared_datetime.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPublisher creates a publisher reading from q.
func NewPublisher(q *queue.Queue[live.Reading], cache metadata.Cache, broker Broker, cfg Config, opts ...Option) (*Publisher, error) {
	if q == nil || cache == nil || broker == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Publisher", "NewPublisher", "queue, cache and broker are required")
	}
	if cfg.MaxAttempts < 0 || cfg.RestartDelay < 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Publisher", "NewPublisher", "restart limits cannot be negative")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}

	p := &Publisher{
		queue:  q,
		cache:  cache,
		broker: broker,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = p.logger.With("component", componentName)

	if p.metrics != nil {
		if err := p.metrics.register(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Attempts returns how many times the processing loop has been started.
func (p *Publisher) Attempts() int {
	return int(p.attempts.Load())
}

// Published returns the number of acknowledged publishes.
func (p *Publisher) Published() int64 {
	return p.published.Load()
}

// Run processes the queue until ctx is cancelled or the queue is closed.
// A failed loop is restarted after RestartDelay; once MaxAttempts loops have
// failed Run returns a fatal error wrapping errors.ErrMaxRetriesExceeded.
func (p *Publisher) Run(ctx context.Context) error {
	cfg := retry.Fixed(p.cfg.MaxAttempts, p.cfg.RestartDelay)
	cfg.OnRetry = func(attempt int, err error) {
		p.logger.Error("Processing loop failed, restarting",
			"attempt", attempt, "max_attempts", p.cfg.MaxAttempts, "delay", p.cfg.RestartDelay, "error", err)
		if p.metrics != nil {
			p.metrics.restarts.Inc()
		}
		if p.monitor != nil {
			p.monitor.UpdateDegraded(componentName,
				fmt.Sprintf("restarting processing loop (attempt %d of %d)", attempt+1, p.cfg.MaxAttempts))
		}
	}

	err := retry.Do(ctx, cfg, func() error {
		return p.processQueue(ctx)
	})
	if ctx.Err() != nil || err == nil {
		return nil
	}

	p.logger.Error("Publisher giving up", "attempts", p.Attempts(), "error", err)
	if p.monitor != nil {
		p.monitor.UpdateError(componentName, err)
	}
	return errors.WrapFatal(fmt.Errorf("%w: %w", errors.ErrMaxRetriesExceeded, err),
		"Publisher", "Run", "process queue")
}

// processQueue is one run of the processing loop. It returns nil when ctx
// is cancelled or the queue is closed, and an error when the broker
// connection is lost or processing panics.
func (p *Publisher) processQueue(ctx context.Context) (err error) {
	attempt := p.attempts.Add(1)
	p.logger.Info("Processing loop started", "attempt", attempt)
	if p.monitor != nil {
		p.monitor.UpdateHealthy(componentName, "publishing")
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.WrapTransient(fmt.Errorf("panic: %v", r), "Publisher", "processQueue", "process reading")
		}
	}()

	for {
		reading, popErr := p.queue.Pop(ctx)
		if popErr != nil {
			if ctx.Err() != nil || errors.Is(popErr, queue.ErrClosed) {
				return nil
			}
			return errors.WrapTransient(popErr, "Publisher", "processQueue", "dequeue reading")
		}

		if err := p.Handle(ctx, reading); err != nil {
			if isConnectionLoss(err) {
				return err
			}
		}
	}
}

// Handle enriches and publishes a single reading. It returns the publish
// error, if any; every other outcome is a logged drop.
func (p *Publisher) Handle(ctx context.Context, reading live.Reading) error {
	if reading.SensorKey == "" {
		p.logger.Warn("Missing sensor key in reading, skipping", "value", reading.Value)
		p.drop("missing_key")
		return nil
	}

	record, err := p.cache.Get(ctx, reading.SensorKey)
	if err != nil {
		p.logger.Warn("Cache read failed, treating as miss", "sensor_key", reading.SensorKey, "error", err)
		record = nil
	}
	if record == nil {
		p.logger.Info("Sensor metadata not yet cached, skipping", "sensor_key", reading.SensorKey)
		p.drop("not_cached")
		return nil
	}
	if record.BuildingName == "" {
		p.logger.Warn("Cached metadata has no building, skipping", "sensor_key", reading.SensorKey)
		p.drop("no_building")
		return nil
	}

	enriched := record.WithLiveValue(reading.Value, unixSeconds(p.now()))
	payload, err := json.Marshal(enriched)
	if err != nil {
		p.logger.Warn("Failed to encode record, skipping", "sensor_key", reading.SensorKey, "error", err)
		p.drop("encode")
		return nil
	}

	topic := sensor.Topic(record.BuildingName)
	if err := p.broker.Publish(ctx, topic, payload); err != nil {
		p.logger.Error("Failed to publish reading", "sensor_key", reading.SensorKey, "topic", topic, "error", err)
		p.drop("publish")
		return err
	}

	p.published.Add(1)
	if p.metrics != nil {
		p.metrics.published.WithLabelValues(topic).Inc()
	}
	p.logger.Debug("Reading published", "sensor_key", reading.SensorKey, "topic", topic)
	return nil
}

func (p *Publisher) drop(reason string) {
	if p.metrics != nil {
		p.metrics.dropped.WithLabelValues(reason).Inc()
	}
}

func isConnectionLoss(err error) bool {
	return errors.Is(err, errors.ErrNotConnected) || errors.Is(err, errors.ErrConnectionLost)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
