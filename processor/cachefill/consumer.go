package cachefill

import (
	"context"
	"log/slog"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/gira"
	"github.com/c360/sensorstream/health"
	"github.com/c360/sensorstream/metadata"
	"github.com/c360/sensorstream/pkg/queue"
	"github.com/c360/sensorstream/sensor"
)

const consumerName = "cache_consumer"

// Outcome is what the consumer did with one descriptor.
type Outcome string

// Consumer outcomes. The drop outcomes double as metric reasons.
const (
	OutcomeInserted   Outcome = "insert"
	OutcomeMerged     Outcome = "merge"
	OutcomeMissingKey Outcome = "missing_key"
	OutcomeNoMatch    Outcome = "no_match"
	OutcomeCacheError Outcome = "cache_error"
)

// Consumer turns queued descriptors into cache records.
type Consumer struct {
	queue   *queue.Queue[gira.Descriptor]
	cache   metadata.Cache
	logger  *slog.Logger
	monitor *health.Monitor
	metrics *consumerMetrics
}

// NewConsumer creates a consumer reading from q and writing to cache.
func NewConsumer(q *queue.Queue[gira.Descriptor], cache metadata.Cache, opts ...Option) (*Consumer, error) {
	if q == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Consumer", "NewConsumer", "queue is required")
	}
	if cache == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Consumer", "NewConsumer", "cache is required")
	}

	o := applyOptions(opts...)
	metrics, err := newConsumerMetrics(o.registry)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		queue:   q,
		cache:   cache,
		logger:  o.logger.With("component", consumerName),
		monitor: o.monitor,
		metrics: metrics,
	}, nil
}

// Run consumes descriptors until ctx is cancelled or the queue is closed
// and drained.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Cache consumer started")
	defer c.logger.Info("Cache consumer stopped")

	if c.monitor != nil {
		c.monitor.UpdateHealthy(consumerName, "consuming descriptors")
	}

	for {
		d, err := c.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return errors.WrapTransient(err, "Consumer", "Run", "dequeue descriptor")
		}
		c.Handle(ctx, d)
	}
}

// Handle applies one descriptor to the cache. Descriptors without a key or
// with a description outside the naming grammar are dropped. An existing
// record keeps its unit of measure; a new one starts with an empty unit.
func (c *Consumer) Handle(ctx context.Context, d gira.Descriptor) Outcome {
	outcome := c.handle(ctx, d)

	if c.metrics != nil {
		switch outcome {
		case OutcomeInserted, OutcomeMerged:
			c.metrics.written.WithLabelValues(string(outcome)).Inc()
		default:
			c.metrics.dropped.WithLabelValues(string(outcome)).Inc()
		}
	}
	return outcome
}

func (c *Consumer) handle(ctx context.Context, d gira.Descriptor) Outcome {
	if d.Key == "" {
		c.logger.Warn("Dropping descriptor without key", "description", d.Meta.Description)
		return OutcomeMissingKey
	}

	fields, err := sensor.Parse(d.Key, d.Meta.Description)
	if err != nil {
		c.logger.Debug("Dropping unparseable descriptor",
			"sensor_key", d.Key, "description", d.Meta.Description, "error", err)
		return OutcomeNoMatch
	}

	existing, err := c.cache.Get(ctx, d.Key)
	if err != nil {
		// A blind insert here would reset the stored unit of measure; the
		// next scan retries the key instead.
		c.logger.Warn("Cache read failed", "sensor_key", d.Key, "error", err)
		return OutcomeCacheError
	}

	record, outcome := sensor.NewRecord(fields), OutcomeInserted
	if existing != nil {
		record, outcome = sensor.Merge(*existing, fields), OutcomeMerged
	}

	if err := c.cache.Put(ctx, d.Key, record); err != nil {
		c.logger.Warn("Cache write failed", "sensor_key", d.Key, "error", err)
		return OutcomeCacheError
	}

	c.logger.Debug("Cached sensor metadata", "sensor_key", d.Key, "operation", string(outcome))
	return outcome
}
