package cachefill

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/gira"
	"github.com/c360/sensorstream/health"
	"github.com/c360/sensorstream/pkg/queue"
	"github.com/c360/sensorstream/pkg/retry"
)

const fetchLoopName = "fetch_loop"

// DefaultScanInterval is the pause between two full scans of the listing.
const DefaultScanInterval = 5 * time.Second

// PageFetcher returns one page of descriptors. An empty page ends a scan.
type PageFetcher interface {
	FetchPage(ctx context.Context, offset int) ([]gira.Descriptor, error)
}

// FetchLoopConfig controls scan pacing.
type FetchLoopConfig struct {
	// ScanInterval is the sleep after every scan, successful or not.
	ScanInterval time.Duration
	// MaxScans stops Run after this many scans. Zero scans forever.
	MaxScans int
}

// FetchLoop repeatedly pages through the metadata listing and queues every
// descriptor it sees.
type FetchLoop struct {
	fetcher PageFetcher
	queue   *queue.Queue[gira.Descriptor]
	cfg     FetchLoopConfig
	logger  *slog.Logger
	monitor *health.Monitor
	metrics *fetchMetrics

	scans atomic.Int64
}

// NewFetchLoop creates a fetch loop that pushes onto q.
func NewFetchLoop(fetcher PageFetcher, q *queue.Queue[gira.Descriptor], cfg FetchLoopConfig, opts ...Option) (*FetchLoop, error) {
	if fetcher == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "FetchLoop", "NewFetchLoop", "page fetcher is required")
	}
	if q == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "FetchLoop", "NewFetchLoop", "queue is required")
	}
	if cfg.ScanInterval < 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "FetchLoop", "NewFetchLoop", "scan interval cannot be negative")
	}
	if cfg.ScanInterval == 0 {
		cfg.ScanInterval = DefaultScanInterval
	}

	o := applyOptions(opts...)
	metrics, err := newFetchMetrics(o.registry)
	if err != nil {
		return nil, err
	}

	return &FetchLoop{
		fetcher: fetcher,
		queue:   q,
		cfg:     cfg,
		logger:  o.logger.With("component", fetchLoopName),
		monitor: o.monitor,
		metrics: metrics,
	}, nil
}

// Run scans until ctx is cancelled, MaxScans is reached or the queue is
// closed. Fetch failures only end the current scan.
func (l *FetchLoop) Run(ctx context.Context) error {
	l.logger.Info("Fetch loop started", "scan_interval", l.cfg.ScanInterval)
	defer l.logger.Info("Fetch loop stopped", "scans", l.scans.Load())

	for {
		n, err := l.Scan(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, queue.ErrClosed):
			return nil
		case err != nil:
			l.logger.Warn("Scan ended early", "descriptors", n, "error", err)
			l.reportDegraded("last scan ended early")
		default:
			l.logger.Debug("Scan complete", "descriptors", n)
			l.reportHealthy(n)
		}

		if l.cfg.MaxScans > 0 && int(l.scans.Load()) >= l.cfg.MaxScans {
			return nil
		}
		if err := retry.Wait(ctx, l.cfg.ScanInterval); err != nil {
			return nil
		}
	}
}

// Scan performs one pass over the listing starting at offset 0 and returns
// the number of descriptors queued. Transport failures end the scan; pages
// reported as invalid data are skipped.
func (l *FetchLoop) Scan(ctx context.Context) (int, error) {
	defer func() {
		l.scans.Add(1)
		if l.metrics != nil {
			l.metrics.scans.Inc()
		}
	}()

	total := 0
	for offset := 0; ; offset += gira.PageSize {
		page, err := l.fetcher.FetchPage(ctx, offset)
		if err != nil {
			if l.metrics != nil {
				l.metrics.fetchErrors.Inc()
			}
			// A page of malformed items is dropped; the listing goes on.
			if errors.IsInvalid(err) && ctx.Err() == nil {
				l.logger.Warn("Skipping malformed page", "offset", offset, "error", err)
				continue
			}
			return total, errors.Wrap(err, "FetchLoop", "Scan", fmt.Sprintf("fetch page at offset %d", offset))
		}
		if l.metrics != nil {
			l.metrics.pages.Inc()
		}
		if len(page) == 0 {
			return total, nil
		}

		for _, d := range page {
			if err := l.queue.Push(d); err != nil {
				return total, err
			}
			total++
		}
		if l.metrics != nil {
			l.metrics.descriptors.Add(float64(len(page)))
		}
	}
}

// Scans returns the number of scans started so far.
func (l *FetchLoop) Scans() int64 {
	return l.scans.Load()
}

func (l *FetchLoop) reportHealthy(descriptors int) {
	if l.monitor == nil {
		return
	}
	l.monitor.UpdateHealthy(fetchLoopName,
		fmt.Sprintf("scan %d queued %d descriptors", l.scans.Load(), descriptors))
}

func (l *FetchLoop) reportDegraded(message string) {
	if l.monitor == nil {
		return
	}
	l.monitor.UpdateDegraded(fetchLoopName, message)
}
