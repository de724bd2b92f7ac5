// Package main implements the entry point for sensorstream.
// sensorstream keeps a cache of building sensor metadata filled from the
// gateway listing and republishes live readings, enriched with that
// metadata, to per-building broker topics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/sensorstream/config"
	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/gira"
	"github.com/c360/sensorstream/health"
	"github.com/c360/sensorstream/input/live"
	"github.com/c360/sensorstream/metadata"
	"github.com/c360/sensorstream/metadata/kvstore"
	"github.com/c360/sensorstream/metadata/redisstore"
	"github.com/c360/sensorstream/metric"
	"github.com/c360/sensorstream/natsclient"
	"github.com/c360/sensorstream/output/broker"
	"github.com/c360/sensorstream/pkg/queue"
	"github.com/c360/sensorstream/processor/cachefill"
	"github.com/c360/sensorstream/processor/enrich"
	"github.com/c360/sensorstream/seed"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sensorstream"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "fatal", errors.IsFatal(err), "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, err := parseFlags(args)
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		return nil
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(os.Stdout, cfg.LogLevel, cliCfg.LogFormat, cfg.Role)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config", cfg.String())
		return nil
	}

	logger.Info("Starting sensorstream",
		"build_time", BuildTime,
		"config_paths", cliCfg.ConfigPaths,
		"cache_backend", cfg.Cache.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &application{
		cfg:      cfg,
		logger:   logger,
		registry: metric.NewMetricsRegistry(),
		monitor:  health.NewMonitor(),
	}
	app.registry.CoreMetrics().RecordBuildInfo(Version)

	defer app.shutdown(cliCfg.ShutdownTimeout)
	return app.run(ctx)
}

// loadConfig layers defaults, files, the dotenv file and the environment,
// then applies the CLI overrides and validates the result.
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	for _, path := range cliCfg.ConfigPaths {
		loader.AddLayer(strings.TrimSpace(path))
	}
	if cliCfg.EnvFile != "" {
		loader.AddEnvFile(cliCfg.EnvFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Role != "" {
		cfg.Role = cliCfg.Role
	}
	if cliCfg.LogLevel != "" {
		cfg.LogLevel = cliCfg.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// application owns the shared infrastructure of one process.
type application struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	monitor  *health.Monitor

	metricsServer *metric.Server
	nats          *natsclient.Client
	cache         metadata.Cache
}

func (a *application) run(ctx context.Context) error {
	if err := a.startMetrics(); err != nil {
		return err
	}
	if err := a.connectNATS(ctx); err != nil {
		return err
	}

	cache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	a.cache = cache

	if err := a.seedCache(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.RunsCache() {
		if err := a.startCachePipeline(gctx, g); err != nil {
			return err
		}
	}
	if a.cfg.RunsPublisher() {
		if err := a.startPublisherPipeline(gctx, g); err != nil {
			return err
		}
	}

	a.logger.Info("sensorstream started")
	err = g.Wait()

	if err != nil {
		a.logger.Error("Pipeline stopped with error", "error", err)
		a.recordRoles(metric.StatusFailed)
		return err
	}

	a.recordRoles(metric.StatusStopped)
	a.logger.Info("sensorstream stopped")
	return nil
}

func (a *application) startMetrics() error {
	if !a.cfg.Metrics.Enabled {
		return nil
	}

	a.metricsServer = metric.NewServer(a.cfg.Metrics.Port, a.cfg.Metrics.Path, a.registry, func() health.Status {
		return a.monitor.AggregateHealth(appName)
	})
	if err := a.metricsServer.Start(); err != nil {
		return err
	}
	a.logger.Info("Metrics server started", "address", a.metricsServer.Address())
	return nil
}

func (a *application) connectNATS(ctx context.Context) error {
	if !a.cfg.NeedsNATS() {
		return nil
	}

	opts := []natsclient.ClientOption{
		natsclient.WithLogger(a.logger),
		natsclient.WithMaxReconnects(a.cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(a.cfg.NATS.ReconnectWait),
		natsclient.WithMetrics(a.registry),
	}
	if a.cfg.NATS.Name != "" {
		opts = append(opts, natsclient.WithName(a.cfg.NATS.Name))
	}
	if a.cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(a.cfg.NATS.Username, a.cfg.NATS.Password))
	}
	if a.cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(a.cfg.NATS.Token))
	}

	client, err := natsclient.NewClient(strings.Join(a.cfg.NATS.URLs, ","), opts...)
	if err != nil {
		return errors.WrapFatal(err, "main", "connectNATS", "create NATS client")
	}

	a.logger.Info("Connecting to NATS")
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connCtx); err != nil {
		return errors.WrapFatal(err, "main", "connectNATS", "connect to NATS")
	}

	a.nats = client
	return nil
}

func (a *application) openCache(ctx context.Context) (metadata.Cache, error) {
	a.logger.Info("Opening metadata cache", "backend", a.cfg.Cache.Backend, "ttl", a.cfg.Cache.TTL)

	switch a.cfg.Cache.Backend {
	case config.BackendRedis:
		store, err := redisstore.New(ctx, redisstore.Config{
			Addr:      a.cfg.Cache.Redis.Addr,
			Password:  a.cfg.Cache.Redis.Password,
			DB:        a.cfg.Cache.Redis.DB,
			TTL:       a.cfg.Cache.TTL,
			KeyPrefix: a.cfg.Cache.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, errors.WrapFatal(err, "main", "openCache", "connect to redis")
		}
		return store, nil
	case config.BackendNATS:
		store, err := kvstore.New(ctx, a.nats, kvstore.Config{
			Bucket:   a.cfg.Cache.Bucket,
			TTL:      a.cfg.Cache.TTL,
			Replicas: a.cfg.Broker.Replicas,
		})
		if err != nil {
			return nil, errors.WrapFatal(err, "main", "openCache", "open key-value bucket")
		}
		return store, nil
	default:
		return metadata.NewMemory(), nil
	}
}

// seedCache loads the seed CSV into the cache. Only processes running the
// cache pipeline seed; a publisher must never overwrite merged records.
func (a *application) seedCache(ctx context.Context) error {
	if !a.cfg.RunsCache() || a.cfg.Cache.SeedCSV == "" {
		return nil
	}
	_, err := seed.LoadFile(ctx, a.cfg.Cache.SeedCSV, a.cache, a.logger)
	return err
}

// startCachePipeline runs the fetch loop and the cache consumer. The
// descriptor queue is closed when the fetch loop stops so the consumer
// drains what was already fetched.
func (a *application) startCachePipeline(ctx context.Context, g *errgroup.Group) error {
	client, err := gira.NewClient(a.cfg.Gira, gira.WithLogger(a.logger))
	if err != nil {
		return errors.WrapFatal(err, "main", "startCachePipeline", "create gateway client")
	}

	descriptors, err := queue.New[gira.Descriptor](queue.WithMetrics(a.registry, "descriptor"))
	if err != nil {
		return err
	}

	opts := []cachefill.Option{
		cachefill.WithLogger(a.logger),
		cachefill.WithMetrics(a.registry),
		cachefill.WithHealth(a.monitor),
	}

	loop, err := cachefill.NewFetchLoop(client, descriptors, cachefill.FetchLoopConfig{
		ScanInterval: a.cfg.Cache.ScanInterval,
	}, opts...)
	if err != nil {
		return err
	}

	consumer, err := cachefill.NewConsumer(descriptors, a.cache, opts...)
	if err != nil {
		return err
	}

	a.registry.CoreMetrics().RecordRoleStatus(config.RoleCache, metric.StatusRunning)

	g.Go(func() error {
		defer descriptors.Close()
		return loop.Run(ctx)
	})
	g.Go(func() error {
		return consumer.Run(ctx)
	})
	return nil
}

// startPublisherPipeline provisions the stream, then runs the live
// subscriber and the enrichment publisher. A subscriber that gives up ends
// the process with its fatal error.
func (a *application) startPublisherPipeline(ctx context.Context, g *errgroup.Group) error {
	pub, err := broker.New(a.nats, a.cfg.Broker,
		broker.WithLogger(a.logger),
		broker.WithMetrics(a.registry))
	if err != nil {
		return err
	}
	if err := pub.Provision(ctx); err != nil {
		return errors.WrapFatal(err, "main", "startPublisherPipeline", "provision stream")
	}

	readings, err := queue.New[live.Reading](queue.WithMetrics(a.registry, "reading"))
	if err != nil {
		return err
	}

	subscriber, err := live.NewSubscriber(a.cfg.Live, readings,
		live.WithLogger(a.logger),
		live.WithMetrics(a.registry),
		live.WithHealth(a.monitor))
	if err != nil {
		return err
	}

	publisher, err := enrich.NewPublisher(readings, a.cache, pub, a.cfg.Publisher,
		enrich.WithLogger(a.logger),
		enrich.WithMetrics(a.registry),
		enrich.WithHealth(a.monitor))
	if err != nil {
		return err
	}

	a.registry.CoreMetrics().RecordRoleStatus(config.RolePublisher, metric.StatusRunning)

	g.Go(func() error {
		defer readings.Close()
		return subscriber.Run(ctx)
	})
	g.Go(func() error {
		return publisher.Run(ctx)
	})
	return nil
}

func (a *application) recordRoles(status int) {
	core := a.registry.CoreMetrics()
	if a.cfg.RunsCache() {
		core.RecordRoleStatus(config.RoleCache, status)
	}
	if a.cfg.RunsPublisher() {
		core.RecordRoleStatus(config.RolePublisher, status)
	}
}

// shutdown releases the cache, the NATS connection and the metrics server.
func (a *application) shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("Failed to close metadata cache", "error", err)
		}
	}
	if a.nats != nil {
		if err := a.nats.Close(ctx); err != nil {
			a.logger.Warn("Failed to close NATS connection", "error", err)
		}
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(ctx); err != nil {
			a.logger.Warn("Failed to stop metrics server", "error", err)
		}
	}
}
