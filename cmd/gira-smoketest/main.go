// Command gira-smoketest checks connectivity to a building gateway. It runs
// two metadata scans into an in-memory cache, then opens the live reading
// websocket and prints the first readings it receives.
//
// Settings come from the same environment variables and .env file as
// sensorstream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c360/sensorstream/config"
	"github.com/c360/sensorstream/gira"
	"github.com/c360/sensorstream/input/live"
	"github.com/c360/sensorstream/metadata"
	"github.com/c360/sensorstream/pkg/queue"
	"github.com/c360/sensorstream/processor/cachefill"
)

const (
	smokeScans         = 2
	smokeMessages      = 10
	smokeMaxReconnects = 2
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file with the gateway settings")
	interval := flag.Duration("scan-interval", time.Second, "pause between the metadata scans")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader()
	loader.AddEnvFile(*envFile)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	failed := false

	if cfg.Gira.Endpoint == "" {
		logger.Warn("Skipping metadata check", "reason", config.EnvSourceAPIURL+" is not set")
	} else if err := checkMetadata(ctx, cfg.Gira, *interval, logger); err != nil {
		logger.Error("Metadata check failed", "error", err)
		failed = true
	}

	if cfg.Live.URL == "" {
		logger.Warn("Skipping live check", "reason", config.EnvSourceAPIWSURL+" is not set")
	} else if err := checkLive(ctx, cfg.Live, logger); err != nil {
		logger.Error("Live check failed", "error", err)
		failed = true
	}

	if failed {
		os.Exit(1)
	}
}

// checkMetadata runs the fetch loop for two scans and consumes the
// descriptors into a memory cache.
func checkMetadata(ctx context.Context, cfg gira.Config, interval time.Duration, logger *slog.Logger) error {
	client, err := gira.NewClient(cfg, gira.WithLogger(logger))
	if err != nil {
		return err
	}

	descriptors, err := queue.New[gira.Descriptor]()
	if err != nil {
		return err
	}

	loop, err := cachefill.NewFetchLoop(client, descriptors, cachefill.FetchLoopConfig{
		ScanInterval: interval,
		MaxScans:     smokeScans,
	}, cachefill.WithLogger(logger))
	if err != nil {
		return err
	}

	cache := metadata.NewMemory()
	consumer, err := cachefill.NewConsumer(descriptors, cache, cachefill.WithLogger(logger))
	if err != nil {
		return err
	}

	if err := loop.Run(ctx); err != nil {
		return err
	}
	descriptors.Close()
	if err := consumer.Run(ctx); err != nil {
		return err
	}

	pushes, _ := descriptors.Stats()
	if cache.Len() == 0 {
		return fmt.Errorf("no sensor metadata cached after %d scans (%d descriptors)", loop.Scans(), pushes)
	}

	logger.Info("Metadata check succeeded", "scans", loop.Scans(), "descriptors", pushes, "cached", cache.Len())
	return nil
}

// checkLive subscribes and prints readings until enough messages arrived.
func checkLive(ctx context.Context, cfg live.Config, logger *slog.Logger) error {
	cfg.MaxReconnects = smokeMaxReconnects
	cfg.MaxMessages = smokeMessages

	readings, err := queue.New[live.Reading]()
	if err != nil {
		return err
	}

	sub, err := live.NewSubscriber(cfg, readings, live.WithLogger(logger))
	if err != nil {
		return err
	}

	if err := sub.Run(ctx); err != nil {
		return err
	}
	readings.Close()

	for {
		r, ok := readings.TryPop()
		if !ok {
			break
		}
		fmt.Printf("%s = %v\n", r.SensorKey, r.Value)
	}

	messages, queued := sub.Stats()
	if messages == 0 {
		return fmt.Errorf("no messages received")
	}
	logger.Info("Live check succeeded", "messages", messages, "readings", queued)
	return nil
}
