package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/gira"
	"github.com/c360/sensorstream/input/live"
	"github.com/c360/sensorstream/output/broker"
	"github.com/c360/sensorstream/processor/enrich"
)

// Process roles
const (
	RoleCache     = "cache"     // metadata fetch loop and cache consumer
	RolePublisher = "publisher" // websocket subscriber and enrichment publisher
	RoleAll       = "all"       // both pipelines in one process
)

// Cache backends
const (
	BackendRedis  = "redis"
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// Config represents the complete application configuration
type Config struct {
	Role      string        `json:"role"      yaml:"role"`
	LogLevel  string        `json:"log_level" yaml:"log_level"`
	Gira      gira.Config   `json:"gira"      yaml:"gira"`
	Live      live.Config   `json:"live"      yaml:"live"`
	Cache     CacheConfig   `json:"cache"     yaml:"cache"`
	NATS      NATSConfig    `json:"nats"      yaml:"nats"`
	Broker    broker.Config `json:"broker"    yaml:"broker"`
	Publisher enrich.Config `json:"publisher" yaml:"publisher"`
	Metrics   MetricsConfig `json:"metrics"   yaml:"metrics"`
}

// CacheConfig selects and configures the metadata cache
type CacheConfig struct {
	Backend      string        `json:"backend"       yaml:"backend"`
	TTL          time.Duration `json:"ttl"           yaml:"ttl"`
	ScanInterval time.Duration `json:"scan_interval" yaml:"scan_interval"`
	SeedCSV      string        `json:"seed_csv"      yaml:"seed_csv"`
	Bucket       string        `json:"bucket"        yaml:"bucket"`
	Redis        RedisConfig   `json:"redis"         yaml:"redis"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr      string `json:"addr"       yaml:"addr"`
	Password  string `json:"-"          yaml:"-"`
	DB        int    `json:"db"         yaml:"db"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string      `json:"urls"           yaml:"urls"`
	Name          string        `json:"name"           yaml:"name"`
	MaxReconnects int           `json:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait" yaml:"reconnect_wait"`
	Username      string        `json:"username"       yaml:"username"`
	Password      string        `json:"-"              yaml:"-"`
	Token         string        `json:"-"              yaml:"-"`
}

// MetricsConfig controls the /metrics and /health endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port"    yaml:"port"`
	Path    string `json:"path"    yaml:"path"`
}

// Defaults returns the configuration used before any file or environment
// override is applied.
func Defaults() *Config {
	return &Config{
		Role:     RoleAll,
		LogLevel: "info",
		Gira: gira.Config{
			InsecureSkipVerify: true,
			Timeout:            30 * time.Second,
		},
		Live: live.Config{
			InsecureSkipVerify: true,
			Keys:               []string{live.DefaultSubscribeKey},
			Context:            live.DefaultSubscribeContext,
			ReconnectDelay:     live.DefaultReconnectDelay,
		},
		Cache: CacheConfig{
			Backend:      BackendRedis,
			ScanInterval: 5 * time.Second,
			Bucket:       "sensor_metadata",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Broker: broker.Config{
			Stream:     broker.DefaultStream,
			Duplicates: broker.DefaultDuplicates,
		},
		Publisher: enrich.Config{
			MaxAttempts:  enrich.DefaultMaxAttempts,
			RestartDelay: enrich.DefaultRestartDelay,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// RunsCache reports whether the role includes the cache pipeline
func (c *Config) RunsCache() bool {
	return c.Role == RoleCache || c.Role == RoleAll
}

// RunsPublisher reports whether the role includes the publisher pipeline
func (c *Config) RunsPublisher() bool {
	return c.Role == RolePublisher || c.Role == RoleAll
}

// NeedsNATS reports whether the process must connect to NATS
func (c *Config) NeedsNATS() bool {
	return c.RunsPublisher() || c.Cache.Backend == BackendNATS
}

// Validate checks the settings the configured role depends on. All
// failures are fatal and wrap errors.ErrInvalidConfig or
// errors.ErrMissingConfig.
func (c *Config) Validate() error {
	c.Role = strings.ToLower(strings.TrimSpace(c.Role))
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))

	switch c.Role {
	case RoleCache, RolePublisher, RoleAll:
	default:
		return invalid("role %q must be one of %s, %s, %s", c.Role, RoleCache, RolePublisher, RoleAll)
	}

	switch c.Cache.Backend {
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			return missing("cache.redis.addr is required for the redis backend")
		}
	case BackendNATS:
		if c.Cache.Bucket == "" {
			return missing("cache.bucket is required for the nats backend")
		}
	case BackendMemory:
		if c.Role != RoleAll {
			return invalid("the memory cache backend is only shared within role %q", RoleAll)
		}
	default:
		return invalid("cache.backend %q must be one of %s, %s, %s", c.Cache.Backend, BackendRedis, BackendNATS, BackendMemory)
	}

	if c.Cache.TTL < 0 {
		return invalid("cache.ttl cannot be negative")
	}
	if c.Cache.ScanInterval < 0 {
		return invalid("cache.scan_interval cannot be negative")
	}

	if c.RunsCache() {
		if err := c.Gira.Validate(); err != nil {
			return errors.WrapFatal(err, "Config", "Validate", "gira settings")
		}
	}

	if c.RunsPublisher() {
		if err := c.Live.Validate(); err != nil {
			return errors.WrapFatal(err, "Config", "Validate", "live settings")
		}
		if err := c.Broker.Validate(); err != nil {
			return errors.WrapFatal(err, "Config", "Validate", "broker settings")
		}
		if c.Publisher.MaxAttempts < 0 || c.Publisher.RestartDelay < 0 {
			return invalid("publisher restart limits cannot be negative")
		}
	}

	if c.NeedsNATS() && len(c.NATS.URLs) == 0 {
		return missing("nats.urls is required")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return invalid("metrics.port %d out of range", c.Metrics.Port)
	}

	return nil
}

// String renders the configuration as JSON. Secrets are never included.
func (c *Config) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}

func invalid(format string, args ...any) error {
	return errors.WrapFatal(fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
		"Config", "Validate", "validate configuration")
}

func missing(format string, args ...any) error {
	return errors.WrapFatal(fmt.Errorf("%w: "+format, append([]any{errors.ErrMissingConfig}, args...)...),
		"Config", "Validate", "validate configuration")
}
