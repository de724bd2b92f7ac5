package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/c360/sensorstream/errors"
)

// Environment variables shared with the deployments that predate the
// SENSORSTREAM_ prefix.
const (
	EnvSourceAPIURL      = "CONNECTOR_SOURCE_API_URL"
	EnvSourceAPIUsername = "SOURCE_API_USERNAME"
	EnvSourceAPIPassword = "SOURCE_API_PASSWORD"
	EnvSourceAPIWSURL    = "SOURCE_API_WS_URL"
	EnvCacheTTL          = "CACHE_TTL"
	EnvLoggingLevel      = "LOGGING_LEVEL"
	EnvRedisAddr         = "REDIS_ADDR"
	EnvRedisPassword     = "REDIS_PASSWORD"
	EnvNATSURLs          = "NATS_URLS"
	EnvNATSUsername      = "NATS_USERNAME"
	EnvNATSPassword      = "NATS_PASSWORD"
	EnvNATSToken         = "NATS_TOKEN"
	EnvSensorMetadataCSV = "SENSOR_METADATA_CSV"
)

// DefaultEnvPrefix prefixes the sensorstream-specific environment variables
const DefaultEnvPrefix = "SENSORSTREAM"

// Loader handles configuration loading with layers and overrides:
// defaults, then each file layer in order, then .env files, then the
// process environment.
type Loader struct {
	layers     []string
	envFiles   []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		lookupEnv: os.LookupEnv,
	}
}

// AddLayer adds a JSON or YAML configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// AddEnvFile adds a dotenv file. Missing files are ignored and variables
// already present in the environment win.
func (l *Loader) AddEnvFile(path string) {
	l.envFiles = append(l.envFiles, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		if err := l.mergeFile(cfg, path); err != nil {
			return nil, errors.WrapFatal(err, "Loader", "Load", fmt.Sprintf("load %s", path))
		}
	}

	if err := l.loadEnvFiles(); err != nil {
		return nil, err
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// mergeFile decodes a file over cfg; keys absent from the file keep their
// current values. JSON is re-encoded as YAML first so that durations may be
// written as strings ("5s") in either format.
func (l *Loader) mergeFile(cfg *Config, path string) error {
	data, err := safeReadFile(path)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
		}
		if data, err = yaml.Marshal(raw); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	return nil
}

func (l *Loader) loadEnvFiles() error {
	for _, path := range l.envFiles {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Loader", "Load", "load "+path)
		}
	}
	return nil
}

// getenv returns a validated environment value, or "" when unset.
func (l *Loader) getenv(key string) (string, error) {
	val, ok := l.lookupEnv(key)
	if !ok {
		return "", nil
	}
	val = strings.TrimSpace(val)
	if err := validateEnvVar(key, val); err != nil {
		return "", errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Loader", "applyEnvOverrides", "read "+key)
	}
	return val, nil
}

// applyEnvOverrides applies environment variables to cfg. Numeric values
// that do not parse are fatal.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := []struct {
		key  string
		dest []*string
	}{
		{EnvSourceAPIURL, []*string{&cfg.Gira.Endpoint}},
		{EnvSourceAPIUsername, []*string{&cfg.Gira.Username, &cfg.Live.Username}},
		{EnvSourceAPIPassword, []*string{&cfg.Gira.Password, &cfg.Live.Password}},
		{EnvSourceAPIWSURL, []*string{&cfg.Live.URL}},
		{EnvLoggingLevel, []*string{&cfg.LogLevel}},
		{EnvRedisAddr, []*string{&cfg.Cache.Redis.Addr}},
		{EnvRedisPassword, []*string{&cfg.Cache.Redis.Password}},
		{EnvNATSUsername, []*string{&cfg.NATS.Username}},
		{EnvNATSPassword, []*string{&cfg.NATS.Password}},
		{EnvNATSToken, []*string{&cfg.NATS.Token}},
		{EnvSensorMetadataCSV, []*string{&cfg.Cache.SeedCSV}},
		{l.envPrefix + "_ROLE", []*string{&cfg.Role}},
		{l.envPrefix + "_LOG_LEVEL", []*string{&cfg.LogLevel}},
		{l.envPrefix + "_CACHE_BACKEND", []*string{&cfg.Cache.Backend}},
		{l.envPrefix + "_CACHE_BUCKET", []*string{&cfg.Cache.Bucket}},
		{l.envPrefix + "_SUBJECT_PREFIX", []*string{&cfg.Broker.SubjectPrefix}},
		{l.envPrefix + "_STREAM", []*string{&cfg.Broker.Stream}},
	}
	for _, s := range strs {
		val, err := l.getenv(s.key)
		if err != nil {
			return err
		}
		if val == "" {
			continue
		}
		for _, dest := range s.dest {
			*dest = val
		}
	}

	urls, err := l.getenv(EnvNATSURLs)
	if err != nil {
		return err
	}
	if urls != "" {
		cfg.NATS.URLs = splitList(urls)
	}

	ttl, err := l.getenv(EnvCacheTTL)
	if err != nil {
		return err
	}
	if ttl != "" {
		seconds, err := strconv.Atoi(ttl)
		if err != nil || seconds < 0 {
			return errors.WrapFatal(fmt.Errorf("%w: %s=%q is not a non-negative integer number of seconds", errors.ErrInvalidConfig, EnvCacheTTL, ttl),
				"Loader", "applyEnvOverrides", "parse "+EnvCacheTTL)
		}
		cfg.Cache.TTL = time.Duration(seconds) * time.Second
	}

	port, err := l.getenv(l.envPrefix + "_METRICS_PORT")
	if err != nil {
		return err
	}
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return errors.WrapFatal(fmt.Errorf("%w: metrics port %q: %v", errors.ErrInvalidConfig, port, err),
				"Loader", "applyEnvOverrides", "parse metrics port")
		}
		cfg.Metrics.Port = n
	}

	caFiles, err := l.getenv(l.envPrefix + "_CA_FILES")
	if err != nil {
		return err
	}
	if caFiles != "" {
		cfg.Gira.CAFiles = splitList(caFiles)
		cfg.Live.CAFiles = splitList(caFiles)
	}

	insecure, err := l.getenv(l.envPrefix + "_INSECURE_SKIP_VERIFY")
	if err != nil {
		return err
	}
	if insecure != "" {
		b, err := strconv.ParseBool(insecure)
		if err != nil {
			return errors.WrapFatal(fmt.Errorf("%w: insecure skip verify %q: %v", errors.ErrInvalidConfig, insecure, err),
				"Loader", "applyEnvOverrides", "parse insecure skip verify")
		}
		cfg.Gira.InsecureSkipVerify = b
		cfg.Live.InsecureSkipVerify = b
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
