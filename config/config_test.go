package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorstream/errors"
)

// envMap is a fake environment for Loader.lookupEnv.
type envMap map[string]string

func (e envMap) lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

func newTestLoader(env envMap) *Loader {
	l := NewLoader()
	l.lookupEnv = env.lookup
	return l
}

func validEnv() envMap {
	return envMap{
		EnvSourceAPIURL:   "https://gira.local/endpoints/metadata?fields=meta",
		EnvSourceAPIWSURL: "wss://gira.local/endpoints/ws",
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := newTestLoader(envMap{}).Load()
	require.NoError(t, err)

	assert.Equal(t, RoleAll, cfg.Role)
	assert.Equal(t, BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 5*time.Second, cfg.Cache.ScanInterval)
	assert.Equal(t, time.Duration(0), cfg.Cache.TTL)
	assert.Equal(t, []string{"CO@*"}, cfg.Live.Keys)
	assert.Equal(t, 3, cfg.Publisher.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Publisher.RestartDelay)
	assert.True(t, cfg.Gira.InsecureSkipVerify)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	env := validEnv()
	env[EnvSourceAPIUsername] = "api-user"
	env[EnvSourceAPIPassword] = "api-pass"
	env[EnvCacheTTL] = "3600"
	env[EnvLoggingLevel] = "debug"
	env[EnvRedisAddr] = "redis:6379"
	env[EnvNATSURLs] = "nats://a:4222, nats://b:4222,"
	env[EnvSensorMetadataCSV] = "/data/sensor_metadata.csv"

	l := newTestLoader(env)
	l.EnableValidation(true)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://gira.local/endpoints/metadata?fields=meta", cfg.Gira.Endpoint)
	assert.Equal(t, "wss://gira.local/endpoints/ws", cfg.Live.URL)
	assert.Equal(t, "api-user", cfg.Gira.Username)
	assert.Equal(t, "api-user", cfg.Live.Username)
	assert.Equal(t, "api-pass", cfg.Gira.Password)
	assert.Equal(t, "api-pass", cfg.Live.Password)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.Equal(t, "/data/sensor_metadata.csv", cfg.Cache.SeedCSV)

	assert.NotContains(t, cfg.String(), "api-pass")
}

func TestLoad_CacheTTLMustBeInteger(t *testing.T) {
	for _, ttl := range []string{"one hour", "1.5", "-1"} {
		env := validEnv()
		env[EnvCacheTTL] = ttl

		_, err := newTestLoader(env).Load()
		require.Error(t, err, ttl)
		assert.True(t, errors.IsFatal(err), ttl)
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	}
}

func TestLoad_PrefixedEnvironment(t *testing.T) {
	env := validEnv()
	env["SENSORSTREAM_ROLE"] = "publisher"
	env["SENSORSTREAM_LOG_LEVEL"] = "warn"
	env[EnvLoggingLevel] = "debug"
	env["SENSORSTREAM_SUBJECT_PREFIX"] = "sensors"
	env["SENSORSTREAM_METRICS_PORT"] = "9191"
	env["SENSORSTREAM_INSECURE_SKIP_VERIFY"] = "false"
	env["SENSORSTREAM_CA_FILES"] = "/etc/ssl/gateway.pem,/etc/ssl/extra.pem"

	cfg, err := newTestLoader(env).Load()
	require.NoError(t, err)

	assert.Equal(t, RolePublisher, cfg.Role)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "sensors", cfg.Broker.SubjectPrefix)
	assert.Equal(t, 9191, cfg.Metrics.Port)
	assert.False(t, cfg.Live.InsecureSkipVerify)
	assert.Equal(t, []string{"/etc/ssl/gateway.pem", "/etc/ssl/extra.pem"}, cfg.Gira.CAFiles)
	assert.Equal(t, cfg.Gira.CAFiles, cfg.Live.CAFiles)

	env["SENSORSTREAM_METRICS_PORT"] = "ninety"
	_, err = newTestLoader(env).Load()
	assert.True(t, errors.IsFatal(err))
}

func TestLoad_YAMLLayer(t *testing.T) {
	path := writeFile(t, "sensorstream.yaml", `
role: cache
cache:
  backend: nats
  scan_interval: 30s
  bucket: metadata
gira:
  endpoint: https://gira.local/metadata?x=1
  timeout: 10s
`)

	l := newTestLoader(envMap{})
	l.AddLayer(path)
	l.EnableValidation(true)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, RoleCache, cfg.Role)
	assert.Equal(t, BackendNATS, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.ScanInterval)
	assert.Equal(t, "metadata", cfg.Cache.Bucket)
	assert.Equal(t, 10*time.Second, cfg.Gira.Timeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
	assert.True(t, cfg.Gira.InsecureSkipVerify)
}

func TestLoad_JSONLayersThenEnv(t *testing.T) {
	base := writeFile(t, "base.json", `{
	"role": "all",
	"cache": {"backend": "memory", "ttl": "10m"},
	"publisher": {"restart_delay": "1s"},
	"live": {"url": "wss://from-file/ws"}
}`)
	override := writeFile(t, "override.json", `{"publisher": {"max_attempts": 5}}`)

	env := validEnv()
	l := newTestLoader(env)
	l.AddLayer(base)
	l.AddLayer(override)
	l.EnableValidation(true)

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, time.Second, cfg.Publisher.RestartDelay)
	assert.Equal(t, 5, cfg.Publisher.MaxAttempts)
	// The environment overrides the file.
	assert.Equal(t, "wss://gira.local/endpoints/ws", cfg.Live.URL)
}

func TestLoad_BadFiles(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") }},
		{"wrong extension", func(t *testing.T) string { return writeFile(t, "config.toml", "role = 'all'") }},
		{"broken json", func(t *testing.T) string { return writeFile(t, "config.json", `{"role": `) }},
		{"too deep", func(t *testing.T) string {
			return writeFile(t, "deep.json", strings.Repeat("[", maxJSONDepth+1)+strings.Repeat("]", maxJSONDepth+1))
		}},
		{"wrong type", func(t *testing.T) string { return writeFile(t, "config.yaml", "cache:\n  scan_interval: often\n") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLoader(envMap{})
			l.AddLayer(tt.path(t))
			_, err := l.Load()
			require.Error(t, err)
			assert.True(t, errors.IsFatal(err))
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SENSORSTREAM_TEST_ONLY_STREAM=FROM_DOTENV\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SENSORSTREAM_TEST_ONLY_STREAM") })

	l := NewLoader()
	l.envPrefix = "SENSORSTREAM_TEST_ONLY"
	l.AddEnvFile(path)
	l.AddEnvFile(filepath.Join(dir, "missing.env"))

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "FROM_DOTENV", cfg.Broker.Stream)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Defaults()
		cfg.Gira.Endpoint = "https://gira.local/metadata?x=1"
		cfg.Live.URL = "wss://gira.local/ws"
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"unknown role", func(c *Config) { c.Role = "relay" }, errors.ErrInvalidConfig},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "etcd" }, errors.ErrInvalidConfig},
		{"memory outside all", func(c *Config) { c.Role = RoleCache; c.Cache.Backend = BackendMemory }, errors.ErrInvalidConfig},
		{"redis without addr", func(c *Config) { c.Cache.Redis.Addr = "" }, errors.ErrMissingConfig},
		{"cache without endpoint", func(c *Config) { c.Gira.Endpoint = "" }, errors.ErrMissingConfig},
		{"publisher without ws url", func(c *Config) { c.Live.URL = "" }, errors.ErrMissingConfig},
		{"publisher without nats", func(c *Config) { c.NATS.URLs = nil }, errors.ErrMissingConfig},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }, errors.ErrInvalidConfig},
		{"bad metrics port", func(c *Config) { c.Metrics.Port = 70000 }, errors.ErrInvalidConfig},
		{"bad subject prefix", func(c *Config) { c.Broker.SubjectPrefix = "a.>" }, errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsFatal(err))
			assert.ErrorIs(t, err, tt.target)
		})
	}

	t.Run("role scoping", func(t *testing.T) {
		cfg := valid()
		cfg.Role = RoleCache
		cfg.Live.URL = ""
		cfg.NATS.URLs = nil
		assert.NoError(t, cfg.Validate())

		cfg.Role = " Publisher "
		cfg.Live.URL = "wss://gira.local/ws"
		cfg.NATS.URLs = []string{"nats://localhost:4222"}
		cfg.Gira.Endpoint = ""
		assert.NoError(t, cfg.Validate())
		assert.Equal(t, RolePublisher, cfg.Role)
	})
}
