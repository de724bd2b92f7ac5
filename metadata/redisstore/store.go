// Package redisstore is the Redis-backed metadata cache.
package redisstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/sensor"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string `json:"addr"     yaml:"addr"`
	Password string `json:"-"        yaml:"-"`
	DB       int    `json:"db"       yaml:"db"`
	// TTL expires records this long after their last write. Zero keeps them forever.
	TTL time.Duration `json:"ttl" yaml:"ttl"`
	// KeyPrefix is prepended to every sensor key.
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// Store implements metadata.Cache on Redis, one JSON string per sensor key.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "RedisStore", "New", "redis addr is required")
	}
	if cfg.TTL < 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "RedisStore", "New", "ttl cannot be negative")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.WrapTransient(err, "RedisStore", "New", "ping redis")
	}

	return NewWithClient(rdb, cfg.TTL, cfg.KeyPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, ttl time.Duration, prefix string) *Store {
	return &Store{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Get returns the record stored under key, or nil when absent.
func (s *Store) Get(ctx context.Context, key string) (*sensor.Record, error) {
	data, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "RedisStore", "Get", "get record")
	}

	var rec sensor.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidData, err),
			"RedisStore", "Get", "decode record")
	}
	return &rec, nil
}

// Put replaces the record stored under key.
func (s *Store) Put(ctx context.Context, key string, record sensor.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapInvalid(err, "RedisStore", "Put", "encode record")
	}
	if err := s.rdb.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		return errors.WrapTransient(err, "RedisStore", "Put", "set record")
	}
	return nil
}

// Exists reports whether key has a record.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, errors.WrapTransient(err, "RedisStore", "Exists", "check key")
	}
	return n > 0, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
