// Package kvstore is the NATS JetStream key-value backed metadata cache.
package kvstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/natsclient"
	"github.com/c360/sensorstream/sensor"
)

// DefaultBucket is the bucket name used when none is configured.
const DefaultBucket = "sensor_metadata"

// KV is the subset of natsclient.KVStore the cache uses.
type KV interface {
	Get(ctx context.Context, key string) (*natsclient.KVEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// Config configures the bucket.
type Config struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	// TTL is applied bucket-wide. Zero keeps records forever.
	TTL      time.Duration `json:"ttl"      yaml:"ttl"`
	Replicas int           `json:"replicas" yaml:"replicas"`
}

// Store implements metadata.Cache on a JetStream KV bucket. Sensor keys
// contain '@', which KV keys do not allow, so keys are stored base64url
// encoded.
type Store struct {
	kv KV
}

// New opens (or creates) the bucket on client.
func New(ctx context.Context, client *natsclient.Client, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.TTL < 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "KVStore", "New", "ttl cannot be negative")
	}

	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "sensor metadata records keyed by encoded sensor key",
		TTL:         cfg.TTL,
		Replicas:    cfg.Replicas,
		History:     1,
	})
	if err != nil {
		return nil, err
	}

	return NewWithKV(natsclient.NewKVStore(bucket, 5*time.Second)), nil
}

// NewWithKV wraps an existing KV.
func NewWithKV(kv KV) *Store {
	return &Store{kv: kv}
}

// EncodeKey maps a sensor key onto the KV key alphabet.
func EncodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// Get returns the record stored under key, or nil when absent.
func (s *Store) Get(ctx context.Context, key string) (*sensor.Record, error) {
	entry, err := s.kv.Get(ctx, EncodeKey(key))
	if err != nil {
		if stderrors.Is(err, natsclient.ErrKVKeyNotFound) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "KVStore", "Get", "get record")
	}

	var rec sensor.Record
	if err := json.Unmarshal(entry.Value, &rec); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidData, err),
			"KVStore", "Get", "decode record")
	}
	return &rec, nil
}

// Put replaces the record stored under key.
func (s *Store) Put(ctx context.Context, key string, record sensor.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapInvalid(err, "KVStore", "Put", "encode record")
	}
	if _, err := s.kv.Put(ctx, EncodeKey(key), data); err != nil {
		return errors.WrapTransient(err, "KVStore", "Put", "put record")
	}
	return nil
}

// Exists reports whether key has a record.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.kv.Get(ctx, EncodeKey(key))
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, natsclient.ErrKVKeyNotFound) {
		return false, nil
	}
	return false, errors.WrapTransient(err, "KVStore", "Exists", "check key")
}

// Close is a no-op; the NATS connection is owned by its client.
func (s *Store) Close() error {
	return nil
}
