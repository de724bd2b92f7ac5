// Package metadata defines the shared sensor metadata cache and an in-memory
// implementation. Networked backends live in the redisstore and kvstore
// subpackages.
package metadata

import (
	"context"
	"sync"

	"github.com/c360/sensorstream/sensor"
)

// Cache stores one Record per sensor key. Get returns (nil, nil) for a
// missing key. Put replaces the stored record entirely; merging is the
// caller's job. Failures are returned as transient errors.
type Cache interface {
	Get(ctx context.Context, key string) (*sensor.Record, error)
	Put(ctx context.Context, key string, record sensor.Record) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// Memory is a map-backed Cache for tests and single-process runs.
type Memory struct {
	mu      sync.RWMutex
	records map[string]sensor.Record
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]sensor.Record)}
}

// Get returns a copy of the stored record.
func (m *Memory) Get(_ context.Context, key string) (*sensor.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Put replaces the record stored under key.
func (m *Memory) Put(_ context.Context, key string, record sensor.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[key] = record
	return nil
}

// Exists reports whether key has a record.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.records[key]
	return ok, nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
