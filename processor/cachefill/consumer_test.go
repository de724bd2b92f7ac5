package cachefill

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/gira"
	"github.com/c360/sensorstream/metadata"
	"github.com/c360/sensorstream/metric"
	"github.com/c360/sensorstream/sensor"
)

// failingCache fails every read or write depending on its flags.
type failingCache struct {
	*metadata.Memory
	failGet bool
	failPut bool
}

func (c *failingCache) Get(ctx context.Context, key string) (*sensor.Record, error) {
	if c.failGet {
		return nil, errors.WrapTransient(errors.ErrStorageUnavailable, "failingCache", "Get", "read")
	}
	return c.Memory.Get(ctx, key)
}

func (c *failingCache) Put(ctx context.Context, key string, record sensor.Record) error {
	if c.failPut {
		return errors.WrapTransient(errors.ErrStorageUnavailable, "failingCache", "Put", "write")
	}
	return c.Memory.Put(ctx, key, record)
}

func descriptor(key, description string) gira.Descriptor {
	return gira.Descriptor{Key: key, Meta: gira.Meta{Description: description}}
}

func TestConsumer_InsertSeedsEmptyUnit(t *testing.T) {
	ctx := context.Background()
	cache := metadata.NewMemory()
	c, err := NewConsumer(newDescriptorQueue(t), cache)
	require.NoError(t, err)

	outcome := c.Handle(ctx, descriptor("CO@2_0_205", "House 2_Floor1_Kitchen_Electric_Hob_Current"))
	assert.Equal(t, OutcomeInserted, outcome)

	rec, err := cache.Get(ctx, "CO@2_0_205")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "House 2", rec.BuildingName)
	assert.Equal(t, "Floor1", rec.FloorName)
	assert.Equal(t, "Kitchen", rec.RoomName)
	assert.Equal(t, "Hob", rec.ObjectName)
	assert.Equal(t, "Current", rec.MeasurementType)
	assert.Equal(t, "", rec.UnitOfMeasure)
}

func TestConsumer_MergeKeepsUnit(t *testing.T) {
	ctx := context.Background()
	cache := metadata.NewMemory()
	require.NoError(t, cache.Put(ctx, "CO@4_3_148", sensor.Record{
		SensorKey:     "CO@4_3_148",
		BuildingName:  "stale",
		UnitOfMeasure: "°C",
	}))

	c, err := NewConsumer(newDescriptorQueue(t), cache)
	require.NoError(t, err)

	d := descriptor("CO@4_3_148", "House 4_WWHRS_ShowerMIX_Temp")
	assert.Equal(t, OutcomeMerged, c.Handle(ctx, d))
	first, _ := cache.Get(ctx, "CO@4_3_148")

	assert.Equal(t, OutcomeMerged, c.Handle(ctx, d))
	second, _ := cache.Get(ctx, "CO@4_3_148")

	assert.Equal(t, "House 4", first.BuildingName)
	assert.Equal(t, "WWHRS", first.ServiceType)
	assert.Equal(t, "°C", first.UnitOfMeasure)
	assert.Equal(t, first, second)
}

func TestConsumer_Drops(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cache   *failingCache
		d       gira.Descriptor
		outcome Outcome
	}{
		{"missing key", &failingCache{Memory: metadata.NewMemory()}, descriptor("", "House 1_Heating_Boiler_Temp"), OutcomeMissingKey},
		{"not a house", &failingCache{Memory: metadata.NewMemory()}, descriptor("CO@1", "Garage_Door"), OutcomeNoMatch},
		{"empty description", &failingCache{Memory: metadata.NewMemory()}, descriptor("CO@1", ""), OutcomeNoMatch},
		{"too few tokens", &failingCache{Memory: metadata.NewMemory()}, descriptor("CO@1", "House 1"), OutcomeNoMatch},
		{"read failure", &failingCache{Memory: metadata.NewMemory(), failGet: true}, descriptor("CO@1", "House 1_Heating_Boiler_Temp"), OutcomeCacheError},
		{"write failure", &failingCache{Memory: metadata.NewMemory(), failPut: true}, descriptor("CO@1", "House 1_Heating_Boiler_Temp"), OutcomeCacheError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewConsumer(newDescriptorQueue(t), tt.cache, WithMetrics(metric.NewMetricsRegistry()))
			require.NoError(t, err)

			assert.Equal(t, tt.outcome, c.Handle(ctx, tt.d))
			assert.Zero(t, tt.cache.Len())
		})
	}
}

func TestConsumer_RunDrainsQueue(t *testing.T) {
	q := newDescriptorQueue(t)
	cache := metadata.NewMemory()

	c, err := NewConsumer(q, cache)
	require.NoError(t, err)

	require.NoError(t, q.Push(descriptor("CO@1", "House 1_Heating_Boiler_Temp")))
	require.NoError(t, q.Push(descriptor("", "House 1_Heating_Boiler_Temp")))
	require.NoError(t, q.Push(descriptor("CO@2", "House 2_Floor1_Electric_Power")))
	require.NoError(t, q.Push(descriptor("CO@3", "Garage_Door")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return cache.Len() == 2 && q.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}

func TestConsumer_RunReturnsWhenQueueClosed(t *testing.T) {
	q := newDescriptorQueue(t)
	cache := metadata.NewMemory()
	c, err := NewConsumer(q, cache)
	require.NoError(t, err)

	require.NoError(t, q.Push(descriptor("CO@1", "House 1_Heating_Boiler_Temp")))
	q.Close()

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 1, cache.Len())
}

func TestFetchAndConsume(t *testing.T) {
	q := newDescriptorQueue(t)
	cache := metadata.NewMemory()

	loop, err := NewFetchLoop(&pagedFetcher{sizes: []int{1000, 1000, 437}}, q, FetchLoopConfig{})
	require.NoError(t, err)
	c, err := NewConsumer(q, cache)
	require.NoError(t, err)

	_, err = loop.Scan(context.Background())
	require.NoError(t, err)
	q.Close()

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 2437, cache.Len())
}

func TestNewConsumer_Validation(t *testing.T) {
	_, err := NewConsumer(nil, metadata.NewMemory())
	assert.True(t, errors.IsInvalid(err))

	_, err = NewConsumer(newDescriptorQueue(t), nil)
	assert.True(t, errors.IsInvalid(err))
}
