package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/metadata"
	"github.com/c360/sensorstream/sensor"
)

const sample = `sensor_key,building_name,room_name,floor_name,service_type,object_name,measurement_type,unit_of_measure
CO@2_0_205,1910s Terrace Mid,Kitchen,Floor1,Electric,Hob,Current,A
CO@4_3_148,House 4,,,WWHRS,ShowerMIX,Temp,°C
,1990s Detached,Lounge,,Heating,,Temp,°C
CO@9_1_1,,Lounge,,Heating,,Temp,°C
CO@99_1_1,Unknown Street,Lounge,,Heating,,Temp,°C
`

func TestLoad(t *testing.T) {
	ctx := context.Background()
	cache := metadata.NewMemory()

	stats, err := Load(ctx, strings.NewReader(sample), cache, nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{Rows: 5, Written: 2, Skipped: 3}, stats)

	rec, err := cache.Get(ctx, "CO@2_0_205")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, sensor.Record{
		SensorKey:       "CO@2_0_205",
		SensorName:      "House 2_Floor1_Kitchen_Electric_Hob_Current",
		BuildingName:    "House 2",
		FloorName:       "Floor1",
		RoomName:        "Kitchen",
		ServiceType:     "Electric",
		ObjectName:      "Hob",
		MeasurementType: "Current",
		UnitOfMeasure:   "A",
	}, *rec)

	rec, err = cache.Get(ctx, "CO@4_3_148")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "House 4_WWHRS_ShowerMIX_Temp", rec.SensorName)
	assert.Equal(t, "°C", rec.UnitOfMeasure)
}

func TestLoad_OverwritesExisting(t *testing.T) {
	ctx := context.Background()
	cache := metadata.NewMemory()
	require.NoError(t, cache.Put(ctx, "CO@4_3_148", sensor.Record{SensorKey: "CO@4_3_148", UnitOfMeasure: "K"}))

	_, err := Load(ctx, strings.NewReader(sample), cache, nil)
	require.NoError(t, err)

	rec, _ := cache.Get(ctx, "CO@4_3_148")
	assert.Equal(t, "°C", rec.UnitOfMeasure)
}

func TestLoad_BadInput(t *testing.T) {
	ctx := context.Background()

	_, err := Load(ctx, strings.NewReader(""), metadata.NewMemory(), nil)
	assert.True(t, errors.IsInvalid(err))

	_, err = Load(ctx, strings.NewReader("key,building\nCO@1,House 1\n"), metadata.NewMemory(), nil)
	assert.True(t, errors.IsInvalid(err))
	assert.ErrorIs(t, err, errors.ErrParsingFailed)

	_, err = Load(ctx, strings.NewReader("sensor_key,building_name\n\"CO@1,House 1\n"), metadata.NewMemory(), nil)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoad_ShortRowsAndBOM(t *testing.T) {
	ctx := context.Background()
	cache := metadata.NewMemory()

	input := "\ufeffsensor_key,building_name,measurement_type\nCO@6_1_1,1950s Bungalow\n"
	stats, err := Load(ctx, strings.NewReader(input), cache, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Written)

	rec, _ := cache.Get(ctx, "CO@6_1_1")
	require.NotNil(t, rec)
	assert.Equal(t, "House 6", rec.SensorName)
	assert.Equal(t, "House 6", rec.BuildingName)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensor_metadata.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cache := metadata.NewMemory()
	stats, err := LoadFile(context.Background(), path, cache, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Written)
	assert.Equal(t, 2, cache.Len())

	_, err = LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), cache, nil)
	assert.True(t, errors.IsFatal(err))
}

func TestSensorName(t *testing.T) {
	assert.Equal(t, "House 10_Outside_Weather_Wind",
		SensorName(sensor.Record{BuildingName: "House 10", RoomName: "Outside", ServiceType: "Weather", MeasurementType: "Wind"}))
}
