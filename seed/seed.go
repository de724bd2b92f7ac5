// Package seed pre-populates the metadata cache from a CSV export so that
// units of measure, which the metadata listing does not carry, are known
// before the first scan completes.
package seed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/metadata"
	"github.com/c360/sensorstream/sensor"
)

// Column names expected in the CSV header. Extra columns are ignored.
const (
	ColumnSensorKey       = "sensor_key"
	ColumnBuildingName    = "building_name"
	ColumnRoomName        = "room_name"
	ColumnFloorName       = "floor_name"
	ColumnServiceType     = "service_type"
	ColumnObjectName      = "object_name"
	ColumnMeasurementType = "measurement_type"
	ColumnUnitOfMeasure   = "unit_of_measure"
)

// Stats summarises one load.
type Stats struct {
	Rows    int
	Written int
	Skipped int
}

// LoadFile loads the CSV at path into cache.
func LoadFile(ctx context.Context, path string, cache metadata.Cache, logger *slog.Logger) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, errors.WrapFatal(err, "seed", "LoadFile", "open "+path)
	}
	defer f.Close()

	return Load(ctx, f, cache, logger)
}

// Load reads sensor rows from r and stores one Record per row, replacing
// whatever the cache held for that key. Rows without a sensor key or
// building are skipped, as are rows whose building is not a known house.
// The building column may hold either the house ("House 9") or its friendly
// name ("1990s Detached"); the record always stores the house.
func Load(ctx context.Context, r io.Reader, cache metadata.Cache, logger *slog.Logger) (Stats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "seed")

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return Stats{}, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "seed", "Load", "read header")
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, required := range []string{ColumnSensorKey, ColumnBuildingName} {
		if _, ok := index[required]; !ok {
			return Stats{}, errors.WrapInvalid(fmt.Errorf("%w: missing column %q", errors.ErrParsingFailed, required), "seed", "Load", "read header")
		}
	}

	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "seed", "Load", "read row")
		}
		stats.Rows++

		get := func(column string) string {
			i, ok := index[column]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		key, building := get(ColumnSensorKey), get(ColumnBuildingName)
		if key == "" || building == "" {
			stats.Skipped++
			continue
		}

		house, ok := resolveHouse(building)
		if !ok {
			logger.Warn("Skipping row with unknown building", "sensor_key", key, "building", building)
			stats.Skipped++
			continue
		}

		record := sensor.Record{
			SensorKey:       key,
			BuildingName:    house,
			FloorName:       get(ColumnFloorName),
			RoomName:        get(ColumnRoomName),
			ServiceType:     get(ColumnServiceType),
			ObjectName:      get(ColumnObjectName),
			MeasurementType: get(ColumnMeasurementType),
			UnitOfMeasure:   get(ColumnUnitOfMeasure),
		}
		record.SensorName = SensorName(record)

		if err := cache.Put(ctx, key, record); err != nil {
			return stats, errors.Wrap(err, "seed", "Load", "store "+key)
		}
		stats.Written++
		logger.Debug("Seeded sensor metadata", "sensor_key", key, "sensor_name", record.SensorName)
	}

	logger.Info("Cache seeded from CSV", "rows", stats.Rows, "written", stats.Written, "skipped", stats.Skipped)
	return stats, nil
}

// SensorName rebuilds the gateway-style name of a record, e.g.
// "House 2_Floor1_Kitchen_Electric_Hob_Current". Empty parts are left out.
func SensorName(r sensor.Record) string {
	parts := []string{r.BuildingName}
	for _, p := range []string{r.FloorName, r.RoomName, r.ServiceType, r.ObjectName, r.MeasurementType} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "_")
}

func resolveHouse(building string) (string, bool) {
	if _, ok := sensor.Buildings[building]; ok {
		return building, true
	}
	return sensor.HouseForBuilding(building)
}
