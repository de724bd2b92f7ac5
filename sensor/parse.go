package sensor

import (
	stderrors "errors"
	"strings"

	"github.com/c360/sensorstream/errors"
)

var (
	// ErrNoMatch is returned for descriptions that do not follow the
	// house-prefixed naming grammar.
	ErrNoMatch = stderrors.New("description does not match sensor naming grammar")

	// ErrMalformed is returned when a description starts with "house" but has
	// too few tokens for its form. It wraps ErrNoMatch.
	ErrMalformed = errors.Wrap(ErrNoMatch, "sensor", "Parse", "token count")
)

const (
	descriptionPrefix = "house"
	floorPrefix       = "Floor"
	weatherMarker     = "weather"
)

// Parse derives structured metadata from a free-text sensor description such
// as "House 2_Floor1_Kitchen_Electric_Hob_Current".
//
// Descriptions take one of two forms once split on "_":
//
//	<building>_Floor<n>_<service>_<measurement>
//	<building>_Floor<n>_<room>_<service>_<object>[_..]_<measurement>
//	<building>_<service>_<object>_<measurement>
//	<building>_<room>_<service>_<object>[_..]_<measurement>
//
// Any description mentioning "weather" belongs to the weather station
// building regardless of its first token.
func Parse(key, description string) (Fields, error) {
	if key == "" {
		return Fields{}, errors.ErrMissingKey
	}
	if !strings.HasPrefix(strings.ToLower(description), descriptionPrefix) {
		return Fields{}, ErrNoMatch
	}

	tokens := strings.Split(description, "_")
	if len(tokens) < 2 {
		return Fields{}, ErrMalformed
	}

	f := Fields{
		SensorKey:       key,
		SensorName:      description,
		MeasurementType: tokens[len(tokens)-1],
	}

	if strings.HasPrefix(tokens[1], floorPrefix) {
		if len(tokens) < 4 {
			return Fields{}, ErrMalformed
		}
		f.FloorName = tokens[1]
		f.ServiceType = tokens[3]
		if len(tokens) > 4 {
			f.RoomName = tokens[2]
			f.ObjectName = tokens[4]
		}
	} else {
		if len(tokens) < 3 {
			return Fields{}, ErrMalformed
		}
		if len(tokens) > 4 {
			f.RoomName = tokens[1]
			f.ServiceType = tokens[2]
			f.ObjectName = tokens[3]
		} else {
			f.ServiceType = tokens[1]
			f.ObjectName = tokens[2]
		}
	}

	if f.ObjectName == f.MeasurementType {
		f.ObjectName = ""
	}

	if strings.Contains(strings.ToLower(description), weatherMarker) {
		f.BuildingName = WeatherStationBuilding
	} else {
		f.BuildingName = tokens[0]
	}

	return f, nil
}
