package sensor

// Record is the cached metadata of one sensor, keyed by its gateway key.
// Empty strings mean the field is absent. The two live-value fields are only
// set on the enriched copy that is published and are never written back.
type Record struct {
	SensorKey       string `json:"sensor_key"`
	SensorName      string `json:"sensor_name"`
	BuildingName    string `json:"building_name"`
	FloorName       string `json:"floor_name"`
	RoomName        string `json:"room_name"`
	ServiceType     string `json:"service_type"`
	ObjectName      string `json:"object_name"`
	MeasurementType string `json:"measurement_type"`
	UnitOfMeasure   string `json:"unit_of_measure"`

	LastSharedValue    *float64 `json:"last_shared_value,omitempty"`
	LastSharedDatetime *float64 `json:"last_shared_datetime,omitempty"`
}

// Fields are the values derived from a sensor description.
type Fields struct {
	SensorKey       string
	SensorName      string
	BuildingName    string
	FloorName       string
	RoomName        string
	ServiceType     string
	ObjectName      string
	MeasurementType string
}

// NewRecord builds the record stored the first time a sensor is seen.
func NewRecord(f Fields) Record {
	return Merge(Record{}, f)
}

// Merge overwrites the parser-derived fields of existing with f and keeps
// everything else (unit of measure and any live-value fields) untouched.
func Merge(existing Record, f Fields) Record {
	existing.SensorKey = f.SensorKey
	existing.SensorName = f.SensorName
	existing.BuildingName = f.BuildingName
	existing.FloorName = f.FloorName
	existing.RoomName = f.RoomName
	existing.ServiceType = f.ServiceType
	existing.ObjectName = f.ObjectName
	existing.MeasurementType = f.MeasurementType
	return existing
}

// WithLiveValue returns a copy of r carrying the live value and the Unix time
// (seconds, fractional) it was shared at.
func (r Record) WithLiveValue(value float64, sharedAt float64) Record {
	v, ts := value, sharedAt
	r.LastSharedValue = &v
	r.LastSharedDatetime = &ts
	return r
}
