// Package domain contains the core types shared across the ORCAST pipeline:
// environmental observations, behavior labels, and the error taxonomy.
// The domain layer is pure - no infrastructure dependencies.
package domain

import "math"

// NumFields is the number of environmental fields in an observation.
// The field order is fixed across the whole pipeline: feature libraries,
// discovered equations, and forecast templates all assume this exact order.
const NumFields = 13

// Canonical field names, in vector order.
const (
	FieldLatitude     = "latitude"
	FieldLongitude    = "longitude"
	FieldDepth        = "depth"
	FieldTemperature  = "temperature"
	FieldTidalFlow    = "tidal_flow"
	FieldPreyDensity  = "prey_density"
	FieldNoiseLevel   = "noise_level"
	FieldVisibility   = "visibility"
	FieldCurrentSpeed = "current_speed"
	FieldSalinity     = "salinity"
	FieldPodSize      = "pod_size"
	FieldHourOfDay    = "hour_of_day"
	FieldDayOfYear    = "day_of_year"
)

// Observation is a single environmental measurement. Immutable once passed
// into the pipeline; components copy it rather than mutate it.
type Observation struct {
	Latitude     float64 // degrees, [-90, 90]
	Longitude    float64 // degrees, [-180, 180]
	Depth        float64 // meters
	Temperature  float64 // degrees C
	TidalFlow    float64 // m/s, signed
	PreyDensity  float64 // index, [0, 1]
	NoiseLevel   float64 // dB
	Visibility   float64 // meters
	CurrentSpeed float64 // m/s
	Salinity     float64 // PSU
	PodSize      float64 // whale count, >= 1
	HourOfDay    float64 // [0, 23]
	DayOfYear    float64 // [1, 366]
}

// FieldNames returns the canonical field names in vector order.
func FieldNames() []string {
	return []string{
		FieldLatitude,
		FieldLongitude,
		FieldDepth,
		FieldTemperature,
		FieldTidalFlow,
		FieldPreyDensity,
		FieldNoiseLevel,
		FieldVisibility,
		FieldCurrentSpeed,
		FieldSalinity,
		FieldPodSize,
		FieldHourOfDay,
		FieldDayOfYear,
	}
}

// Vector returns the observation as a fixed-order slice matching FieldNames.
func (o Observation) Vector() []float64 {
	return []float64{
		o.Latitude,
		o.Longitude,
		o.Depth,
		o.Temperature,
		o.TidalFlow,
		o.PreyDensity,
		o.NoiseLevel,
		o.Visibility,
		o.CurrentSpeed,
		o.Salinity,
		o.PodSize,
		o.HourOfDay,
		o.DayOfYear,
	}
}

// Values returns the observation as a name -> value map for symbol
// substitution during equation evaluation.
func (o Observation) Values() map[string]float64 {
	names := FieldNames()
	vec := o.Vector()
	values := make(map[string]float64, NumFields)
	for i, name := range names {
		values[name] = vec[i]
	}
	return values
}

// Valid reports whether the observation is usable for evaluation: all fields
// finite and the geographic coordinates within range. Out-of-range cells in a
// forecast sweep are flagged rather than evaluated.
func (o Observation) Valid() bool {
	for _, v := range o.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if o.Latitude < -90 || o.Latitude > 90 {
		return false
	}
	if o.Longitude < -180 || o.Longitude > 180 {
		return false
	}
	return true
}
