package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validObservation() Observation {
	return Observation{
		Latitude:     48.5,
		Longitude:    -123.0,
		Depth:        40,
		Temperature:  10,
		TidalFlow:    0.5,
		PreyDensity:  0.6,
		NoiseLevel:   110,
		Visibility:   12,
		CurrentSpeed: 1.0,
		Salinity:     30,
		PodSize:      5,
		HourOfDay:    8,
		DayOfYear:    120,
	}
}

func TestVectorMatchesFieldNames(t *testing.T) {
	obs := validObservation()
	names := FieldNames()
	vec := obs.Vector()

	require.Len(t, names, NumFields)
	require.Len(t, vec, NumFields)

	values := obs.Values()
	require.Len(t, values, NumFields)
	for i, name := range names {
		assert.Equal(t, vec[i], values[name], name)
	}
}

func TestObservationValid(t *testing.T) {
	assert.True(t, validObservation().Valid())

	obs := validObservation()
	obs.Depth = math.NaN()
	assert.False(t, obs.Valid())

	obs = validObservation()
	obs.NoiseLevel = math.Inf(1)
	assert.False(t, obs.Valid())

	obs = validObservation()
	obs.Latitude = 91
	assert.False(t, obs.Valid())

	obs = validObservation()
	obs.Longitude = -181
	assert.False(t, obs.Valid())
}

func TestTargetsBinaryIndicators(t *testing.T) {
	rows := []LabeledObservation{
		{Obs: validObservation(), Behavior: Feeding},
		{Obs: validObservation(), Behavior: Traveling},
		{Obs: validObservation(), Behavior: Feeding},
	}

	targets := Targets(rows)
	require.Len(t, targets, len(AllBehaviors()))

	assert.Equal(t, []float64{1, 0, 1}, targets[Feeding])
	assert.Equal(t, []float64{0, 0, 0}, targets[Socializing])
	assert.Equal(t, []float64{0, 1, 0}, targets[Traveling])
}

func TestIsMissingVariable(t *testing.T) {
	err := &MissingVariableError{Symbol: "depth"}
	assert.True(t, IsMissingVariable(err))
	assert.False(t, IsMissingVariable(ErrNoUsableRows))
	assert.Contains(t, err.Error(), "depth")
}
