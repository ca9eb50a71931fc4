package featurelib

import (
	"math"
	"testing"

	"github.com/orcast/orcast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sampleMatrix(rows int) (*mat.Dense, []string) {
	names := domain.FieldNames()
	m := mat.NewDense(rows, len(names), nil)
	for i := 0; i < rows; i++ {
		obs := domain.Observation{
			Latitude:     48.5 + 0.01*float64(i),
			Longitude:    -123.0 + 0.01*float64(i),
			Depth:        30 + float64(i),
			Temperature:  9 + 0.1*float64(i),
			TidalFlow:    math.Sin(float64(i)),
			PreyDensity:  float64(i%10) / 10,
			NoiseLevel:   100 + float64(i%7),
			Visibility:   10,
			CurrentSpeed: 1.2,
			Salinity:     30 + 0.05*float64(i),
			PodSize:      float64(1 + i%8),
			HourOfDay:    float64(i % 24),
			DayOfYear:    float64(1 + i%365),
		}
		m.SetRow(i, obs.Vector())
	}
	return m, names
}

func TestBuildLibrarySize(t *testing.T) {
	m, names := sampleMatrix(40)
	lib, err := Build(m, names)
	require.NoError(t, err)

	// 13 linears, 13 squares + 78 products, 5 cubes, sin/cos for the two
	// temporal variables, 3 exponential decays.
	n := domain.NumFields
	want := n + n*(n+1)/2 + cubeColumns + 4 + len(expDecayFields)
	assert.Equal(t, want, lib.NumTerms())

	rows, cols := lib.Matrix.Dims()
	assert.Equal(t, 40, rows)
	assert.Equal(t, want, cols)
}

func TestBuildDeterministicColumnOrder(t *testing.T) {
	m, names := sampleMatrix(25)

	first, err := Build(m, names)
	require.NoError(t, err)
	second, err := Build(m, names)
	require.NoError(t, err)

	assert.Equal(t, first.Names(), second.Names())
	assert.True(t, mat.Equal(first.Matrix, second.Matrix))
}

func TestBuildColumnOrderIsCanonical(t *testing.T) {
	m, names := sampleMatrix(10)
	lib, err := Build(m, names)
	require.NoError(t, err)

	got := lib.Names()

	// Originals come first, in input order.
	assert.Equal(t, names, got[:len(names)])

	// The first degree-2 block entry is the square of the first column.
	assert.Equal(t, "latitude^2", got[len(names)])
	assert.Equal(t, "latitude*longitude", got[len(names)+1])

	// Periodic and decay terms appear after the polynomial blocks.
	assert.Contains(t, got, "sin(hour_of_day)")
	assert.Contains(t, got, "cos(day_of_year)")
	assert.Contains(t, got, "exp(-|depth|)")
}

func TestBuildMatrixMatchesTermValues(t *testing.T) {
	m, names := sampleMatrix(12)
	lib, err := Build(m, names)
	require.NoError(t, err)

	// Spot-check a row: every column equals the term evaluated on that row's
	// variable map. This is the library/evaluator consistency contract.
	row := 7
	values := make(map[string]float64, len(names))
	for j, name := range names {
		values[name] = m.At(row, j)
	}
	for j, term := range lib.Terms {
		want, err := term.Value(values)
		require.NoError(t, err)
		assert.InDelta(t, want, lib.Matrix.At(row, j), 1e-12, term.Name())
	}
}

func TestBuildPeriodicPeriods(t *testing.T) {
	m, names := sampleMatrix(10)
	lib, err := Build(m, names)
	require.NoError(t, err)

	for _, term := range lib.Terms {
		if term.Kind != Sin && term.Kind != Cos {
			continue
		}
		switch term.Base {
		case domain.FieldHourOfDay:
			assert.Equal(t, 24.0, term.Period)
		case domain.FieldDayOfYear:
			assert.Equal(t, 365.0, term.Period)
		default:
			t.Errorf("unexpected periodic term over %s", term.Base)
		}
	}
}

func TestBuildExpDecayScale(t *testing.T) {
	m, names := sampleMatrix(30)
	lib, err := Build(m, names)
	require.NoError(t, err)

	for _, term := range lib.Terms {
		if term.Kind == ExpDecay {
			assert.Greater(t, term.Scale, 0.0, term.Name())
		}
	}
}

func TestBuildMismatchedNames(t *testing.T) {
	m, names := sampleMatrix(5)

	_, err := Build(m, names[:3])
	assert.Error(t, err)
}
