package featurelib

import (
	"math"
	"testing"

	"github.com/orcast/orcast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermName(t *testing.T) {
	tests := []struct {
		name string
		term Term
		want string
	}{
		{"linear", Term{Kind: Linear, Base: "depth"}, "depth"},
		{"square", Term{Kind: Power, Base: "depth", Exponent: 2}, "depth^2"},
		{"cube", Term{Kind: Power, Base: "latitude", Exponent: 3}, "latitude^3"},
		{"product", Term{Kind: Product, Base: "depth", Other: "salinity"}, "depth*salinity"},
		{"sin", Term{Kind: Sin, Base: "hour_of_day", Period: 24}, "sin(hour_of_day)"},
		{"cos", Term{Kind: Cos, Base: "day_of_year", Period: 365}, "cos(day_of_year)"},
		{"exp_decay", Term{Kind: ExpDecay, Base: "depth", Scale: 3.2}, "exp(-|depth|)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.term.Name())
		})
	}
}

func TestTermValue(t *testing.T) {
	values := map[string]float64{
		"depth":       4.0,
		"salinity":    30.0,
		"hour_of_day": 6.0,
	}

	v, err := Term{Kind: Linear, Base: "depth"}.Value(values)
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	v, err = Term{Kind: Power, Base: "depth", Exponent: 2}.Value(values)
	require.NoError(t, err)
	assert.Equal(t, 16.0, v)

	v, err = Term{Kind: Product, Base: "depth", Other: "salinity"}.Value(values)
	require.NoError(t, err)
	assert.Equal(t, 120.0, v)

	// sin(2*pi*6/24) = sin(pi/2) = 1
	v, err = Term{Kind: Sin, Base: "hour_of_day", Period: 24}.Value(values)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	v, err = Term{Kind: ExpDecay, Base: "depth", Scale: 4.0}.Value(values)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-1), v, 1e-12)
}

func TestTermValueMissingVariable(t *testing.T) {
	_, err := Term{Kind: Linear, Base: "mystery"}.Value(map[string]float64{"depth": 1})
	require.Error(t, err)
	assert.True(t, domain.IsMissingVariable(err))

	_, err = Term{Kind: Product, Base: "depth", Other: "mystery"}.Value(map[string]float64{"depth": 1})
	require.Error(t, err)
	assert.True(t, domain.IsMissingVariable(err))
}

func TestTermValueZeroScaleDecay(t *testing.T) {
	// A degenerate scale falls back to 1 instead of dividing by zero.
	v, err := Term{Kind: ExpDecay, Base: "depth", Scale: 0}.Value(map[string]float64{"depth": 2})
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-2), v, 1e-12)
}

func TestParseNameRoundTrip(t *testing.T) {
	terms := []Term{
		{Kind: Linear, Base: "depth"},
		{Kind: Power, Base: "depth", Exponent: 2},
		{Kind: Power, Base: "latitude", Exponent: 3},
		{Kind: Product, Base: "depth", Other: "salinity"},
		{Kind: Sin, Base: "hour_of_day", Period: 24},
		{Kind: Cos, Base: "day_of_year", Period: 365},
	}

	for _, term := range terms {
		parsed := ParseName(term.Name())
		assert.Equal(t, term.Kind, parsed.Kind, term.Name())
		assert.Equal(t, term.Base, parsed.Base, term.Name())
	}
}

func TestParseNamePeriods(t *testing.T) {
	// hour_of_day contains both "hour" and "day"; hour wins.
	parsed := ParseName("sin(hour_of_day)")
	assert.Equal(t, 24.0, parsed.Period)

	parsed = ParseName("cos(day_of_year)")
	assert.Equal(t, 365.0, parsed.Period)
}

func TestParseNameUnknownShape(t *testing.T) {
	parsed := ParseName("something_weird")
	assert.Equal(t, Linear, parsed.Kind)
	assert.Equal(t, "something_weird", parsed.Base)
}
