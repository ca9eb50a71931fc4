package equations

import (
	"testing"
	"time"

	"github.com/orcast/orcast/internal/domain"
	"github.com/orcast/orcast/internal/modules/featurelib"
	"github.com/orcast/orcast/internal/modules/sparsereg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearTerm(base string, coef float64) sparsereg.WeightedTerm {
	return sparsereg.WeightedTerm{
		Term:        featurelib.Term{Kind: featurelib.Linear, Base: base},
		Coefficient: coef,
	}
}

func TestConstructNilYieldsZeroEquation(t *testing.T) {
	expr := Construct(nil)
	assert.True(t, expr.IsZero())
	assert.Equal(t, "0", expr.String())

	v, err := expr.Eval(map[string]float64{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestConstructCombinesLikeTerms(t *testing.T) {
	expr := Construct([]sparsereg.WeightedTerm{
		linearTerm("depth", 0.5),
		linearTerm("salinity", 1.0),
		linearTerm("depth", 0.25),
	})

	terms := expr.Terms()
	require.Len(t, terms, 2)
	assert.Equal(t, "depth", terms[0].Term.Base)
	assert.InDelta(t, 0.75, terms[0].Coefficient, 1e-12)
	assert.Equal(t, "salinity", terms[1].Term.Base)
}

func TestConstructDropsCancelledTerms(t *testing.T) {
	expr := Construct([]sparsereg.WeightedTerm{
		linearTerm("depth", 1.5),
		linearTerm("depth", -1.5),
	})
	assert.True(t, expr.IsZero())
}

func TestEvalMissingVariable(t *testing.T) {
	expr := Construct([]sparsereg.WeightedTerm{linearTerm("mystery", 1.0)})
	_, err := expr.Eval(map[string]float64{"depth": 1})
	require.Error(t, err)
	assert.True(t, domain.IsMissingVariable(err))
}

func TestEvalWeightedSum(t *testing.T) {
	expr := Construct([]sparsereg.WeightedTerm{
		linearTerm("depth", 2.0),
		{
			Term:        featurelib.Term{Kind: featurelib.Power, Base: "depth", Exponent: 2},
			Coefficient: -0.5,
		},
	})

	v, err := expr.Eval(map[string]float64{"depth": 4})
	require.NoError(t, err)
	assert.InDelta(t, 2*4-0.5*16, v, 1e-12)
}

func TestStringRendering(t *testing.T) {
	expr := Construct([]sparsereg.WeightedTerm{linearTerm("depth", -0.25)})
	assert.Equal(t, "-0.25*depth", expr.String())
}

func TestLogisticBounds(t *testing.T) {
	assert.Equal(t, 0.5, Logistic(0))
	assert.Equal(t, 1.0, Logistic(100))
	assert.Equal(t, 0.0, Logistic(-100))
	assert.Greater(t, Logistic(1), 0.5)
	assert.Less(t, Logistic(-1), 0.5)
}

func TestPredictZeroEquationIsExactlyHalf(t *testing.T) {
	p, err := Predict(Construct(nil), domain.Observation{Latitude: 48.5, Longitude: -123})
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)
}

func TestPredictAllFallsBackOnFailure(t *testing.T) {
	exprs := map[domain.Behavior]*Expr{
		domain.Feeding: Construct([]sparsereg.WeightedTerm{linearTerm("mystery", 1.0)}),
	}
	set := NewSet("run-1", time.Now(), exprs)

	probs := PredictAll(set, domain.Observation{Latitude: 48.5, Longitude: -123}, zerolog.Nop())

	// The broken equation degrades to 0.0; the zero equations stay at 0.5.
	assert.Equal(t, 0.0, probs[domain.Feeding])
	assert.Equal(t, 0.5, probs[domain.Socializing])
	assert.Equal(t, 0.5, probs[domain.Traveling])
}
