package equations

import (
	"math"

	"github.com/orcast/orcast/internal/domain"
	"github.com/rs/zerolog"
)

// Logistic squashes a raw equation score to a probability in (0, 1).
// Logistic(0) is exactly 0.5, which is the defined output of the zero
// equation ("no discovered signal").
func Logistic(raw float64) float64 {
	if raw > 35 {
		return 1.0
	}
	if raw < -35 {
		return 0.0
	}
	return 1.0 / (1.0 + math.Exp(-raw))
}

// Predict substitutes an observation into the equation and squashes the raw
// score through the logistic function. Errors indicate a schema mismatch or
// a non-finite evaluation; callers in batch sweeps should use the fallback
// policy of PredictAll instead of aborting.
func Predict(expr *Expr, obs domain.Observation) (float64, error) {
	raw, err := expr.Eval(obs.Values())
	if err != nil {
		return 0, err
	}
	return Logistic(raw), nil
}

// PredictAll evaluates every behavior equation in the set against one
// observation. A failing behavior is logged and reported as probability 0.0
// rather than aborting the call - one bad cell must not kill a grid sweep.
func PredictAll(set *Set, obs domain.Observation, log zerolog.Logger) map[domain.Behavior]float64 {
	out := make(map[domain.Behavior]float64, len(domain.AllBehaviors()))
	for _, behavior := range domain.AllBehaviors() {
		expr, ok := set.Equation(behavior)
		if !ok {
			out[behavior] = 0.0
			continue
		}
		p, err := Predict(expr, obs)
		if err != nil {
			log.Warn().
				Err(err).
				Str("behavior", string(behavior)).
				Msg("Prediction failed, recording fallback probability")
			out[behavior] = 0.0
			continue
		}
		out[behavior] = p
	}
	return out
}
