// Package uncertainty quantifies predictive uncertainty around a discovered
// equation by sampling a probabilistic re-parameterization of it with
// gradient-based MCMC (No-U-Turn sampler).
package uncertainty

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// noiseModel is the generative re-parameterization of a discovered equation:
//
//	noiseScale ~ HalfNormal(1)
//	noiseRaw   ~ Normal(0, 1)
//	p          = logistic(raw + noiseScale * noiseRaw)
//
// The sampler works in the unconstrained parameterization
// theta = (u, z) with u = log(noiseScale), z = noiseRaw, so the log density
// picks up the Jacobian term +u:
//
//	logp(u, z) = -exp(2u)/2 + u - z^2/2  (+ const)
//
// Both the density and its gradient are closed form; no probabilistic
// programming DSL is involved.
type noiseModel struct{}

// logDensity returns the unnormalized log posterior density at theta.
func (noiseModel) logDensity(theta []float64) float64 {
	u, z := theta[0], theta[1]
	return -0.5*math.Exp(2*u) + u - 0.5*z*z
}

// gradient writes the gradient of logDensity into grad.
func (noiseModel) gradient(grad, theta []float64) {
	u, z := theta[0], theta[1]
	grad[0] = -math.Exp(2*u) + 1
	grad[1] = -z
}

// mapEstimate finds the posterior mode as a warm start for the sampler,
// using BFGS with a Nelder-Mead fallback. On failure the sampler starts at
// the origin, which is well inside the typical set for this density.
func mapEstimate(m noiseModel) []float64 {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return -m.logDensity(x)
		},
		Grad: func(grad, x []float64) {
			m.gradient(grad, x)
			grad[0] = -grad[0]
			grad[1] = -grad[1]
		},
	}

	initial := []float64{0, 0}
	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !finiteVec(result.X) {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil || !finiteVec(result.X) {
			return []float64{0, 0}
		}
	}
	return result.X
}

func finiteVec(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
