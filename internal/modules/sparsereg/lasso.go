// Package sparsereg fits L1-regularized linear models over a candidate
// feature library and reports the minimal set of surviving terms.
package sparsereg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// softThreshold is the proximal operator of the L1 penalty:
// S(z, a) = sign(z) * max(|z|-a, 0).
func softThreshold(z, a float64) float64 {
	if z > a {
		return z - a
	}
	if z < -a {
		return z + a
	}
	return 0
}

// lassoCD solves (1/(2n))||y - Xb||^2 + alpha*||b||_1 by cyclic coordinate
// descent with soft-thresholding. X is assumed standardized (zero mean, unit
// variance columns) and y centered, so no intercept is needed and the
// per-coordinate curvature is 1.
func lassoCD(X *mat.Dense, y []float64, alpha, tol float64, maxIter int) []float64 {
	n, p := X.Dims()
	beta := make([]float64, p)

	// Residual r = y - X*beta, updated incrementally per coordinate.
	r := make([]float64, n)
	copy(r, y)

	col := make([]float64, n)
	for it := 0; it < maxIter; it++ {
		maxChange := 0.0
		for j := 0; j < p; j++ {
			mat.Col(col, j, X)

			// rho = (1/n) * x_j . (r + x_j*b_j)
			var rho float64
			for i := 0; i < n; i++ {
				rho += col[i] * (r[i] + col[i]*beta[j])
			}
			rho /= float64(n)

			newB := softThreshold(rho, alpha)
			if math.IsNaN(newB) || math.IsInf(newB, 0) {
				newB = 0
			}
			if d := newB - beta[j]; d != 0 {
				for i := 0; i < n; i++ {
					r[i] -= col[i] * d
				}
				if ad := math.Abs(d); ad > maxChange {
					maxChange = ad
				}
				beta[j] = newB
			}
		}
		if maxChange < tol {
			break
		}
	}

	return beta
}

// predictionMSE computes mean squared error of X*beta against y over the
// given row indices.
func predictionMSE(X *mat.Dense, y, beta []float64, rows []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	_, p := X.Dims()
	var sse float64
	for _, i := range rows {
		var pred float64
		for j := 0; j < p; j++ {
			pred += X.At(i, j) * beta[j]
		}
		d := y[i] - pred
		sse += d * d
	}
	return sse / float64(len(rows))
}
