package sparsereg

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/orcast/orcast/internal/domain"
	"github.com/orcast/orcast/internal/modules/featurelib"
	"gonum.org/v1/gonum/mat"
)

// varianceEpsilon is the floor below which a standardized column is
// considered degenerate and removed from the fit.
const varianceEpsilon = 1e-12

// Options control a sparse regression run.
type Options struct {
	// Threshold is the hard magnitude floor applied to the fitted
	// (standardized-scale) coefficients after the L1 fit.
	Threshold float64
	// Folds is the number of cross-validation folds.
	Folds int
	// AlphaGridSize is the number of log-spaced regularization strengths
	// swept between AlphaMin and AlphaMax.
	AlphaGridSize int
	AlphaMin      float64
	AlphaMax      float64
	// MaxIter and Tol bound the coordinate-descent solver.
	MaxIter int
	Tol     float64
	// Seed fixes the cross-validation shuffle for reproducibility.
	Seed uint64
}

// DefaultOptions returns the standard discovery configuration.
func DefaultOptions() Options {
	return Options{
		Threshold:     0.01,
		Folds:         5,
		AlphaGridSize: 20,
		AlphaMin:      1e-4,
		AlphaMax:      1.0,
		MaxIter:       2000,
		Tol:           1e-5,
		Seed:          1,
	}
}

// WeightedTerm is one surviving term with its coefficient in the original
// (unstandardized) feature scale.
type WeightedTerm struct {
	Term        featurelib.Term
	Coefficient float64
}

// SparseFit is the result of one regression run for one behavioral target.
// An empty Terms slice is the valid "equation = 0" outcome of a degenerate
// fit, not an error.
type SparseFit struct {
	Terms         []WeightedTerm
	Alpha         float64 // selected regularization strength
	Sparsity      float64 // fraction of candidate terms pruned
	NumCandidates int
	RowsUsed      int
}

// Fit runs the sparse identification step: drop non-finite rows, standardize,
// remove degenerate columns, select the L1 strength by k-fold cross
// validation, threshold, and report coefficients in original units.
func Fit(lib *featurelib.Library, target []float64, opts Options) (*SparseFit, error) {
	rows, cols := lib.Matrix.Dims()
	if len(target) != rows {
		return nil, fmt.Errorf("target length %d does not match %d library rows", len(target), rows)
	}
	if opts.Folds < 2 {
		opts.Folds = 2
	}

	kept := finiteRows(lib.Matrix, target)
	if len(kept) == 0 {
		return nil, fmt.Errorf("sparse fit: %w", domain.ErrNoUsableRows)
	}

	// Standardize the usable rows; degenerate columns contribute nothing and
	// destabilize the solver, so they are dropped before fitting.
	Xs, y, colIdx, colStd := standardize(lib.Matrix, target, kept)
	fit := &SparseFit{NumCandidates: cols, RowsUsed: len(kept), Sparsity: 1.0}
	if len(colIdx) == 0 {
		return fit, nil
	}

	alpha := selectAlpha(Xs, y, opts)
	fit.Alpha = alpha

	beta := lassoCD(Xs, y, alpha, opts.Tol, opts.MaxIter)

	// Statistical sparsity from L1, plus a floor for numerical noise.
	for j, b := range beta {
		if math.Abs(b) < opts.Threshold {
			continue
		}
		orig := colIdx[j]
		fit.Terms = append(fit.Terms, WeightedTerm{
			Term:        lib.Terms[orig],
			Coefficient: b / colStd[j],
		})
	}
	fit.Sparsity = 1.0 - float64(len(fit.Terms))/float64(cols)

	return fit, nil
}

// finiteRows returns the indices of rows with no NaN/Inf in either the
// library or the target, preserving row correspondence.
func finiteRows(X *mat.Dense, y []float64) []int {
	rows, cols := X.Dims()
	kept := make([]int, 0, rows)
	for i := 0; i < rows; i++ {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		ok := true
		for j := 0; j < cols; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, i)
		}
	}
	return kept
}

// standardize builds a zero-mean unit-variance copy of the kept rows,
// dropping columns with variance below varianceEpsilon. The target is
// centered so the solver needs no intercept. Returns the standardized
// matrix, centered target, surviving column indices, and their standard
// deviations (needed to map coefficients back to original units).
func standardize(X *mat.Dense, y []float64, rows []int) (*mat.Dense, []float64, []int, []float64) {
	n := len(rows)
	_, cols := X.Dims()

	means := make([]float64, cols)
	stds := make([]float64, cols)
	for j := 0; j < cols; j++ {
		var sum float64
		for _, i := range rows {
			sum += X.At(i, j)
		}
		mu := sum / float64(n)
		var ss float64
		for _, i := range rows {
			d := X.At(i, j) - mu
			ss += d * d
		}
		means[j] = mu
		stds[j] = math.Sqrt(ss / float64(n))
	}

	colIdx := make([]int, 0, cols)
	for j := 0; j < cols; j++ {
		if stds[j]*stds[j] >= varianceEpsilon {
			colIdx = append(colIdx, j)
		}
	}

	Xs := mat.NewDense(n, len(colIdx), nil)
	for r, i := range rows {
		for c, j := range colIdx {
			Xs.Set(r, c, (X.At(i, j)-means[j])/stds[j])
		}
	}

	var ySum float64
	for _, i := range rows {
		ySum += y[i]
	}
	yMean := ySum / float64(n)
	yc := make([]float64, n)
	for r, i := range rows {
		yc[r] = y[i] - yMean
	}

	colStd := make([]float64, len(colIdx))
	for c, j := range colIdx {
		colStd[c] = stds[j]
	}

	return Xs, yc, colIdx, colStd
}

// selectAlpha sweeps a log-spaced grid of regularization strengths and picks
// the one with the lowest mean validation MSE across k folds.
func selectAlpha(X *mat.Dense, y []float64, opts Options) float64 {
	n, _ := X.Dims()
	folds := opts.Folds
	if folds > n {
		folds = n
	}
	if folds < 2 {
		return opts.AlphaMin
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(n)

	bestAlpha := opts.AlphaMin
	bestMSE := math.Inf(1)
	for _, alpha := range alphaGrid(opts) {
		var total float64
		for f := 0; f < folds; f++ {
			trainX, trainY, valRows := splitFold(X, y, perm, folds, f)
			beta := lassoCD(trainX, trainY, alpha, opts.Tol, opts.MaxIter)
			total += predictionMSE(X, y, beta, valRows)
		}
		mse := total / float64(folds)
		if mse < bestMSE {
			bestMSE = mse
			bestAlpha = alpha
		}
	}

	return bestAlpha
}

// alphaGrid returns the log-spaced regularization strengths, largest first
// so ties in validation error resolve toward sparser fits.
func alphaGrid(opts Options) []float64 {
	size := opts.AlphaGridSize
	if size < 2 {
		return []float64{opts.AlphaMin}
	}
	logMin := math.Log10(opts.AlphaMin)
	logMax := math.Log10(opts.AlphaMax)
	grid := make([]float64, size)
	for i := 0; i < size; i++ {
		exp := logMax - (logMax-logMin)*float64(i)/float64(size-1)
		grid[i] = math.Pow(10, exp)
	}
	return grid
}

// splitFold materializes the training submatrix for fold f of the shuffled
// permutation and returns the held-out row indices.
func splitFold(X *mat.Dense, y []float64, perm []int, folds, f int) (*mat.Dense, []float64, []int) {
	n := len(perm)
	_, p := X.Dims()

	lo := n * f / folds
	hi := n * (f + 1) / folds
	valRows := perm[lo:hi]

	trainRows := make([]int, 0, n-(hi-lo))
	trainRows = append(trainRows, perm[:lo]...)
	trainRows = append(trainRows, perm[hi:]...)

	trainX := mat.NewDense(len(trainRows), p, nil)
	trainY := make([]float64, len(trainRows))
	for r, i := range trainRows {
		for j := 0; j < p; j++ {
			trainX.Set(r, j, X.At(i, j))
		}
		trainY[r] = y[i]
	}

	return trainX, trainY, valRows
}
