package featurelib

import (
	"fmt"
	"math"
	"strings"

	"github.com/orcast/orcast/internal/domain"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// cubeColumns bounds the degree-3 expansion to the first N input columns so
// the library size stays manageable.
const cubeColumns = 5

// expDecayFields are the variables that get an exponential-decay transform.
var expDecayFields = map[string]bool{
	domain.FieldDepth:       true,
	domain.FieldTemperature: true,
	domain.FieldPreyDensity: true,
}

// Library is the expanded candidate feature matrix plus the descriptors of
// its columns. Built fresh for each discovery run and never mutated.
type Library struct {
	Matrix *mat.Dense
	Terms  []Term
}

// Names returns the rendered column names in matrix order.
func (l *Library) Names() []string {
	names := make([]string, len(l.Terms))
	for i, t := range l.Terms {
		names[i] = t.Name()
	}
	return names
}

// NumTerms returns the number of candidate columns.
func (l *Library) NumTerms() int {
	return len(l.Terms)
}

// Build expands a raw observation matrix into the candidate library:
// originals, squares and pairwise products, cubes of the leading columns,
// sin/cos of periodic variables, and exponential decay of selected variables.
// Column order is deterministic given the input column order. Pure function;
// the input matrix is not modified.
func Build(observations *mat.Dense, names []string) (*Library, error) {
	rows, cols := observations.Dims()
	if cols != len(names) {
		return nil, fmt.Errorf("column count %d does not match %d names", cols, len(names))
	}
	if rows == 0 {
		return nil, fmt.Errorf("empty observation matrix: %w", domain.ErrNoUsableRows)
	}

	terms := enumerateTerms(observations, names)

	// Evaluate every term per row through the same Value path the equation
	// evaluator uses, so library semantics and serving semantics cannot drift.
	lib := mat.NewDense(rows, len(terms), nil)
	values := make(map[string]float64, cols)
	for i := 0; i < rows; i++ {
		for j, name := range names {
			values[name] = observations.At(i, j)
		}
		for j, t := range terms {
			v, err := t.Value(values)
			if err != nil {
				return nil, fmt.Errorf("evaluating term %s: %w", t.Name(), err)
			}
			lib.Set(i, j, v)
		}
	}

	return &Library{Matrix: lib, Terms: terms}, nil
}

// enumerateTerms lists the candidate terms in canonical order.
func enumerateTerms(observations *mat.Dense, names []string) []Term {
	rows, cols := observations.Dims()
	terms := make([]Term, 0, cols*(cols+3)/2+cubeColumns+8)

	for _, name := range names {
		terms = append(terms, Term{Kind: Linear, Base: name})
	}

	// Degree 2: x_i^2 on the diagonal, x_i*x_j above it.
	for i := 0; i < cols; i++ {
		for j := i; j < cols; j++ {
			if i == j {
				terms = append(terms, Term{Kind: Power, Base: names[i], Exponent: 2})
			} else {
				terms = append(terms, Term{Kind: Product, Base: names[i], Other: names[j]})
			}
		}
	}

	// Degree 3, leading columns only.
	for i := 0; i < cols && i < cubeColumns; i++ {
		terms = append(terms, Term{Kind: Power, Base: names[i], Exponent: 3})
	}

	// Periodic transforms of temporal variables.
	for _, name := range names {
		period := 0.0
		if strings.Contains(name, "hour") {
			period = 24
		} else if strings.Contains(name, "day") {
			period = 365
		}
		if period > 0 {
			terms = append(terms,
				Term{Kind: Sin, Base: name, Period: period},
				Term{Kind: Cos, Base: name, Period: period},
			)
		}
	}

	// Exponential decay, scaled by the batch standard deviation.
	col := make([]float64, rows)
	for j, name := range names {
		if !expDecayFields[name] {
			continue
		}
		mat.Col(col, j, observations)
		scale := stat.StdDev(col, nil)
		if scale <= 0 || math.IsNaN(scale) {
			scale = 1.0
		}
		terms = append(terms, Term{Kind: ExpDecay, Base: name, Scale: scale})
	}

	return terms
}
