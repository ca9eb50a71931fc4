// Package equations turns sparse regression results into symbolic closed-form
// equations, evaluates them against observations, and manages the immutable
// equation-set snapshot shared by the evaluator and the uncertainty sampler.
package equations

import (
	"fmt"
	"math"
	"strings"

	"github.com/orcast/orcast/internal/modules/featurelib"
	"github.com/orcast/orcast/internal/modules/sparsereg"
)

// Expr is a discovered equation: a sum of weighted terms over the
// environmental variables. Immutable once constructed.
type Expr struct {
	terms []sparsereg.WeightedTerm
}

// Construct builds an equation from surviving (term, coefficient) pairs,
// combining like terms and dropping terms whose combined coefficient cancels
// to zero. An empty or nil input yields the zero equation - never an error.
func Construct(terms []sparsereg.WeightedTerm) *Expr {
	order := make([]sparsereg.WeightedTerm, 0, len(terms))
	seen := make(map[featurelib.Term]int, len(terms))
	for _, wt := range terms {
		if idx, ok := seen[wt.Term]; ok {
			order[idx].Coefficient += wt.Coefficient
		} else {
			seen[wt.Term] = len(order)
			order = append(order, wt)
		}
	}

	simplified := make([]sparsereg.WeightedTerm, 0, len(order))
	for _, wt := range order {
		if wt.Coefficient != 0 {
			simplified = append(simplified, wt)
		}
	}

	return &Expr{terms: simplified}
}

// IsZero reports whether the equation is the symbolic constant zero, the
// documented outcome of a degenerate fit.
func (e *Expr) IsZero() bool {
	return len(e.terms) == 0
}

// Terms returns a copy of the weighted terms.
func (e *Expr) Terms() []sparsereg.WeightedTerm {
	out := make([]sparsereg.WeightedTerm, len(e.terms))
	copy(out, e.terms)
	return out
}

// Eval substitutes the named variables into the equation and returns the raw
// (unsquashed) score. A missing variable or a non-finite partial result
// returns an error; the zero equation evaluates to exactly 0.
func (e *Expr) Eval(values map[string]float64) (float64, error) {
	var sum float64
	for _, wt := range e.terms {
		v, err := wt.Term.Value(values)
		if err != nil {
			return 0, err
		}
		sum += wt.Coefficient * v
	}
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, fmt.Errorf("equation evaluated to non-finite value")
	}
	return sum, nil
}

// String renders the equation in human-readable form, e.g.
// "0.412*prey_density + -0.03*depth^2". The zero equation renders as "0".
func (e *Expr) String() string {
	if e.IsZero() {
		return "0"
	}
	parts := make([]string, len(e.terms))
	for i, wt := range e.terms {
		parts[i] = fmt.Sprintf("%.6g*%s", wt.Coefficient, wt.Term.Name())
	}
	return strings.Join(parts, " + ")
}
