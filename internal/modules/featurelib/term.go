// Package featurelib builds the nonlinear candidate feature library used as
// the design matrix for sparse equation discovery.
package featurelib

import (
	"fmt"
	"math"
	"strings"

	"github.com/orcast/orcast/internal/domain"
)

// Kind identifies the shape of a candidate term. The set is closed: every
// term the builder emits is one of these, so downstream construction and
// evaluation are total functions with no string parsing on the hot path.
type Kind int

const (
	// Linear is the raw variable x.
	Linear Kind = iota
	// Power is x^Exponent.
	Power
	// Product is x*y for two distinct variables.
	Product
	// Sin is sin(2*pi*x/Period).
	Sin
	// Cos is cos(2*pi*x/Period).
	Cos
	// ExpDecay is exp(-|x|/Scale), Scale being the batch standard deviation
	// of the variable captured at library-build time.
	ExpDecay
)

// Term describes one candidate feature. Terms are value types and comparable,
// which lets the equation constructor combine like terms with a map key.
type Term struct {
	Kind     Kind
	Base     string  // variable name
	Other    string  // second variable for Product
	Exponent int     // for Power
	Period   float64 // for Sin/Cos
	Scale    float64 // for ExpDecay
}

// Name renders the human-readable term name, e.g. "depth^2",
// "hour_of_day*prey_density", "sin(hour_of_day)", "exp(-|depth|)".
func (t Term) Name() string {
	switch t.Kind {
	case Linear:
		return t.Base
	case Power:
		return fmt.Sprintf("%s^%d", t.Base, t.Exponent)
	case Product:
		return fmt.Sprintf("%s*%s", t.Base, t.Other)
	case Sin:
		return fmt.Sprintf("sin(%s)", t.Base)
	case Cos:
		return fmt.Sprintf("cos(%s)", t.Base)
	case ExpDecay:
		return fmt.Sprintf("exp(-|%s|)", t.Base)
	default:
		return t.Base
	}
}

// Value evaluates the term against a variable map. A missing variable
// returns a MissingVariableError so callers can distinguish schema
// mismatches from numeric failures.
func (t Term) Value(values map[string]float64) (float64, error) {
	x, ok := values[t.Base]
	if !ok {
		return 0, &domain.MissingVariableError{Symbol: t.Base}
	}

	switch t.Kind {
	case Linear:
		return x, nil
	case Power:
		return math.Pow(x, float64(t.Exponent)), nil
	case Product:
		y, ok := values[t.Other]
		if !ok {
			return 0, &domain.MissingVariableError{Symbol: t.Other}
		}
		return x * y, nil
	case Sin:
		return math.Sin(2 * math.Pi * x / t.period()), nil
	case Cos:
		return math.Cos(2 * math.Pi * x / t.period()), nil
	case ExpDecay:
		scale := t.Scale
		if scale <= 0 {
			scale = 1.0
		}
		return math.Exp(-math.Abs(x) / scale), nil
	default:
		return x, nil
	}
}

func (t Term) period() float64 {
	if t.Period > 0 {
		return t.Period
	}
	return 1.0
}

// ParseName converts a rendered term name back into a Term. It is the
// fallback path for equation sets serialized by older services that stored
// names instead of descriptors. Unrecognized shapes degrade to a plain
// Linear term over the whole string - never an error.
func ParseName(name string) Term {
	name = strings.TrimSpace(name)

	if base, ok := strings.CutPrefix(name, "sin("); ok && strings.HasSuffix(base, ")") {
		return Term{Kind: Sin, Base: strings.TrimSuffix(base, ")"), Period: periodFor(base)}
	}
	if base, ok := strings.CutPrefix(name, "cos("); ok && strings.HasSuffix(base, ")") {
		return Term{Kind: Cos, Base: strings.TrimSuffix(base, ")"), Period: periodFor(base)}
	}
	if base, ok := strings.CutPrefix(name, "exp(-|"); ok && strings.HasSuffix(base, "|)") {
		return Term{Kind: ExpDecay, Base: strings.TrimSuffix(base, "|)"), Scale: 1.0}
	}
	if base, ok := strings.CutSuffix(name, "^2"); ok && !strings.ContainsAny(base, "*^()") {
		return Term{Kind: Power, Base: base, Exponent: 2}
	}
	if base, ok := strings.CutSuffix(name, "^3"); ok && !strings.ContainsAny(base, "*^()") {
		return Term{Kind: Power, Base: base, Exponent: 3}
	}
	if left, right, ok := strings.Cut(name, "*"); ok && left != "" && right != "" {
		return Term{Kind: Product, Base: left, Other: right}
	}

	return Term{Kind: Linear, Base: name}
}

// periodFor guesses the period for a periodic variable by name. Hour-like
// variables cycle over 24, day-like over 365.
func periodFor(base string) float64 {
	if strings.Contains(base, "hour") {
		return 24
	}
	if strings.Contains(base, "day") {
		return 365
	}
	return 1.0
}
