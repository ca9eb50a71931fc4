package equations

import (
	"fmt"

	"github.com/orcast/orcast/internal/modules/featurelib"
	"github.com/orcast/orcast/internal/modules/sparsereg"
	"github.com/vmihailenco/msgpack/v5"
)

// serializedTerm is the wire form of one weighted term. Only plain scalars
// cross the persistence boundary - no symbolic types leak out of the core.
type serializedTerm struct {
	Kind     int     `msgpack:"kind"`
	Base     string  `msgpack:"base"`
	Other    string  `msgpack:"other,omitempty"`
	Exponent int     `msgpack:"exponent,omitempty"`
	Period   float64 `msgpack:"period,omitempty"`
	Scale    float64 `msgpack:"scale,omitempty"`
	Coef     float64 `msgpack:"coef"`
}

// MarshalExpr encodes an equation as a msgpack term list for the registry.
func MarshalExpr(expr *Expr) ([]byte, error) {
	terms := expr.Terms()
	wire := make([]serializedTerm, len(terms))
	for i, wt := range terms {
		wire[i] = serializedTerm{
			Kind:     int(wt.Term.Kind),
			Base:     wt.Term.Base,
			Other:    wt.Term.Other,
			Exponent: wt.Term.Exponent,
			Period:   wt.Term.Period,
			Scale:    wt.Term.Scale,
			Coef:     wt.Coefficient,
		}
	}
	return msgpack.Marshal(wire)
}

// UnmarshalExpr decodes a stored term list back into an equation. The result
// is functionally equivalent to the freshly discovered expression: loading
// from the registry and re-running discovery produce the same evaluator.
func UnmarshalExpr(data []byte) (*Expr, error) {
	var wire []serializedTerm
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode equation terms: %w", err)
	}

	terms := make([]sparsereg.WeightedTerm, len(wire))
	for i, st := range wire {
		terms[i] = sparsereg.WeightedTerm{
			Term: featurelib.Term{
				Kind:     featurelib.Kind(st.Kind),
				Base:     st.Base,
				Other:    st.Other,
				Exponent: st.Exponent,
				Period:   st.Period,
				Scale:    st.Scale,
			},
			Coefficient: st.Coef,
		}
	}
	return Construct(terms), nil
}
