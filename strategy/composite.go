package strategy

import "fmt"

// Decision is the aggregated verdict of a component chain.
type Decision struct {
	Allowed       bool
	Confidence    float64
	VetoComponent string
	VetoReason    string

	// Results holds only the components that were actually evaluated;
	// components skipped by the short-circuit are absent.
	Results map[string]ComponentResult
}

// Composite evaluates an ordered list of components as one veto/confidence
// chain. Order matters: evaluation stops at the first veto, and cheaper
// gates placed earlier save the cost of the ones behind them.
type Composite struct {
	components []Component
}

// NewComposite fails loudly on an empty chain; that is programmer misuse,
// not a runtime condition.
func NewComposite(components ...Component) (*Composite, error) {
	if len(components) == 0 {
		return nil, fmt.Errorf("strategy: composite requires at least one component")
	}
	for i, c := range components {
		if c == nil {
			return nil, fmt.Errorf("strategy: component %d is nil", i)
		}
	}
	return &Composite{components: components}, nil
}

// Components returns the configured evaluation order.
func (s *Composite) Components() []Component {
	out := make([]Component, len(s.components))
	copy(out, s.components)
	return out
}

// Evaluate runs the chain in order. On the first veto it returns immediately
// with the vetoing component named; confidence is the minimum over the
// components evaluated so far, the vetoing one included. Aggregation is
// deliberately min, not mean or product: no single strong component may mask
// a weak one.
func (s *Composite) Evaluate(ctx Context) Decision {
	results := make(map[string]ComponentResult, len(s.components))
	minConf := 1.0

	for _, c := range s.components {
		res := c.Evaluate(ctx)
		results[c.Name()] = res
		if res.Confidence < minConf {
			minConf = res.Confidence
		}
		if !res.Allowed {
			return Decision{
				Allowed:       false,
				Confidence:    minConf,
				VetoComponent: c.Name(),
				VetoReason:    res.Reason,
				Results:       results,
			}
		}
	}

	return Decision{Allowed: true, Confidence: minConf, Results: results}
}
