package rebate

import "github.com/xenking/rebate-engine/internal/domain/incentive"

// Registry holds an ordered list of calculators. Selection is first match
// wins, not best match.
type Registry struct {
	calculators []Calculator
}

// NewRegistry creates a Registry that consults calcs in the given order.
func NewRegistry(calcs ...Calculator) *Registry {
	return &Registry{calculators: calcs}
}

// DefaultRegistry returns a Registry with one calculator per incentive type.
func DefaultRegistry() *Registry {
	return NewRegistry(
		FixedRateCalculator{},
		AmountPerUomCalculator{},
		FixedCashAmountCalculator{},
	)
}

// Select returns the first calculator that can handle t.
func (r *Registry) Select(t incentive.Type) (Calculator, bool) {
	for _, c := range r.calculators {
		if c.CanCalculate(t) {
			return c, true
		}
	}
	return nil, false
}
