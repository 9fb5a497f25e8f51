package incentive

import (
	"strings"

	"github.com/go-faster/errors"
)

// Type enumerates how a rebate's value is computed.
type Type string

const (
	// FixedRateRebate pays a percentage of the product price per unit of volume.
	FixedRateRebate Type = "fixed_rate_rebate"
	// AmountPerUom pays a fixed amount per unit of measure.
	AmountPerUom Type = "amount_per_uom"
	// FixedCashAmount pays a flat amount regardless of volume.
	FixedCashAmount Type = "fixed_cash_amount"
)

// ErrUnknownType is returned when parsing a value outside the known enumeration.
var ErrUnknownType = errors.New("unknown incentive type")

// Parse converts s (case-insensitive) to a Type.
func Parse(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", errors.Wrapf(ErrUnknownType, "parse %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the known incentive types.
func (t Type) Valid() bool {
	return t.flag() != 0
}

func (t Type) String() string { return string(t) }

func (t Type) flag() Set {
	switch t {
	case FixedRateRebate:
		return 1 << 0
	case AmountPerUom:
		return 1 << 1
	case FixedCashAmount:
		return 1 << 2
	default:
		return 0
	}
}

// Set is a bitset of incentive types a product supports.
type Set uint8

// All lists every known type in flag order.
var All = []Type{FixedRateRebate, AmountPerUom, FixedCashAmount}

// SetOf builds a Set from the given types. Unknown types are ignored.
func SetOf(types ...Type) Set {
	var s Set
	for _, t := range types {
		s = s.Add(t)
	}
	return s
}

// Add returns s with t included.
func (s Set) Add(t Type) Set {
	return s | t.flag()
}

// Has reports whether t is in s.
func (s Set) Has(t Type) bool {
	f := t.flag()
	return f != 0 && s&f == f
}

// Types returns the members of s in flag order.
func (s Set) Types() []Type {
	var out []Type
	for _, t := range All {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s Set) String() string {
	types := s.Types()
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, "|")
}
