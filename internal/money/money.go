// Package money holds decimal helpers shared by JSON codecs.
package money

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Bounds accepted by DecodeJSON. Larger exponents expand into huge digit
// strings when formatted.
const (
	MaxExponent = 18
	MaxDigits   = 38
)

// ErrOutOfRange is returned for decimals outside the accepted bounds.
var ErrOutOfRange = errors.New("decimal out of range")

// DecodeJSON reads a decimal that may be encoded either as a JSON number or
// as a numeric string ("12.50").
func DecodeJSON(d *jx.Decoder) (decimal.Decimal, error) {
	num, err := d.Num()
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "read number")
	}
	s := num.String()
	if num.Str() {
		s = strings.Trim(s, `"`)
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse decimal %q", s)
	}
	if exp := v.Exponent(); exp > MaxExponent || exp < -MaxExponent || v.NumDigits() > MaxDigits {
		return decimal.Zero, errors.Wrapf(ErrOutOfRange, "parse decimal %q", s)
	}
	return v, nil
}

// EncodeJSON writes v as a numeric string to keep full precision.
func EncodeJSON(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.String())
}
