package rebate

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/rebate-engine/internal/domain/incentive"
	"github.com/xenking/rebate-engine/internal/domain/product"
)

var zero = decimal.Zero

// Calculator computes the rebate amount for a single incentive type.
//
// Calculate never fails: absent or degenerate inputs yield zero. Negative
// inputs are not rejected and flow through the arithmetic unchanged.
type Calculator interface {
	CanCalculate(t incentive.Type) bool
	Calculate(r *Rebate, p *product.Product, req CalculateRequest) decimal.Decimal
}

// FixedCashAmountCalculator pays the rebate's flat amount.
type FixedCashAmountCalculator struct{}

func (FixedCashAmountCalculator) CanCalculate(t incentive.Type) bool {
	return t == incentive.FixedCashAmount
}

func (FixedCashAmountCalculator) Calculate(r *Rebate, p *product.Product, _ CalculateRequest) decimal.Decimal {
	if r == nil || p == nil || r.Amount.IsZero() {
		return zero
	}
	return r.Amount
}

// FixedRateCalculator pays price × percentage × volume.
type FixedRateCalculator struct{}

func (FixedRateCalculator) CanCalculate(t incentive.Type) bool {
	return t == incentive.FixedRateRebate
}

func (FixedRateCalculator) Calculate(r *Rebate, p *product.Product, req CalculateRequest) decimal.Decimal {
	if r == nil || p == nil || r.Percentage.IsZero() || p.Price.IsZero() || req.Volume.IsZero() {
		return zero
	}
	return p.Price.Mul(r.Percentage).Mul(req.Volume)
}

// AmountPerUomCalculator pays amount × volume. The product is not consulted.
type AmountPerUomCalculator struct{}

func (AmountPerUomCalculator) CanCalculate(t incentive.Type) bool {
	return t == incentive.AmountPerUom
}

func (AmountPerUomCalculator) Calculate(r *Rebate, _ *product.Product, req CalculateRequest) decimal.Decimal {
	if r == nil || req.Volume.IsZero() || r.Amount.IsZero() {
		return zero
	}
	return r.Amount.Mul(req.Volume)
}
