package rebate

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/rebate-engine/internal/domain/product"
)

// Service selects a calculator for a rebate, computes the amount and records
// positive results.
type Service struct {
	rebates  Store
	products product.Store
	registry *Registry
}

// NewService creates a rebate Service. A nil registry means DefaultRegistry.
func NewService(rebates Store, products product.Store, registry *Registry) *Service {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Service{
		rebates:  rebates,
		products: products,
		registry: registry,
	}
}

// Calculate loads the rebate and product, computes the rebate amount and, when
// it is positive, stores it against the rebate.
//
// A missing rebate or product, an incentive type without a calculator and a
// non-positive amount all yield Success=false with a nil error. Store failures
// are returned as errors.
func (s *Service) Calculate(ctx context.Context, req CalculateRequest) (CalculateResult, error) {
	lg := zctx.From(ctx).With(
		zap.String("rebate_id", req.RebateID),
		zap.String("product_id", req.ProductID),
	)

	r, rerr := s.rebates.GetRebate(ctx, req.RebateID)
	if rerr != nil && !errors.Is(rerr, ErrNotFound) {
		return CalculateResult{}, errors.Wrap(rerr, "get rebate")
	}
	p, perr := s.products.GetProduct(ctx, req.ProductID)
	if perr != nil && !errors.Is(perr, product.ErrNotFound) {
		return CalculateResult{}, errors.Wrap(perr, "get product")
	}
	if rerr != nil || perr != nil {
		lg.Debug("Rebate or product not found",
			zap.Bool("rebate_found", rerr == nil),
			zap.Bool("product_found", perr == nil),
		)
		return CalculateResult{}, nil
	}

	calc, ok := s.registry.Select(r.Incentive)
	if !ok {
		lg.Debug("No calculator for incentive", zap.Stringer("incentive", r.Incentive))
		return CalculateResult{}, nil
	}

	// Zero is indistinguishable from "not applicable" here: a legitimately
	// zero rebate is reported as a failure too.
	amount := calc.Calculate(r, p, req)
	if !amount.IsPositive() {
		lg.Debug("Non-positive rebate amount", zap.Stringer("amount", amount))
		return CalculateResult{}, nil
	}

	if err := s.rebates.StoreCalculationResult(ctx, r, amount); err != nil {
		return CalculateResult{}, errors.Wrap(err, "store calculation result")
	}

	return CalculateResult{Success: true}, nil
}
