package rebate

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/rebate-engine/internal/domain/incentive"
)

// ErrNotFound is returned when a requested rebate does not exist.
var ErrNotFound = errors.New("rebate not found")

// Rebate is a read-only snapshot of a rebate definition. Only the fields
// relevant to Incentive carry meaning: Amount for fixed cash and per-unit
// rebates, Percentage for fixed rate rebates.
type Rebate struct {
	ID         string
	Incentive  incentive.Type
	Amount     decimal.Decimal
	Percentage decimal.Decimal
}

// CalculateRequest identifies what to calculate and for how much volume.
type CalculateRequest struct {
	RebateID  string
	ProductID string
	Volume    decimal.Decimal
}

// CalculateResult reports whether a positive rebate amount was computed and
// recorded. The amount itself is only handed to the Store.
type CalculateResult struct {
	Success bool
}

// Calculation is a persisted calculation outcome.
type Calculation struct {
	ID           string
	RebateID     string
	Incentive    incentive.Type
	Amount       decimal.Decimal
	CalculatedAt time.Time
}

// Store provides rebate lookups and records calculation results.
type Store interface {
	GetRebate(ctx context.Context, id string) (*Rebate, error)
	StoreCalculationResult(ctx context.Context, r *Rebate, amount decimal.Decimal) error
}
