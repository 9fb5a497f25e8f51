package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/rebate-engine/internal/domain/incentive"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a read-only snapshot of a catalog item a rebate can apply to.
type Product struct {
	ID    string
	Price decimal.Decimal
	// UOM is the unit of measure request volumes are expressed in.
	UOM                 string
	SupportedIncentives incentive.Set
}

// Supports reports whether the product accepts rebates of incentive type t.
//
// Rebate calculation does not consult this yet.
func (p *Product) Supports(t incentive.Type) bool {
	return p.SupportedIncentives.Has(t)
}

// Store provides product lookups.
type Store interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}
