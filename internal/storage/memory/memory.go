// Package memory provides in-process rebate and product stores for local
// runs and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/rebate-engine/internal/domain/product"
	"github.com/xenking/rebate-engine/internal/domain/rebate"
	"github.com/xenking/rebate-engine/internal/fixture"
)

var (
	_ rebate.Store  = (*RebateStore)(nil)
	_ product.Store = (*ProductStore)(nil)
)

// RebateStore keeps rebates and recorded calculations in memory.
type RebateStore struct {
	mu           sync.RWMutex
	rebates      map[string]rebate.Rebate
	calculations []rebate.Calculation
	now          func() time.Time
}

// NewRebateStore returns a RebateStore holding the given rebates.
func NewRebateStore(rebates ...rebate.Rebate) *RebateStore {
	s := &RebateStore{
		rebates: make(map[string]rebate.Rebate, len(rebates)),
		now:     time.Now,
	}
	for _, r := range rebates {
		s.rebates[r.ID] = r
	}
	return s
}

// GetRebate returns a copy of the stored rebate, or rebate.ErrNotFound.
func (s *RebateStore) GetRebate(_ context.Context, id string) (*rebate.Rebate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rebates[id]
	if !ok {
		return nil, rebate.ErrNotFound
	}
	return &r, nil
}

// StoreCalculationResult appends a calculation record for r.
func (s *RebateStore) StoreCalculationResult(_ context.Context, r *rebate.Rebate, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calculations = append(s.calculations, rebate.Calculation{
		ID:           uuid.New().String(),
		RebateID:     r.ID,
		Incentive:    r.Incentive,
		Amount:       amount,
		CalculatedAt: s.now(),
	})
	return nil
}

// Calculations returns a snapshot of recorded calculations in insertion order.
func (s *RebateStore) Calculations() []rebate.Calculation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.calculations)
}

// ListRebateIDs returns the identifiers of all stored rebates.
func (s *RebateStore) ListRebateIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.rebates))
	for id := range s.rebates {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// ProductStore keeps products in memory.
type ProductStore struct {
	mu       sync.RWMutex
	products map[string]product.Product
}

// NewProductStore returns a ProductStore holding the given products.
func NewProductStore(products ...product.Product) *ProductStore {
	s := &ProductStore{products: make(map[string]product.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// GetProduct returns a copy of the stored product, or product.ErrNotFound.
func (s *ProductStore) GetProduct(_ context.Context, id string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// FromFixture builds both stores from a decoded fixture.
func FromFixture(fx *fixture.Fixture) (*RebateStore, *ProductStore) {
	return NewRebateStore(fx.Rebates...), NewProductStore(fx.Products...)
}
