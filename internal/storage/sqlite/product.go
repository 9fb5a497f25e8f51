package sqlite

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"

	"github.com/xenking/rebate-engine/internal/domain/incentive"
	"github.com/xenking/rebate-engine/internal/domain/product"
)

const (
	getProductSQL = `SELECT id, price, uom, supported_incentives FROM products WHERE id = ?`

	upsertProductSQL = `INSERT INTO products (id, price, uom, supported_incentives) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET price = excluded.price, uom = excluded.uom, supported_incentives = excluded.supported_incentives`
)

var _ product.Store = (*ProductStore)(nil)

// ProductStore implements product.Store on a database/sql SQLite handle.
type ProductStore struct {
	db *sql.DB
}

// NewProductStore returns a ProductStore using db.
func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

// GetProduct returns a single product by its identifier, or product.ErrNotFound.
func (s *ProductStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	var (
		p         product.Product
		supported int64
	)
	err := s.db.QueryRowContext(ctx, getProductSQL, id).Scan(&p.ID, &p.Price, &p.UOM, &supported)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	p.SupportedIncentives = incentive.Set(supported)
	return &p, nil
}

// UpsertProduct inserts or replaces a product.
func (s *ProductStore) UpsertProduct(ctx context.Context, p product.Product) error {
	_, err := s.db.ExecContext(ctx, upsertProductSQL,
		p.ID, p.Price.String(), p.UOM, int64(p.SupportedIncentives),
	)
	if err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}
