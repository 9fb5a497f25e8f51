package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/rebate-engine/internal/domain/incentive"
	"github.com/xenking/rebate-engine/internal/domain/product"
)

const (
	getProductSQL = `SELECT id, price, uom, supported_incentives FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, price, uom, supported_incentives)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET price = EXCLUDED.price, uom = EXCLUDED.uom, supported_incentives = EXCLUDED.supported_incentives`
)

var _ product.Store = (*ProductStore)(nil)

// ProductStore implements product.Store backed by PostgreSQL.
type ProductStore struct {
	pool *pgxpool.Pool
}

// NewProductStore returns a ProductStore that uses the given pool.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// GetProduct returns a single product by its identifier, or product.ErrNotFound.
func (s *ProductStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	rows, err := s.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// UpsertProduct inserts or replaces a product.
func (s *ProductStore) UpsertProduct(ctx context.Context, p product.Product) error {
	if _, err := s.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Price, p.UOM, int16(p.SupportedIncentives),
	); err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p         product.Product
		supported int16
	)
	err := row.Scan(&p.ID, &p.Price, &p.UOM, &supported)
	p.SupportedIncentives = incentive.Set(supported)
	return p, err
}
