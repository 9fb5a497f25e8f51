package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/rebate-engine/internal/domain/incentive"
	"github.com/xenking/rebate-engine/internal/domain/rebate"
)

const (
	getRebateSQL = `SELECT id, incentive, amount, percentage FROM rebates WHERE id = $1`

	listRebateIDsSQL = `SELECT id FROM rebates ORDER BY id`

	upsertRebateSQL = `INSERT INTO rebates (id, incentive, amount, percentage)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET incentive = EXCLUDED.incentive, amount = EXCLUDED.amount, percentage = EXCLUDED.percentage`

	insertCalculationSQL = `INSERT INTO rebate_calculations (id, rebate_id, incentive, amount, calculated_at)
		VALUES ($1, $2, $3, $4, $5)`

	listCalculationsSQL = `SELECT id, rebate_id, incentive, amount, calculated_at
		FROM rebate_calculations WHERE rebate_id = $1 ORDER BY calculated_at DESC, id`
)

var _ rebate.Store = (*RebateStore)(nil)

// RebateStore implements rebate.Store backed by PostgreSQL.
type RebateStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRebateStore returns a RebateStore that uses the given pool.
func NewRebateStore(pool *pgxpool.Pool) *RebateStore {
	return &RebateStore{pool: pool, now: time.Now}
}

// GetRebate returns the rebate with the given id, or rebate.ErrNotFound.
func (s *RebateStore) GetRebate(ctx context.Context, id string) (*rebate.Rebate, error) {
	rows, err := s.pool.Query(ctx, getRebateSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get rebate %q", id)
	}

	r, err := pgx.CollectExactlyOneRow(rows, scanRebate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rebate.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get rebate %q", id)
	}
	return &r, nil
}

// StoreCalculationResult inserts a calculation row for r. Concurrent calls for
// the same rebate each produce their own row.
func (s *RebateStore) StoreCalculationResult(ctx context.Context, r *rebate.Rebate, amount decimal.Decimal) error {
	id := uuid.New()
	if _, err := s.pool.Exec(ctx, insertCalculationSQL,
		id, r.ID, string(r.Incentive), amount, s.now().UTC(),
	); err != nil {
		return errors.Wrapf(err, "insert calculation for rebate %q", r.ID)
	}
	return nil
}

// ListRebateIDs returns all rebate identifiers ordered by id.
func (s *RebateStore) ListRebateIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, listRebateIDsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list rebate ids")
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ListCalculations returns the calculations recorded for a rebate, newest first.
func (s *RebateStore) ListCalculations(ctx context.Context, rebateID string) ([]rebate.Calculation, error) {
	rows, err := s.pool.Query(ctx, listCalculationsSQL, rebateID)
	if err != nil {
		return nil, errors.Wrapf(err, "list calculations for rebate %q", rebateID)
	}
	return pgx.CollectRows(rows, scanCalculation)
}

// UpsertRebate inserts or replaces a rebate definition.
func (s *RebateStore) UpsertRebate(ctx context.Context, r rebate.Rebate) error {
	if _, err := s.pool.Exec(ctx, upsertRebateSQL,
		r.ID, string(r.Incentive), r.Amount, r.Percentage,
	); err != nil {
		return errors.Wrapf(err, "upsert rebate %q", r.ID)
	}
	return nil
}

func scanRebate(row pgx.CollectableRow) (rebate.Rebate, error) {
	var (
		r   rebate.Rebate
		typ string
	)
	err := row.Scan(&r.ID, &typ, &r.Amount, &r.Percentage)
	r.Incentive = incentive.Type(typ)
	return r, err
}

func scanCalculation(row pgx.CollectableRow) (rebate.Calculation, error) {
	var (
		c   rebate.Calculation
		id  uuid.UUID
		typ string
	)
	err := row.Scan(&id, &c.RebateID, &typ, &c.Amount, &c.CalculatedAt)
	c.ID = id.String()
	c.Incentive = incentive.Type(typ)
	return c, err
}
