package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/rebate-engine/internal/domain/incentive"
	"github.com/xenking/rebate-engine/internal/domain/rebate"
)

const (
	getRebateSQL = `SELECT id, incentive, amount, percentage FROM rebates WHERE id = ?`

	listRebateIDsSQL = `SELECT id FROM rebates ORDER BY id`

	upsertRebateSQL = `INSERT INTO rebates (id, incentive, amount, percentage) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET incentive = excluded.incentive, amount = excluded.amount, percentage = excluded.percentage`

	insertCalculationSQL = `INSERT INTO rebate_calculations (id, rebate_id, incentive, amount, calculated_at)
		VALUES (?, ?, ?, ?, ?)`
)

var _ rebate.Store = (*RebateStore)(nil)

// RebateStore implements rebate.Store on a database/sql SQLite handle.
type RebateStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewRebateStore returns a RebateStore using db.
func NewRebateStore(db *sql.DB) *RebateStore {
	return &RebateStore{db: db, now: time.Now}
}

// GetRebate returns the rebate with the given id, or rebate.ErrNotFound.
func (s *RebateStore) GetRebate(ctx context.Context, id string) (*rebate.Rebate, error) {
	var (
		r   rebate.Rebate
		typ string
	)
	err := s.db.QueryRowContext(ctx, getRebateSQL, id).Scan(&r.ID, &typ, &r.Amount, &r.Percentage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rebate.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get rebate %q", id)
	}
	r.Incentive = incentive.Type(typ)
	return &r, nil
}

// StoreCalculationResult inserts a calculation row for r.
func (s *RebateStore) StoreCalculationResult(ctx context.Context, r *rebate.Rebate, amount decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, insertCalculationSQL,
		uuid.New().String(),
		r.ID,
		string(r.Incentive),
		amount.String(),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "insert calculation for rebate %q", r.ID)
	}
	return nil
}

// ListRebateIDs returns all rebate identifiers ordered by id.
func (s *RebateStore) ListRebateIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, listRebateIDsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list rebate ids")
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan rebate id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rebate ids")
	}
	return ids, nil
}

// UpsertRebate inserts or replaces a rebate definition.
func (s *RebateStore) UpsertRebate(ctx context.Context, r rebate.Rebate) error {
	_, err := s.db.ExecContext(ctx, upsertRebateSQL,
		r.ID, string(r.Incentive), r.Amount.String(), r.Percentage.String(),
	)
	if err != nil {
		return errors.Wrapf(err, "upsert rebate %q", r.ID)
	}
	return nil
}
