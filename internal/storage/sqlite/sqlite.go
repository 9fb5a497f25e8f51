/*
Package sqlite provides rebate and product stores backed by SQLite.

It is meant for single-node and local runs where a PostgreSQL server is not
available. Decimals are stored as TEXT and timestamps as RFC 3339 strings so
values round-trip without precision loss.

USAGE:

	db, err := sqlite.Open(ctx, "./data/rebates.db")
	if err != nil {
		return err
	}
	defer db.Close()

	svc := rebate.NewService(sqlite.NewRebateStore(db), sqlite.NewProductStore(db), nil)
*/
package sqlite

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/xenking/rebate-engine/db"
)

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}

	if err := Migrate(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Migrate applies the embedded SQLite schema.
func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, db.SQLiteSchema); err != nil {
		return errors.Wrap(err, "migrate sqlite")
	}
	return nil
}
