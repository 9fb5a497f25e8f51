// Package db provides embedded database schema files.
package db

import _ "embed"

// Schema contains the PostgreSQL DDL for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SQLiteSchema contains the SQLite DDL. Decimals are stored as TEXT to keep
// exact precision.
//
//go:embed migrations/sqlite/001_schema.sql
var SQLiteSchema string
