// Package storage provides the persistence layer for player needs.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	_ "modernc.org/sqlite"             // Pure Go SQLite driver
)

// Dialect selects the backing relational store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS dsn_needs (
	citizenid VARCHAR(50) PRIMARY KEY,
	hygiene INT DEFAULT 100,
	sleep INT DEFAULT 100
)`

// Open connects to the configured relational store and ensures the
// dsn_needs schema exists. For SQLite, dsn is a file path and the parent
// directory is created when missing.
func Open(dialect Dialect, dsn string) (*sqlx.DB, error) {
	var driverName string
	switch dialect {
	case DialectSQLite:
		driverName = "sqlite"
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	case DialectPostgres:
		driverName = "pgx"
		if dsn == "" {
			return nil, fmt.Errorf("postgres dialect requires a DSN")
		}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	// Connection pool settings. SQLite gets a single connection so the
	// in-memory database is shared and file writes never contend.
	switch dialect {
	case DialectSQLite:
		db.SetMaxOpenConns(1)
	case DialectPostgres:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create dsn_needs table: %w", err)
	}

	return db, nil
}
