package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// NeedsRow mirrors the dsn_needs table.
type NeedsRow struct {
	CitizenID string `db:"citizenid"`
	Hygiene   int    `db:"hygiene"`
	Sleep     int    `db:"sleep"`
}

// NeedsRepository defines the interface for needs persistence.
// The engine uses this interface; the implementation lives here.
type NeedsRepository interface {
	// Get retrieves one player's row. Returns nil when no row exists.
	Get(ctx context.Context, citizenID string) (*NeedsRow, error)

	// Insert adds a fresh row for a player.
	Insert(ctx context.Context, row NeedsRow) error

	// Upsert writes the current snapshot, inserting when absent.
	// Concurrent writers resolve last-write-wins.
	Upsert(ctx context.Context, row NeedsRow) error
}

// SQLNeedsRepository implements NeedsRepository over sqlx for both
// supported dialects.
type SQLNeedsRepository struct {
	db *sqlx.DB
}

// NewNeedsRepository creates a repository bound to an open database.
func NewNeedsRepository(db *sqlx.DB) *SQLNeedsRepository {
	return &SQLNeedsRepository{db: db}
}

func (r *SQLNeedsRepository) Get(ctx context.Context, citizenID string) (*NeedsRow, error) {
	var row NeedsRow
	query := r.db.Rebind(`SELECT citizenid, hygiene, sleep FROM dsn_needs WHERE citizenid = ?`)
	err := r.db.GetContext(ctx, &row, query, citizenID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select needs for %s: %w", citizenID, err)
	}
	return &row, nil
}

func (r *SQLNeedsRepository) Insert(ctx context.Context, row NeedsRow) error {
	query := r.db.Rebind(`INSERT INTO dsn_needs (citizenid, hygiene, sleep) VALUES (?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, row.CitizenID, row.Hygiene, row.Sleep); err != nil {
		return fmt.Errorf("insert needs for %s: %w", row.CitizenID, err)
	}
	return nil
}

func (r *SQLNeedsRepository) Upsert(ctx context.Context, row NeedsRow) error {
	query := r.db.Rebind(`
		INSERT INTO dsn_needs (citizenid, hygiene, sleep) VALUES (?, ?, ?)
		ON CONFLICT (citizenid) DO UPDATE SET hygiene = excluded.hygiene, sleep = excluded.sleep`)
	if _, err := r.db.ExecContext(ctx, query, row.CitizenID, row.Hygiene, row.Sleep); err != nil {
		return fmt.Errorf("upsert needs for %s: %w", row.CitizenID, err)
	}
	return nil
}

// LoadOrCreate returns the stored row for a player, inserting a full
// 100/100 row first when the player has never been seen.
func LoadOrCreate(ctx context.Context, repo NeedsRepository, citizenID string) (NeedsRow, error) {
	row, err := repo.Get(ctx, citizenID)
	if err != nil {
		return NeedsRow{}, err
	}
	if row != nil {
		return *row, nil
	}

	fresh := NeedsRow{CitizenID: citizenID, Hygiene: 100, Sleep: 100}
	if err := repo.Insert(ctx, fresh); err != nil {
		return NeedsRow{}, err
	}
	return fresh, nil
}
