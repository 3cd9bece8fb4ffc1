package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *SQLNeedsRepository {
	t.Helper()
	db, err := Open(DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewNeedsRepository(db)
}

func TestGetMissingRowReturnsNil(t *testing.T) {
	repo := openTestDB(t)

	row, err := repo.Get(context.Background(), "CIT404")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestLoadOrCreateInsertsDefaults(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	row, err := LoadOrCreate(ctx, repo, "CIT001")
	require.NoError(t, err)
	assert.Equal(t, 100, row.Hygiene)
	assert.Equal(t, 100, row.Sleep)

	// The row must now exist in the store.
	stored, err := repo.Get(ctx, "CIT001")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, row, *stored)
}

func TestLoadOrCreateReturnsExisting(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, NeedsRow{CitizenID: "CIT002", Hygiene: 15, Sleep: 90}))

	row, err := LoadOrCreate(ctx, repo, "CIT002")
	require.NoError(t, err)
	assert.Equal(t, 15, row.Hygiene)
	assert.Equal(t, 90, row.Sleep)
}

func TestUpsertLastWriteWins(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, NeedsRow{CitizenID: "CIT003", Hygiene: 40, Sleep: 60}))
	require.NoError(t, repo.Upsert(ctx, NeedsRow{CitizenID: "CIT003", Hygiene: 100, Sleep: 10}))

	stored, err := repo.Get(ctx, "CIT003")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 100, stored.Hygiene)
	assert.Equal(t, 10, stored.Sleep)
}
