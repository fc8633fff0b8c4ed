package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_add_index.sql":    {Data: []byte("CREATE INDEX idx ON t (a);")},
		"migrations/001_create_table.sql": {Data: []byte("CREATE TABLE t (a int);")},
		"migrations/README.md":            {Data: []byte("not a migration")},
	}

	migrations, err := ReadMigrations(fsys, "migrations")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, NewMigration(1, "001_create_table.sql", "CREATE TABLE t (a int);"), migrations[0])
	assert.Equal(t, NewMigration(2, "002_add_index.sql", "CREATE INDEX idx ON t (a);"), migrations[1])
}

func TestReadMigrations_InvalidName(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/create_table.sql": {Data: []byte("CREATE TABLE t (a int);")},
	}
	_, err := ReadMigrations(fsys, "migrations")
	assert.Error(t, err)
}

func TestReadMigrations_DuplicateIds(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/001_a.sql": {Data: []byte("SELECT 1;")},
		"migrations/001_b.sql": {Data: []byte("SELECT 2;")},
	}
	_, err := ReadMigrations(fsys, "migrations")
	assert.Error(t, err)
}

func TestUpdateDatabase_OnlyAppliesNewMigrations(t *testing.T) {
	first := []Migration{
		NewMigration(1, "001_create.sql", "CREATE TABLE counter (n int); INSERT INTO counter VALUES (0);"),
	}
	err := WithTestDb(first, func(db *pgxpool.Pool) error {
		ctx := context.Background()
		all := append(first,
			NewMigration(2, "002_increment.sql", "UPDATE counter SET n = n + 1;"),
		)
		require.NoError(t, UpdateDatabase(ctx, db, all))
		require.NoError(t, UpdateDatabase(ctx, db, all))

		var n int
		require.NoError(t, db.QueryRow(ctx, "SELECT n FROM counter").Scan(&n))
		assert.Equal(t, 1, n)

		version, err := readVersion(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, 2, version)
		return nil
	})
	skipIfNoDb(t, err)
	require.NoError(t, err)
}

func skipIfNoDb(t *testing.T, err error) {
	if errors.Is(err, ErrTestDbUnavailable) {
		t.Skipf("skipping: %v", err)
	}
}
