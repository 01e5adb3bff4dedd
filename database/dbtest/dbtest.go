// Package dbtest opens throwaway migrated SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akinalp/runeshop/database"
)

// Open opens a migrated SQLite database in t.TempDir(), closed on cleanup.
func Open(t testing.TB) *database.DB {
	t.Helper()

	migrations, err := database.Migrations(database.DriverSQLite)
	require.NoError(t, err)

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), migrations)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
