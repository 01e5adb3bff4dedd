// Package docstoretest opens throwaway SQLite-backed stores for tests.
package docstoretest

import (
	"testing"

	"github.com/akinalp/runeshop/database/dbtest"
	"github.com/akinalp/runeshop/docstore"
)

// New returns a store on a fresh database.
func New(t testing.TB, opts ...docstore.Option) *docstore.SQLStore {
	t.Helper()
	return docstore.NewSQLStore(dbtest.Open(t), opts...)
}
