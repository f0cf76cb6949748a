// Package sqlitetest opens migrated in-memory SQLite databases for tests.
package sqlitetest

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/fhirkeeper/internal/server/migrations"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var seq atomic.Int64

// Open returns a fresh database with the schema applied. The pool is limited
// to one connection so concurrent callers serialize instead of hitting
// shared-cache locks.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	name := fmt.Sprintf("file:sqlitetest_%d?mode=memory&cache=shared", seq.Add(1))
	db, err := sql.Open("sqlite", name)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(context.Background(), db, migrations.SQLiteDir))
	return db
}
