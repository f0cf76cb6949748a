package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/fhirkeeper/internal/dbx"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/counters"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/resources"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/snapshots"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLiteRepositoryManager vends the embedded single-node flavour.
type SQLiteRepositoryManager struct{}

func (m *SQLiteRepositoryManager) Resources(db dbx.DBTX) resources.Repository {
	return resources.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Counters(db dbx.DBTX) counters.Repository {
	return counters.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Snapshots(db dbx.DBTX) snapshots.Repository {
	return snapshots.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, migrations.SQLiteDir)
}

func (m *SQLiteRepositoryManager) EnsureIndices(ctx context.Context, db dbx.DBTX) error {
	return ensureIndices(ctx, db)
}

func NewSQLiteRepositoryManager() RepositoryManager {
	return &SQLiteRepositoryManager{}
}
