package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/fhirkeeper/internal/dbx"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/counters"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/resources"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/snapshots"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	// EnsureIndices creates the lookup indexes if they are missing.
	EnsureIndices(context.Context, dbx.DBTX) error
	Resources(db dbx.DBTX) resources.Repository
	Counters(db dbx.DBTX) counters.Repository
	Snapshots(db dbx.DBTX) snapshots.Repository
}

// indices are shared by both dialects.
var indices = []string{
	`CREATE INDEX IF NOT EXISTS resources_state_kind_collection_idx ON resources (state, entry_kind, collection)`,
	`CREATE INDEX IF NOT EXISTS resources_logical_id_state_idx ON resources (logical_id, state)`,
	`CREATE INDEX IF NOT EXISTS resources_version_at_collection_idx ON resources (version_at DESC, collection)`,
	`CREATE INDEX IF NOT EXISTS resources_batch_id_idx ON resources (batch_id)`,
}

func ensureIndices(ctx context.Context, db dbx.DBTX) error {
	for _, stmt := range indices {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Open connects to the database for driver and returns the matching manager.
func Open(driver, dsn string) (*sql.DB, RepositoryManager, error) {
	var m RepositoryManager
	switch driver {
	case DriverPostgres:
		m = NewPostgresRepositoryManager()
	case DriverSQLite:
		m = NewSQLiteRepositoryManager()
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	return db, m, nil
}
