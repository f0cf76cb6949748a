package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/fhirkeeper/internal/dbx"
	"github.com/dmitrijs2005/fhirkeeper/internal/logging"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/repomanager"
)

// Maintenance provisions the schema and wipes the store.
type Maintenance struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	policy      *BinaryPolicy
	logger      logging.Logger
}

func NewMaintenance(db *sql.DB, repomanager repomanager.RepositoryManager, policy *BinaryPolicy, logger logging.Logger) *Maintenance {
	return &Maintenance{db: db, repomanager: repomanager, policy: policy, logger: logger.With("module", "maintenance")}
}

// EnsureIndices applies pending migrations and creates missing indexes.
func (m *Maintenance) EnsureIndices(ctx context.Context) error {
	if err := m.repomanager.RunMigrations(ctx, m.db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if err := m.repomanager.EnsureIndices(ctx, m.db); err != nil {
		return err
	}
	m.logger.Debug(ctx, "indices ensured")
	return nil
}

// Clean erases resources, counters and snapshots in one transaction, deletes
// every blob and provisions the indexes again.
func (m *Maintenance) Clean(ctx context.Context) error {
	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := m.repomanager.Resources(tx).DeleteAll(ctx); err != nil {
			return err
		}
		if err := m.repomanager.Counters(tx).DeleteAll(ctx); err != nil {
			return err
		}
		return m.repomanager.Snapshots(tx).DeleteAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("erase store: %w", err)
	}
	if err := m.policy.DeleteAll(ctx); err != nil {
		return fmt.Errorf("erase blobs: %w", err)
	}
	if err := m.EnsureIndices(ctx); err != nil {
		return err
	}
	m.logger.Info(ctx, "store cleaned")
	return nil
}
