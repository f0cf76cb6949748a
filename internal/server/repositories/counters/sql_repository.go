package counters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/dbx"
)

// SQLRepository implements Repository for Postgres and SQLite; both accept
// the same upsert syntax.
type SQLRepository struct {
	db   dbx.DBTX
	bind dbx.Bindvar
}

func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, bind: dbx.Dollar}
}

func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, bind: dbx.Question}
}

func (r *SQLRepository) Next(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO counters (name, last) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET last = counters.last + 1
		RETURNING last`
	var v int64
	if err := r.db.QueryRowContext(ctx, r.bind.Rebind(query), name).Scan(&v); err != nil {
		return 0, fmt.Errorf("%w: next %s: %w", common.ErrStorage, name, err)
	}
	return v, nil
}

func (r *SQLRepository) EnsureAtLeast(ctx context.Context, name string, value int64) error {
	query := `
		INSERT INTO counters (name, last) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET last = EXCLUDED.last
		WHERE counters.last < EXCLUDED.last`
	if _, err := r.db.ExecContext(ctx, r.bind.Rebind(query), name, value); err != nil {
		return fmt.Errorf("%w: ensure %s: %w", common.ErrStorage, name, err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, name string) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, r.bind.Rebind(`SELECT last FROM counters WHERE name = $1`), name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, common.ErrorNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: get %s: %w", common.ErrStorage, name, err)
	}
	return v, nil
}

func (r *SQLRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM counters`); err != nil {
		return fmt.Errorf("%w: delete counters: %w", common.ErrStorage, err)
	}
	return nil
}
