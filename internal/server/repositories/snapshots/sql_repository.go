package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/dbx"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
)

// SQLRepository stores snapshots with their keys as a JSON array.
type SQLRepository struct {
	db     dbx.DBTX
	sqlite bool
}

func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, sqlite: true}
}

func (r *SQLRepository) rebind(q string) string {
	if r.sqlite {
		return dbx.Question.Rebind(q)
	}
	return q
}

func (r *SQLRepository) timeArg(t time.Time) any {
	if r.sqlite {
		return t.UTC().UnixMicro()
	}
	return t.UTC()
}

func (r *SQLRepository) Create(ctx context.Context, s *models.Snapshot) error {
	keys, err := json.Marshal(s.Keys)
	if err != nil {
		return fmt.Errorf("%w: snapshot keys: %w", common.ErrMapping, err)
	}
	query := `INSERT INTO snapshots (id, title, self_link, sort_by, keys, match_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.db.ExecContext(ctx, r.rebind(query),
		s.ID, s.Title, s.SelfLink, s.SortBy, string(keys), s.MatchCount, r.timeArg(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("%w: insert snapshot %s: %w", common.ErrStorage, s.ID, err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*models.Snapshot, error) {
	keysCol := "keys::text"
	if r.sqlite {
		keysCol = "keys"
	}
	query := `SELECT id, title, self_link, sort_by, ` + keysCol + `, match_count, created_at
		FROM snapshots WHERE id = $1`

	var (
		s       models.Snapshot
		keys    []byte
		created any
	)
	err := r.db.QueryRowContext(ctx, r.rebind(query), id).
		Scan(&s.ID, &s.Title, &s.SelfLink, &s.SortBy, &keys, &s.MatchCount, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select snapshot %s: %w", common.ErrStorage, id, err)
	}
	if err := json.Unmarshal(keys, &s.Keys); err != nil {
		return nil, fmt.Errorf("%w: snapshot %s keys: %w", common.ErrMapping, id, err)
	}
	switch c := created.(type) {
	case time.Time:
		s.CreatedAt = c.UTC()
	case int64:
		s.CreatedAt = time.UnixMicro(c).UTC()
	}
	return &s, nil
}

func (r *SQLRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("%w: delete snapshots: %w", common.ErrStorage, err)
	}
	return nil
}
