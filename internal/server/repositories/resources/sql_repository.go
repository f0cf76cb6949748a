package resources

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/dbx"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
)

// SQLRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type SQLRepository struct {
	db dbx.DBTX
	d  dialect
}

// NewPostgresRepository constructs a repository for the JSONB schema.
func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, d: postgres}
}

// NewSQLiteRepository constructs a repository for the SQLite schema.
func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, d: sqlite}
}

const columns = `record_key, logical_id, state, entry_kind, collection, version_at, batch_id`

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrStorage, op, err)
}

// Insert adds a new document. Record keys are never reused, so a conflict is
// reported as a storage error.
func (r *SQLRepository) Insert(ctx context.Context, doc *models.StorageDocument) error {
	query := `INSERT INTO resources (` + columns + `, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, r.d.rebind(query), r.args(doc)...)
	if err != nil {
		return storageErr("insert "+doc.RecordKey, err)
	}
	return nil
}

// Upsert writes the document under its record key, replacing any previous
// document with the same key.
func (r *SQLRepository) Upsert(ctx context.Context, doc *models.StorageDocument) error {
	query := `INSERT INTO resources (` + columns + `, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (record_key)
		DO UPDATE SET
			logical_id = EXCLUDED.logical_id,
			state = EXCLUDED.state,
			entry_kind = EXCLUDED.entry_kind,
			collection = EXCLUDED.collection,
			version_at = EXCLUDED.version_at,
			batch_id = EXCLUDED.batch_id,
			body = EXCLUDED.body`
	res, err := r.db.ExecContext(ctx, r.d.rebind(query), r.args(doc)...)
	if err != nil {
		return storageErr("upsert "+doc.RecordKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	// Postgres reports 1 for both paths; SQLite may report the conflict
	// update as 1 or 2 depending on the version.
	if n < 1 {
		return fmt.Errorf("%w: upsert %s: no rows affected", common.ErrStorage, doc.RecordKey)
	}
	return nil
}

func (r *SQLRepository) args(doc *models.StorageDocument) []any {
	return []any{
		doc.RecordKey, doc.LogicalID, string(doc.State), string(doc.Kind), doc.Collection,
		r.d.timeArg(doc.VersionAt), doc.BatchID, string(doc.Body),
	}
}

func (r *SQLRepository) selectFrom(withContent bool) string {
	return `SELECT ` + columns + `, ` + r.d.body(withContent) + ` FROM resources`
}

// Get returns the visible document stored under recordKey.
func (r *SQLRepository) Get(ctx context.Context, recordKey string) (*models.StorageDocument, error) {
	query := r.selectFrom(true) + ` WHERE record_key = $1 AND state <> 'pending'`
	docs, err := r.query(ctx, query, recordKey)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, common.ErrorNotFound
	}
	return docs[0], nil
}

// GetCurrent returns the newest current document for logicalID, tombstones
// included.
func (r *SQLRepository) GetCurrent(ctx context.Context, logicalID string) (*models.StorageDocument, error) {
	query := r.selectFrom(true) + ` WHERE logical_id = $1 AND state = 'current'
		ORDER BY version_at DESC, record_key DESC LIMIT 1`
	docs, err := r.query(ctx, query, logicalID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, common.ErrorNotFound
	}
	return docs[0], nil
}

// GetMany returns the visible documents for the given record keys in no
// particular order. Missing keys are skipped.
func (r *SQLRepository) GetMany(ctx context.Context, recordKeys []string) ([]*models.StorageDocument, error) {
	if len(recordKeys) == 0 {
		return nil, nil
	}
	args := make([]any, len(recordKeys))
	for i, k := range recordKeys {
		args[i] = k
	}
	query := r.selectFrom(true) + ` WHERE record_key IN (` + r.marks(recordKeys) + `) AND state <> 'pending'`
	return r.query(ctx, query, args...)
}

// marks returns "$1, $2, ..." with one placeholder per key.
func (r *SQLRepository) marks(keys []string) string {
	marks := make([]string, len(keys))
	for i := range keys {
		marks[i] = "$" + strconv.Itoa(i+1)
	}
	return strings.Join(marks, ", ")
}

// Find returns documents matching f, newest first.
func (r *SQLRepository) Find(ctx context.Context, f models.Filter) ([]*models.StorageDocument, error) {
	query, args := r.buildFind(f)
	return r.query(ctx, query, args...)
}

func (r *SQLRepository) buildFind(f models.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.OnlyCurrent {
		where = append(where, "state = 'current'")
	} else {
		where = append(where, "state IN ('current', 'superseded')")
	}
	if !f.IncludeDeleted {
		where = append(where, "entry_kind <> 'tombstone'")
	}
	if f.Collection != "" {
		where = append(where, "collection = "+arg(f.Collection))
	}
	if f.LogicalID != "" {
		where = append(where, "logical_id = "+arg(f.LogicalID))
	}
	if f.Since != nil {
		where = append(where, "version_at > "+arg(r.d.timeArg(*f.Since)))
	}

	query := r.selectFrom(f.WithContent) +
		` WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY version_at DESC, record_key DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(f.Limit)
	}
	return query, args
}

func (r *SQLRepository) query(ctx context.Context, query string, args ...any) ([]*models.StorageDocument, error) {
	rows, err := r.db.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, storageErr("select resources", err)
	}
	defer rows.Close()

	var result []*models.StorageDocument
	for rows.Next() {
		var (
			doc   models.StorageDocument
			state string
			kind  string
			at    versionTime
		)
		if err := rows.Scan(
			&doc.RecordKey, &doc.LogicalID, &state, &kind, &doc.Collection, &at, &doc.BatchID, &doc.Body,
		); err != nil {
			return nil, storageErr("scan resource", err)
		}
		doc.State = models.DocumentState(state)
		doc.Kind = models.EntryKind(kind)
		doc.VersionAt = at.t
		result = append(result, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate resources", err)
	}
	return result, nil
}

// Tags returns the distinct tags of visible documents, optionally restricted
// to one collection.
func (r *SQLRepository) Tags(ctx context.Context, collection string) ([]models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, r.d.rebind(r.d.tags), collection)
	if err != nil {
		return nil, storageErr("select tags", err)
	}
	defer rows.Close()

	var result []models.Tag
	for rows.Next() {
		var term, scheme, label sql.NullString
		if err := rows.Scan(&term, &scheme, &label); err != nil {
			return nil, storageErr("scan tag", err)
		}
		result = append(result, models.Tag{Term: term.String, Scheme: scheme.String, Label: label.String})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate tags", err)
	}
	return result, nil
}

// ExistingKeys returns which of recordKeys are already taken, pending
// documents included.
func (r *SQLRepository) ExistingKeys(ctx context.Context, recordKeys []string) ([]string, error) {
	if len(recordKeys) == 0 {
		return nil, nil
	}
	query := `SELECT record_key FROM resources WHERE record_key IN (` + r.marks(recordKeys) + `)`
	args := make([]any, len(recordKeys))
	for i, k := range recordKeys {
		args[i] = k
	}
	rows, err := r.db.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, storageErr("select existing keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, storageErr("scan existing key", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate existing keys", err)
	}
	return keys, nil
}

// BatchDocuments returns every document written under batchID, in any state.
func (r *SQLRepository) BatchDocuments(ctx context.Context, batchID string) ([]*models.StorageDocument, error) {
	return r.query(ctx, r.selectFrom(true)+` WHERE batch_id = $1`, batchID)
}

// PublishBatch makes every pending document of the batch current.
func (r *SQLRepository) PublishBatch(ctx context.Context, batchID string) (int64, error) {
	query := `UPDATE resources SET state = 'current' WHERE batch_id = $1 AND state = 'pending'`
	return r.exec(ctx, "publish batch "+batchID, query, batchID)
}

// Supersede demotes every current document of logicalID except the newest
// one by version timestamp.
func (r *SQLRepository) Supersede(ctx context.Context, logicalID string) (int64, error) {
	query := `UPDATE resources SET state = 'superseded'
		WHERE logical_id = $1 AND state = 'current' AND record_key <> (
			SELECT n.record_key FROM resources n
			WHERE n.logical_id = $1 AND n.state = 'current'
			ORDER BY n.version_at DESC, n.record_key DESC LIMIT 1)`
	return r.exec(ctx, "supersede "+logicalID, query, logicalID)
}

// DeleteBatch removes every document written under batchID.
func (r *SQLRepository) DeleteBatch(ctx context.Context, batchID string) (int64, error) {
	return r.exec(ctx, "delete batch "+batchID, `DELETE FROM resources WHERE batch_id = $1`, batchID)
}

func (r *SQLRepository) DeleteAll(ctx context.Context) error {
	_, err := r.exec(ctx, "delete resources", `DELETE FROM resources`)
	return err
}

func (r *SQLRepository) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return 0, storageErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("rows affected", err)
	}
	return n, nil
}
