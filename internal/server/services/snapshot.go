package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/documents"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fhirkeeper/internal/timex"
	"github.com/google/uuid"
)

// SnapshotInfo describes the query a snapshot was captured from.
type SnapshotInfo struct {
	Title    string
	SelfLink string
	SortBy   string
}

// SnapshotService captures ordered query results so they can be paged
// through later without being affected by concurrent writes.
type SnapshotService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mapper      *documents.Mapper
	clock       timex.Clock
}

func NewSnapshotService(db *sql.DB, repomanager repomanager.RepositoryManager, mapper *documents.Mapper, clock timex.Clock) *SnapshotService {
	return &SnapshotService{db: db, repomanager: repomanager, mapper: mapper, clock: clock}
}

// Capture persists keys in their given order under a fresh id.
func (s *SnapshotService) Capture(ctx context.Context, keys []string, info SnapshotInfo) (*models.Snapshot, error) {
	snap := &models.Snapshot{
		ID:         uuid.NewString(),
		Title:      info.Title,
		SelfLink:   info.SelfLink,
		SortBy:     info.SortBy,
		Keys:       append([]string{}, keys...),
		MatchCount: len(keys),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repomanager.Snapshots(s.db).Create(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Get returns the stored snapshot or common.ErrorNotFound.
func (s *SnapshotService) Get(ctx context.Context, id string) (*models.Snapshot, error) {
	return s.repomanager.Snapshots(s.db).Get(ctx, id)
}

// Resolve returns the captured keys in their captured order.
func (s *SnapshotService) Resolve(ctx context.Context, id string) ([]string, error) {
	snap, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return snap.Keys, nil
}

// Page returns up to count entries of the snapshot starting at offset, in
// captured order. Documents purged since the capture are skipped.
func (s *SnapshotService) Page(ctx context.Context, id string, offset, count int) ([]models.Entry, error) {
	if offset < 0 || count < 0 {
		return nil, fmt.Errorf("%w: negative offset or count", common.ErrValidation)
	}
	keys, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if offset >= len(keys) || count == 0 {
		return []models.Entry{}, nil
	}
	end := min(offset+count, len(keys))
	return fetchOrdered(ctx, s.db, s.repomanager, s.mapper, keys[offset:end])
}

// fetchOrdered loads documents by record key and returns their entries in
// the order of keys. The store does not preserve IN-list order.
func fetchOrdered(
	ctx context.Context,
	db *sql.DB,
	rm repomanager.RepositoryManager,
	mapper *documents.Mapper,
	keys []string,
) ([]models.Entry, error) {
	docs, err := rm.Resources(db).GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*models.StorageDocument, len(docs))
	for _, d := range docs {
		byKey[d.RecordKey] = d
	}

	ordered := make([]*models.StorageDocument, 0, len(keys))
	for _, k := range keys {
		if d, ok := byKey[k]; ok {
			ordered = append(ordered, d)
		}
	}
	return mapper.ToEntries(ctx, ordered, true)
}
