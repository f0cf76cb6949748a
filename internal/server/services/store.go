package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/documents"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/versioning"
	"github.com/dmitrijs2005/fhirkeeper/internal/timex"
)

// ResourceStore is the entry point of the storage engine. Reads go straight
// to the repositories; writes go through the batch coordinator.
type ResourceStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mapper      *documents.Mapper
	batches     *BatchCoordinator
	sequence    *SequenceGenerator
	clock       timex.Clock
}

func NewResourceStore(
	db *sql.DB,
	repomanager repomanager.RepositoryManager,
	mapper *documents.Mapper,
	batches *BatchCoordinator,
	sequence *SequenceGenerator,
	clock timex.Clock,
) *ResourceStore {
	return &ResourceStore{
		db:          db,
		repomanager: repomanager,
		mapper:      mapper,
		batches:     batches,
		sequence:    sequence,
		clock:       clock,
	}
}

func logicalID(s string) (string, error) {
	k, err := models.ParseResourceKey(s)
	if err != nil {
		return "", err
	}
	return k.LogicalID(), nil
}

// FindEntryByID returns the current entry, tombstones included, for a
// logical id such as "Patient/42".
func (s *ResourceStore) FindEntryByID(ctx context.Context, id string) (models.Entry, error) {
	lid, err := logicalID(id)
	if err != nil {
		return nil, err
	}
	doc, err := s.repomanager.Resources(s.db).GetCurrent(ctx, lid)
	if err != nil {
		return nil, err
	}
	return s.mapper.ToEntry(ctx, doc, true)
}

// FindVersion returns the entry stored under a record key such as
// "Patient/42/_history/3", whatever its state.
func (s *ResourceStore) FindVersion(ctx context.Context, recordKey string) (models.Entry, error) {
	k, err := models.ParseResourceKey(recordKey)
	if err != nil {
		return nil, err
	}
	if !k.HasVersion() {
		return nil, fmt.Errorf("%w: %s is not a version key", common.ErrValidation, recordKey)
	}
	doc, err := s.repomanager.Resources(s.db).Get(ctx, k.RecordKey())
	if err != nil {
		return nil, err
	}
	return s.mapper.ToEntry(ctx, doc, true)
}

// FindByVersionIDs fetches entries by record key in the order given.
// Missing keys are skipped.
func (s *ResourceStore) FindByVersionIDs(ctx context.Context, recordKeys []string) ([]models.Entry, error) {
	return fetchOrdered(ctx, s.db, s.repomanager, s.mapper, recordKeys)
}

func (s *ResourceStore) list(ctx context.Context, f models.Filter) ([]models.Entry, error) {
	docs, err := s.repomanager.Resources(s.db).Find(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.mapper.ToEntries(ctx, docs, false)
}

// ListCollection lists the current entries of a collection, newest first.
// A non-positive limit means common.DefaultListLimit. Payloads are not
// loaded.
func (s *ResourceStore) ListCollection(ctx context.Context, collection string, includeDeleted bool, since *time.Time, limit int) ([]models.Entry, error) {
	return s.list(ctx, versioning.Current(
		versioning.InCollection(collection),
		versioning.IncludeDeleted(includeDeleted),
		versioning.Since(since),
		versioning.Limit(limit),
	))
}

// ListVersionsInCollection lists every version of every resource in a
// collection, tombstones included.
func (s *ResourceStore) ListVersionsInCollection(ctx context.Context, collection string, since *time.Time, limit int) ([]models.Entry, error) {
	return s.list(ctx, versioning.History(
		versioning.InCollection(collection),
		versioning.Since(since),
		versioning.Limit(limit),
	))
}

// ListVersionsByID lists the history of one logical id.
func (s *ResourceStore) ListVersionsByID(ctx context.Context, id string, since *time.Time, limit int) ([]models.Entry, error) {
	lid, err := logicalID(id)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, versioning.History(
		versioning.ForLogicalID(lid),
		versioning.Since(since),
		versioning.Limit(limit),
	))
}

// ListVersions lists the history of the whole store.
func (s *ResourceStore) ListVersions(ctx context.Context, since *time.Time, limit int) ([]models.Entry, error) {
	return s.list(ctx, versioning.History(versioning.Since(since), versioning.Limit(limit)))
}

func (s *ResourceStore) ListTags(ctx context.Context) ([]models.Tag, error) {
	return s.repomanager.Resources(s.db).Tags(ctx, "")
}

func (s *ResourceStore) ListTagsInCollection(ctx context.Context, collection string) ([]models.Tag, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: empty collection", common.ErrValidation)
	}
	return s.repomanager.Resources(s.db).Tags(ctx, collection)
}

// prepare stamps the version time and allocates a version id for entries
// that carry a logical id only.
func (s *ResourceStore) prepare(ctx context.Context, e models.Entry) error {
	if e == nil {
		return fmt.Errorf("%w: nil entry", common.ErrValidation)
	}
	k := e.Identity()
	if k.HasIdentity() && !k.HasVersion() {
		vk, err := s.NewVersionKey(ctx, k)
		if err != nil {
			return err
		}
		models.SetIdentity(e, vk)
	}
	models.Stamp(e, s.clock.Now())
	return nil
}

func (s *ResourceStore) AddEntry(ctx context.Context, e models.Entry, batchID string) (*BatchResult, error) {
	return s.AddEntries(ctx, []models.Entry{e}, batchID)
}

// AddEntries writes entries as one batch. An empty batchID gets a generated
// one.
func (s *ResourceStore) AddEntries(ctx context.Context, entries []models.Entry, batchID string) (*BatchResult, error) {
	for _, e := range entries {
		if err := s.prepare(ctx, e); err != nil {
			return rejected(batchID, err)
		}
	}
	return s.batches.Write(ctx, entries, batchID)
}

// ReplaceEntry overwrites the stored document at the record key of e.
func (s *ResourceStore) ReplaceEntry(ctx context.Context, e models.Entry, batchID string) (*BatchResult, error) {
	if err := s.prepare(ctx, e); err != nil {
		return rejected(batchID, err)
	}
	return s.batches.Replace(ctx, e, batchID)
}

func (s *ResourceStore) PurgeBatch(ctx context.Context, batchID string) (int64, error) {
	return s.batches.PurgeBatch(ctx, batchID)
}

// NewResourceKey allocates a fresh logical id in collection.
func (s *ResourceStore) NewResourceKey(ctx context.Context, collection string) (models.ResourceKey, error) {
	if collection == "" {
		return models.ResourceKey{}, fmt.Errorf("%w: empty collection", common.ErrValidation)
	}
	n, err := s.sequence.Next(ctx, common.ResourceIDCounter)
	if err != nil {
		return models.ResourceKey{}, err
	}
	return models.ResourceKey{Collection: collection, ID: strconv.FormatInt(n, 10)}, nil
}

// NewVersionKey allocates a fresh version id for the logical id of k.
func (s *ResourceStore) NewVersionKey(ctx context.Context, k models.ResourceKey) (models.ResourceKey, error) {
	if !k.HasIdentity() {
		return models.ResourceKey{}, fmt.Errorf("%w: key has no identity", common.ErrValidation)
	}
	n, err := s.sequence.Next(ctx, common.VersionIDCounter)
	if err != nil {
		return models.ResourceKey{}, err
	}
	return k.WithVersion(strconv.FormatInt(n, 10)), nil
}
