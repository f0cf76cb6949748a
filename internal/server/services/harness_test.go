package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/dmitrijs2005/fhirkeeper/internal/logging"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/documents"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/sqlitetest"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/resourcetypes"
	"github.com/dmitrijs2005/fhirkeeper/internal/timex"
	"github.com/stretchr/testify/require"
)

type harness struct {
	db          *sql.DB
	rm          repomanager.RepositoryManager
	blobs       *blobstore.Memory
	policy      *BinaryPolicy
	mapper      *documents.Mapper
	batches     *BatchCoordinator
	sequence    *SequenceGenerator
	snapshots   *SnapshotService
	maintenance *Maintenance
	store       *ResourceStore
}

// newHarness wires the engine over a fresh SQLite database and an in-memory
// blob store. The registry's batch validation is always installed.
func newHarness(t *testing.T, cfg BlobConfig, hooks ...ValidationHook) *harness {
	t.Helper()
	db := sqlitetest.Open(t)
	rm := repomanager.NewSQLiteRepositoryManager()
	logger := logging.Discard()
	clock := timex.NewMonotonicClock()
	registry := resourcetypes.Default()

	blobs := blobstore.NewMemory()
	policy := NewBinaryPolicy(blobs, cfg, logger)
	mapper := documents.NewMapper(registry, policy)
	batches := NewBatchCoordinator(db, rm, mapper, policy, logger, append([]ValidationHook{registry.ValidateBatch}, hooks...)...)
	sequence := NewSequenceGenerator(db, rm)

	h := &harness{
		db:          db,
		rm:          rm,
		blobs:       blobs,
		policy:      policy,
		mapper:      mapper,
		batches:     batches,
		sequence:    sequence,
		snapshots:   NewSnapshotService(db, rm, mapper, clock),
		maintenance: NewMaintenance(db, rm, policy, logger),
		store:       NewResourceStore(db, rm, mapper, batches, sequence, clock),
	}
	require.NoError(t, h.maintenance.EnsureIndices(context.Background()))
	return h
}

func (h *harness) count(t *testing.T, where string, args ...any) int {
	t.Helper()
	var n int
	q := `SELECT COUNT(*) FROM resources`
	if where != "" {
		q += ` WHERE ` + where
	}
	require.NoError(t, h.db.QueryRow(q, args...).Scan(&n))
	return n
}

func (h *harness) rawBody(t *testing.T, recordKey string) map[string]json.RawMessage {
	t.Helper()
	var body string
	require.NoError(t, h.db.QueryRow(`SELECT body FROM resources WHERE record_key = ?`, recordKey).Scan(&body))
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	return m
}

func key(collection, id, version string) models.ResourceKey {
	return models.ResourceKey{Collection: collection, ID: id, VersionID: version}
}

func patient(id, version, body string) *models.ContentEntry {
	return &models.ContentEntry{
		Key:      key("Patient", id, version),
		Title:    "Patient " + id,
		Resource: &models.Generic{Type: "Patient", Body: json.RawMessage(body)},
	}
}

func binary(id, version, contentType string, data []byte) *models.ContentEntry {
	return &models.ContentEntry{
		Key:      key("Binary", id, version),
		Resource: &models.Binary{ContentType: contentType, Content: data},
	}
}

func tombstone(collection, id, version string) *models.TombstoneEntry {
	return &models.TombstoneEntry{Key: key(collection, id, version)}
}
