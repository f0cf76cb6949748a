package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/dbx"
	"github.com/dmitrijs2005/fhirkeeper/internal/logging"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/documents"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/versioning"
	"github.com/google/uuid"
)

// BatchStatus is the terminal state of a batch write.
type BatchStatus int

const (
	// BatchRejected means the batch failed validation before anything was
	// written.
	BatchRejected BatchStatus = iota
	BatchCommitted
	// BatchRolledBack means documents were written and then removed again.
	BatchRolledBack
)

func (s BatchStatus) String() string {
	switch s {
	case BatchCommitted:
		return "committed"
	case BatchRolledBack:
		return "rolled back"
	default:
		return "rejected"
	}
}

// BatchResult describes the outcome of a batch write. Err is set unless the
// batch committed.
type BatchResult struct {
	BatchID string
	Status  BatchStatus
	Entries []models.Entry
	Err     error
}

// ValidationHook runs after every document of a batch is inserted and before
// the batch becomes visible. Returning an error rolls the batch back.
type ValidationHook func(ctx context.Context, entries []models.Entry) error

// BatchCoordinator writes groups of entries so that a caller observes either
// the whole batch or no trace of it.
type BatchCoordinator struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mapper      *documents.Mapper
	policy      *BinaryPolicy
	hooks       []ValidationHook
	logger      logging.Logger
}

func NewBatchCoordinator(
	db *sql.DB,
	repomanager repomanager.RepositoryManager,
	mapper *documents.Mapper,
	policy *BinaryPolicy,
	logger logging.Logger,
	hooks ...ValidationHook,
) *BatchCoordinator {
	return &BatchCoordinator{
		db:          db,
		repomanager: repomanager,
		mapper:      mapper,
		policy:      policy,
		hooks:       hooks,
		logger:      logger.With("module", "batch"),
	}
}

func rejected(batchID string, err error) (*BatchResult, error) {
	return &BatchResult{BatchID: batchID, Status: BatchRejected, Err: err}, err
}

// precheck validates identities and payload sizes for the whole batch. It
// never touches storage.
func (c *BatchCoordinator) precheck(entries []models.Entry) error {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if err := models.CheckIdentity(e); err != nil {
			return err
		}
		k := e.Identity().RecordKey()
		if seen[k] {
			return fmt.Errorf("%w: record key %s appears twice in the batch", common.ErrValidation, k)
		}
		seen[k] = true
	}
	if err := c.policy.EnforceLimits(entries); err != nil {
		return err
	}
	// Mapping is pure, so unsupported resource types are caught here too.
	for _, e := range entries {
		if _, err := c.mapper.ToDocument(e); err != nil {
			return err
		}
	}
	return nil
}

// Write stores entries as one batch under batchID, generating an id when it
// is empty. An empty batch is a successful no-op. A caller supplied id that
// already tags stored documents is rejected, as is any record key that is
// already taken.
func (c *BatchCoordinator) Write(ctx context.Context, entries []models.Entry, batchID string) (*BatchResult, error) {
	if len(entries) == 0 {
		return &BatchResult{BatchID: batchID, Status: BatchCommitted}, nil
	}
	fresh := batchID == ""
	if fresh {
		batchID = uuid.NewString()
	}
	err := c.precheck(entries)
	if err == nil {
		err = c.checkStored(ctx, entries, batchID, fresh)
	}
	if err != nil {
		c.logger.Warn(ctx, "batch rejected", "batch_id", batchID, "error", err.Error())
		return rejected(batchID, err)
	}

	c.logger.Info(ctx, "batch opened", "batch_id", batchID, "entries", len(entries))

	docs, blobs, err := c.insert(ctx, entries, batchID)
	if err == nil {
		err = c.validate(ctx, entries)
	}
	if err == nil {
		err = c.publish(ctx, batchID, docs)
	}
	if err != nil {
		c.rollback(ctx, batchID, blobs, err)
		return &BatchResult{BatchID: batchID, Status: BatchRolledBack, Err: err}, err
	}

	c.logger.Info(ctx, "batch committed", "batch_id", batchID, "entries", len(entries))
	return &BatchResult{BatchID: batchID, Status: BatchCommitted, Entries: entries}, nil
}

// checkStored rejects batches that would collide with stored documents.
func (c *BatchCoordinator) checkStored(ctx context.Context, entries []models.Entry, batchID string, fresh bool) error {
	repo := c.repomanager.Resources(c.db)
	if !fresh {
		docs, err := repo.BatchDocuments(ctx, batchID)
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			return fmt.Errorf("%w: batch id %s is already in use", common.ErrValidation, batchID)
		}
	}

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Identity().RecordKey()
	}
	taken, err := repo.ExistingKeys(ctx, keys)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return fmt.Errorf("%w: record key %s already exists", common.ErrValidation, taken[0])
	}
	return nil
}

// Replace overwrites the document stored at the record key of e, tagged
// with batchID. The upsert and the supersede step share one transaction, so
// validation hooks run before anything is written. A new payload is stored
// under a name of its own before the transaction and discarded if it fails;
// the payload of the replaced document is discarded once it commits. A
// failed replace leaves the previous document and its payload untouched.
func (c *BatchCoordinator) Replace(ctx context.Context, e models.Entry, batchID string) (*BatchResult, error) {
	if batchID == "" {
		batchID = uuid.NewString()
	}
	entries := []models.Entry{e}
	if err := c.precheck(entries); err != nil {
		return rejected(batchID, err)
	}
	if err := c.validate(ctx, entries); err != nil {
		return rejected(batchID, err)
	}
	recordKey := e.Identity().RecordKey()
	prior, err := c.storedBlob(ctx, recordKey)
	if err != nil {
		return rejected(batchID, err)
	}

	staged, err := c.replace(ctx, e, batchID)
	if err != nil {
		if staged != "" {
			c.discard(ctx, batchID, staged)
		}
		c.logger.Warn(ctx, "replace failed", "batch_id", batchID, "record_key", recordKey, "error", err.Error())
		return &BatchResult{BatchID: batchID, Status: BatchRolledBack, Err: err}, err
	}
	if prior != "" && prior != staged {
		c.discard(ctx, batchID, prior)
	}

	c.logger.Info(ctx, "entry replaced", "batch_id", batchID, "record_key", recordKey)
	return &BatchResult{BatchID: batchID, Status: BatchCommitted, Entries: entries}, nil
}

// replace stores the payload of e, if any, and upserts its document. It
// returns the blob name it stored to, even on failure.
func (c *BatchCoordinator) replace(ctx context.Context, e models.Entry, batchID string) (string, error) {
	persist, staged := e, ""
	if c.policy.ShouldExternalize(e) {
		ce := e.(*models.ContentEntry)
		name := ce.Key.BlobName() + "." + uuid.NewString()
		detached, blob, err := c.policy.Detach(ce, name)
		if err != nil {
			return "", err
		}
		staged = name
		if err := c.policy.Store(ctx, name, blob); err != nil {
			return staged, err
		}
		persist = detached
	}

	doc, err := c.mapper.ToDocument(persist)
	if err != nil {
		return staged, err
	}
	versioning.Prepare([]*models.StorageDocument{doc}, batchID)
	doc.State = models.StateCurrent
	return staged, dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := c.repomanager.Resources(tx)
		if err := repo.Upsert(ctx, doc); err != nil {
			return err
		}
		_, err := repo.Supersede(ctx, doc.LogicalID)
		return err
	})
}

// storedBlob returns the blob name held by the visible document at
// recordKey, or "" when there is none.
func (c *BatchCoordinator) storedBlob(ctx context.Context, recordKey string) (string, error) {
	if !c.policy.Enabled() {
		return "", nil
	}
	doc, err := c.repomanager.Resources(c.db).Get(ctx, recordKey)
	if errors.Is(err, common.ErrorNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	names := c.blobNames(ctx, []*models.StorageDocument{doc})
	if len(names) == 0 {
		return "", nil
	}
	return names[0], nil
}

// insert writes one pending document per entry. A payload is stored only
// after its document is in, so every blob name it touches belongs to this
// batch. It returns the written documents and stored blob names, even on
// failure.
func (c *BatchCoordinator) insert(
	ctx context.Context,
	entries []models.Entry,
	batchID string,
) ([]*models.StorageDocument, []string, error) {
	var (
		repo  = c.repomanager.Resources(c.db)
		docs  = make([]*models.StorageDocument, 0, len(entries))
		blobs []string
	)
	for _, e := range entries {
		var (
			persist = e
			name    string
			blob    blobstore.Blob
		)
		if c.policy.ShouldExternalize(e) {
			ce := e.(*models.ContentEntry)
			name = ce.Key.BlobName()
			detached, b, err := c.policy.Detach(ce, name)
			if err != nil {
				return docs, blobs, err
			}
			persist, blob = detached, b
		}

		doc, err := c.mapper.ToDocument(persist)
		if err != nil {
			return docs, blobs, err
		}
		versioning.Prepare([]*models.StorageDocument{doc}, batchID)
		if err := repo.Insert(ctx, doc); err != nil {
			return docs, blobs, err
		}
		docs = append(docs, doc)

		if name != "" {
			blobs = append(blobs, name)
			if err := c.policy.Store(ctx, name, blob); err != nil {
				return docs, blobs, err
			}
		}
	}
	return docs, blobs, nil
}

func (c *BatchCoordinator) validate(ctx context.Context, entries []models.Entry) error {
	for _, h := range c.hooks {
		if err := h(ctx, entries); err != nil {
			return err
		}
	}
	return nil
}

// publish makes the batch visible and supersedes older documents of the
// touched logical ids in one transaction.
func (c *BatchCoordinator) publish(ctx context.Context, batchID string, docs []*models.StorageDocument) error {
	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := c.repomanager.Resources(tx)
		n, err := repo.PublishBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if n != int64(len(docs)) {
			return fmt.Errorf("%w: published %d of %d documents of batch %s", common.ErrStorage, n, len(docs), batchID)
		}
		for _, id := range versioning.LogicalIDs(docs) {
			if _, err := repo.Supersede(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// rollback removes every trace of the batch. It keeps going after the
// caller's context is cancelled and only logs its own failures, so the
// caller sees the original cause.
func (c *BatchCoordinator) rollback(ctx context.Context, batchID string, blobs []string, cause error) {
	ctx = context.WithoutCancel(ctx)
	n, err := c.purge(ctx, batchID, blobs)
	if err != nil {
		c.logger.Error(ctx, "batch rollback incomplete", "batch_id", batchID, "cause", cause.Error(), "error", err.Error())
		return
	}
	c.logger.Warn(ctx, "batch rolled back", "batch_id", batchID, "documents", n, "cause", cause.Error())
}

// discard drops blobs that no document refers to. Failures are logged only.
func (c *BatchCoordinator) discard(ctx context.Context, batchID string, names ...string) {
	ctx = context.WithoutCancel(ctx)
	if err := c.policy.Discard(ctx, names); err != nil {
		c.logger.Error(ctx, "blob discard failed", "batch_id", batchID, "names", names, "error", err.Error())
	}
}

// blobNames lists the blobs held by docs. A document that cannot be parsed
// is assumed to hold the default blob name of its record key.
func (c *BatchCoordinator) blobNames(ctx context.Context, docs []*models.StorageDocument) []string {
	var names []string
	for _, d := range docs {
		e, err := c.mapper.ToEntry(ctx, d, false)
		if err != nil {
			if key, perr := models.ParseResourceKey(d.RecordKey); perr == nil && key.HasVersion() {
				names = append(names, key.BlobName())
			}
			continue
		}
		if name, ok := c.policy.BlobName(e); ok {
			names = append(names, name)
		}
	}
	return names
}

// PurgeBatch deletes every document tagged with batchID and, when payloads
// are externalized, their blobs.
func (c *BatchCoordinator) PurgeBatch(ctx context.Context, batchID string) (int64, error) {
	if batchID == "" {
		return 0, fmt.Errorf("%w: empty batch id", common.ErrValidation)
	}
	n, err := c.purge(ctx, batchID, nil)
	if err != nil {
		return n, err
	}
	c.logger.Info(ctx, "batch purged", "batch_id", batchID, "documents", n)
	return n, nil
}

func (c *BatchCoordinator) purge(ctx context.Context, batchID string, blobs []string) (int64, error) {
	repo := c.repomanager.Resources(c.db)

	var errs []error
	if c.policy.Enabled() {
		docs, err := repo.BatchDocuments(ctx, batchID)
		if err != nil {
			errs = append(errs, err)
		}
		blobs = append(blobs, c.blobNames(ctx, docs)...)
	}

	n, err := repo.DeleteBatch(ctx, batchID)
	if err != nil {
		errs = append(errs, err)
	}
	if err := c.policy.Discard(ctx, blobs); err != nil {
		errs = append(errs, err)
	}
	return n, errors.Join(errs...)
}
