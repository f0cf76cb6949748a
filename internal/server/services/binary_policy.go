package services

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/logging"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
	"golang.org/x/crypto/blake2b"
)

// BlobConfig controls binary payload handling.
type BlobConfig struct {
	// External moves binary payloads into the blob store.
	External bool
	// MaxBinarySize caps binary payloads in bytes; 0 means unlimited.
	MaxBinarySize int64
}

// BinaryPolicy decides where binary payloads live and moves them between
// the document store and the blob store. Every blob access opens its own
// connection and closes it before returning.
type BinaryPolicy struct {
	blobs  blobstore.Store
	cfg    BlobConfig
	logger logging.Logger
}

func NewBinaryPolicy(blobs blobstore.Store, cfg BlobConfig, logger logging.Logger) *BinaryPolicy {
	if blobs == nil {
		cfg.External = false
	}
	return &BinaryPolicy{blobs: blobs, cfg: cfg, logger: logger.With("module", "binary_policy")}
}

// Enabled reports whether payloads are externalized.
func (p *BinaryPolicy) Enabled() bool {
	return p.cfg.External
}

func binaryOf(e models.Entry) (*models.ContentEntry, *models.Binary, bool) {
	ce, ok := e.(*models.ContentEntry)
	if !ok {
		return nil, nil, false
	}
	b, ok := ce.Binary()
	return ce, b, ok
}

// ShouldExternalize reports whether e carries a binary payload that must be
// moved to the blob store.
func (p *BinaryPolicy) ShouldExternalize(e models.Entry) bool {
	if !p.cfg.External {
		return false
	}
	_, b, ok := binaryOf(e)
	return ok && len(b.Content) > 0
}

// EnforceLimit fails with ErrCapacityExceeded when e carries a binary payload
// larger than the configured maximum.
func (p *BinaryPolicy) EnforceLimit(e models.Entry) error {
	if p.cfg.MaxBinarySize <= 0 {
		return nil
	}
	ce, b, ok := binaryOf(e)
	if !ok {
		return nil
	}
	if int64(len(b.Content)) > p.cfg.MaxBinarySize {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d",
			common.ErrCapacityExceeded, ce.Key.RecordKey(), len(b.Content), p.cfg.MaxBinarySize)
	}
	return nil
}

// EnforceLimits runs EnforceLimit over a whole batch.
func (p *BinaryPolicy) EnforceLimits(entries []models.Entry) error {
	for _, e := range entries {
		if err := p.EnforceLimit(e); err != nil {
			return err
		}
	}
	return nil
}

// Digest returns the hex encoded BLAKE2b-256 sum of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BlobName returns the name the payload of e is stored under, and false when
// e carries no externalized payload.
func (p *BinaryPolicy) BlobName(e models.Entry) (string, bool) {
	ce, b, ok := binaryOf(e)
	if !ok || b.Digest == "" {
		return "", false
	}
	if b.Blob != "" {
		return b.Blob, true
	}
	return ce.Key.BlobName(), true
}

// Detach returns a copy of e without the inline payload, with the payload
// digest recorded, and the blob to be stored under name. A name other than
// the default blob name of e is recorded too. Nothing is stored and e is not
// modified.
func (p *BinaryPolicy) Detach(e *models.ContentEntry, name string) (*models.ContentEntry, blobstore.Blob, error) {
	b, ok := e.Binary()
	if !ok {
		return nil, blobstore.Blob{}, fmt.Errorf("%w: %s is not binary", common.ErrValidation, e.Key.RecordKey())
	}
	if b.ContentType == "" {
		return nil, blobstore.Blob{}, fmt.Errorf("%w: binary %s has no content type", common.ErrValidation, e.Key.RecordKey())
	}

	out := *e
	nb := *b
	nb.Digest = Digest(b.Content)
	nb.Blob = ""
	if name != e.Key.BlobName() {
		nb.Blob = name
	}
	out.Resource = &nb
	return p.ClearInline(&out), blobstore.Blob{ContentType: b.ContentType, Data: b.Content}, nil
}

// Store writes one detached payload.
func (p *BinaryPolicy) Store(ctx context.Context, name string, blob blobstore.Blob) error {
	conn, err := p.blobs.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	defer conn.Close()

	if err := conn.Store(ctx, name, blob); err != nil {
		return err
	}
	p.logger.Debug(ctx, "blob stored", "name", name, "size", len(blob.Data))
	return nil
}

// ClearInline returns a copy of e without the inline binary payload.
func (p *BinaryPolicy) ClearInline(e *models.ContentEntry) *models.ContentEntry {
	b, ok := e.Binary()
	if !ok {
		return e
	}
	out := *e
	nb := *b
	nb.Content = nil
	out.Resource = &nb
	return &out
}

// Rehydrate fetches an externalized payload back onto e. It is a no-op when
// externalization is off or the payload is already inline.
func (p *BinaryPolicy) Rehydrate(ctx context.Context, e *models.ContentEntry) error {
	if !p.cfg.External {
		return nil
	}
	b, ok := e.Binary()
	if !ok || len(b.Content) > 0 {
		return nil
	}
	name, ok := p.BlobName(e)
	if !ok {
		return nil
	}

	conn, err := p.blobs.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	defer conn.Close()

	blob, err := conn.Fetch(ctx, name)
	if err != nil {
		return err
	}
	if got := Digest(blob.Data); got != b.Digest {
		return fmt.Errorf("%w: %s: %w: want %s, got %s", common.ErrMapping, name, common.ErrIntegrity, b.Digest, got)
	}
	b.Content = blob.Data
	if b.ContentType == "" {
		b.ContentType = blob.ContentType
	}
	return nil
}

// Discard deletes the named blobs. Missing names are not an error.
func (p *BinaryPolicy) Discard(ctx context.Context, names []string) error {
	if !p.cfg.External || len(names) == 0 {
		return nil
	}
	conn, err := p.blobs.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	defer conn.Close()
	return conn.Delete(ctx, names...)
}

// DeleteAll empties the blob store.
func (p *BinaryPolicy) DeleteAll(ctx context.Context) error {
	if !p.cfg.External {
		return nil
	}
	conn, err := p.blobs.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	defer conn.Close()
	return conn.DeleteAll(ctx)
}
