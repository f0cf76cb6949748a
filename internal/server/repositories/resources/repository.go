// Package resources persists storage documents, the stored form of every
// resource version and tombstone.
package resources

import (
	"context"

	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, doc *models.StorageDocument) error
	Upsert(ctx context.Context, doc *models.StorageDocument) error
	Get(ctx context.Context, recordKey string) (*models.StorageDocument, error)
	GetCurrent(ctx context.Context, logicalID string) (*models.StorageDocument, error)
	GetMany(ctx context.Context, recordKeys []string) ([]*models.StorageDocument, error)
	Find(ctx context.Context, f models.Filter) ([]*models.StorageDocument, error)
	Tags(ctx context.Context, collection string) ([]models.Tag, error)
	ExistingKeys(ctx context.Context, recordKeys []string) ([]string, error)
	BatchDocuments(ctx context.Context, batchID string) ([]*models.StorageDocument, error)
	PublishBatch(ctx context.Context, batchID string) (int64, error)
	Supersede(ctx context.Context, logicalID string) (int64, error)
	DeleteBatch(ctx context.Context, batchID string) (int64, error)
	DeleteAll(ctx context.Context) error
}
