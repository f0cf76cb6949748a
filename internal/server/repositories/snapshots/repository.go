// Package snapshots persists captured query results for paging.
package snapshots

import (
	"context"

	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Snapshot) error
	Get(ctx context.Context, id string) (*models.Snapshot, error)
	DeleteAll(ctx context.Context) error
}
