package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/repomanager"
)

// SequenceGenerator hands out unique, strictly increasing integers per named
// counter. Uniqueness rests on the atomic upsert in the counters table.
type SequenceGenerator struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewSequenceGenerator(db *sql.DB, repomanager repomanager.RepositoryManager) *SequenceGenerator {
	return &SequenceGenerator{db: db, repomanager: repomanager}
}

// Next returns the next value of the counter, starting at 1.
func (g *SequenceGenerator) Next(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: empty counter name", common.ErrValidation)
	}
	return g.repomanager.Counters(g.db).Next(ctx, name)
}

// EnsureAtLeast raises the counter to value without ever lowering it. It is
// used when importing resources that already carry numeric ids.
func (g *SequenceGenerator) EnsureAtLeast(ctx context.Context, name string, value int64) error {
	if name == "" {
		return fmt.Errorf("%w: empty counter name", common.ErrValidation)
	}
	return g.repomanager.Counters(g.db).EnsureAtLeast(ctx, name, value)
}
