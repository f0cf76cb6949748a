// Package versioning decides which stored documents form the current view of
// a resource and builds the filters reads run with.
//
// Writes go through three states. Documents are inserted as pending, which
// no read can see, then the whole batch is published as current in one
// statement, and finally older current documents of the same logical ids are
// superseded. Publishing and superseding share one transaction. Superseding
// keeps only the newest current document of a logical id, so batches that
// publish out of timestamp order still converge. Single-resource reads order
// by version timestamp, so the newest document wins even while two
// concurrent publishes race.
package versioning

import (
	"sort"
	"time"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
)

// Option narrows a view.
type Option func(*models.Filter)

func InCollection(collection string) Option {
	return func(f *models.Filter) { f.Collection = collection }
}

func ForLogicalID(logicalID string) Option {
	return func(f *models.Filter) { f.LogicalID = logicalID }
}

// Since keeps documents with a version timestamp strictly after t.
func Since(t *time.Time) Option {
	return func(f *models.Filter) {
		if t != nil {
			u := t.UTC()
			f.Since = &u
		}
	}
}

func IncludeDeleted(include bool) Option {
	return func(f *models.Filter) { f.IncludeDeleted = include }
}

// Limit caps the number of documents; non-positive values fall back to
// common.DefaultListLimit.
func Limit(n int) Option {
	return func(f *models.Filter) {
		if n <= 0 {
			n = common.DefaultListLimit
		}
		f.Limit = n
	}
}

func WithContent() Option {
	return func(f *models.Filter) { f.WithContent = true }
}

// Current is the view of current documents. Tombstones are excluded unless
// IncludeDeleted(true) is passed.
func Current(opts ...Option) models.Filter {
	f := models.Filter{OnlyCurrent: true}
	for _, o := range opts {
		o(&f)
	}
	return f
}

// History includes superseded documents and tombstones.
func History(opts ...Option) models.Filter {
	f := models.Filter{IncludeDeleted: true}
	for _, o := range opts {
		o(&f)
	}
	f.OnlyCurrent = false
	return f
}

// Prepare stamps freshly mapped documents with the batch id and the pending
// state.
func Prepare(docs []*models.StorageDocument, batchID string) {
	for _, d := range docs {
		d.BatchID = batchID
		d.State = models.StatePending
	}
}

// LogicalIDs returns the distinct logical ids touched by docs, sorted. After
// a batch is published each of them is superseded down to its newest
// current document.
func LogicalIDs(docs []*models.StorageDocument) []string {
	seen := make(map[string]bool, len(docs))
	result := make([]string, 0, len(docs))
	for _, d := range docs {
		if !seen[d.LogicalID] {
			seen[d.LogicalID] = true
			result = append(result, d.LogicalID)
		}
	}
	sort.Strings(result)
	return result
}
