package snapshots

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/sqlitetest"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSQLite_RoundTrip(t *testing.T) {
	repo := NewSQLiteRepository(sqlitetest.Open(t))
	ctx := context.Background()

	in := &models.Snapshot{
		ID: "s1", Title: "history", SelfLink: "http://x/_history", SortBy: "",
		Keys: []string{"Patient/2/_history/3", "Patient/1/_history/1"}, MatchCount: 2, CreatedAt: created,
	}
	require.NoError(t, repo.Create(ctx, in))

	out, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, repo.DeleteAll(ctx))
	_, err = repo.Get(ctx, "s1")
	require.ErrorIs(t, err, common.ErrorNotFound)
}
