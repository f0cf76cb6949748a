package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordKeys(entries []models.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Identity().RecordKey())
	}
	return out
}

func TestSnapshot_StableAcrossWrites(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	_, err := h.store.AddEntries(ctx, []models.Entry{
		patient("1", "1", `{}`), patient("2", "1", `{}`), patient("3", "1", `{}`),
	}, "")
	require.NoError(t, err)

	k1, k2, k3 := "Patient/1/_history/1", "Patient/2/_history/1", "Patient/3/_history/1"
	snap, err := h.snapshots.Capture(ctx, []string{k3, k1, k2}, SnapshotInfo{Title: "search", SelfLink: "http://x/Patient", SortBy: "-_lastUpdated"})
	require.NoError(t, err)
	assert.Equal(t, 3, snap.MatchCount)
	assert.NotEmpty(t, snap.ID)

	_, err = h.store.AddEntries(ctx, []models.Entry{patient("4", "1", `{}`), patient("1", "2", `{}`)}, "")
	require.NoError(t, err)

	keys, err := h.snapshots.Resolve(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{k3, k1, k2}, keys)

	first, err := h.snapshots.Page(ctx, snap.ID, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{k3, k1}, recordKeys(first))

	rest, err := h.snapshots.Page(ctx, snap.ID, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{k2}, recordKeys(rest))

	past, err := h.snapshots.Page(ctx, snap.ID, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, past)

	stored, err := h.snapshots.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "search", stored.Title)
	assert.Equal(t, "-_lastUpdated", stored.SortBy)
}

func TestSnapshot_CaptureCopiesKeys(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	keys := []string{"a", "b"}
	snap, err := h.snapshots.Capture(ctx, keys, SnapshotInfo{})
	require.NoError(t, err)
	keys[0] = "z"

	got, err := h.snapshots.Resolve(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestSnapshot_PageSkipsPurgedDocuments(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	_, err := h.store.AddEntries(ctx, []models.Entry{patient("1", "1", `{}`)}, "keep")
	require.NoError(t, err)
	_, err = h.store.AddEntries(ctx, []models.Entry{patient("2", "1", `{}`)}, "drop")
	require.NoError(t, err)

	snap, err := h.snapshots.Capture(ctx, []string{"Patient/2/_history/1", "Patient/1/_history/1"}, SnapshotInfo{})
	require.NoError(t, err)
	_, err = h.store.PurgeBatch(ctx, "drop")
	require.NoError(t, err)

	page, err := h.snapshots.Page(ctx, snap.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Patient/1/_history/1"}, recordKeys(page))
}

func TestSnapshot_Errors(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	_, err := h.snapshots.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = h.snapshots.Page(ctx, "missing", -1, 1)
	assert.ErrorIs(t, err, common.ErrValidation)
}
