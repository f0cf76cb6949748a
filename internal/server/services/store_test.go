package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PatientDeletedScenario(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	_, err := h.store.AddEntry(ctx, patient("42", "1", `{"resourceType":"Patient"}`), "")
	require.NoError(t, err)
	_, err = h.store.AddEntry(ctx, tombstone("Patient", "42", "2"), "")
	require.NoError(t, err)

	current, err := h.store.ListCollection(ctx, "Patient", false, nil, 0)
	require.NoError(t, err)
	for _, e := range current {
		assert.NotEqual(t, "Patient/42", e.Identity().LogicalID())
	}

	history, err := h.store.ListVersionsByID(ctx, "Patient/42", nil, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.KindTombstone, history[0].Kind())
	assert.Equal(t, models.KindContent, history[1].Kind())
	assert.True(t, history[0].VersionTime().After(history[1].VersionTime()))

	withDeleted, err := h.store.ListCollection(ctx, "Patient", true, nil, 0)
	require.NoError(t, err)
	require.Len(t, withDeleted, 1)
	assert.Equal(t, models.KindTombstone, withDeleted[0].Kind())

	cur, err := h.store.FindEntryByID(ctx, "http://example.org/fhir/Patient/42")
	require.NoError(t, err)
	assert.Equal(t, models.KindTombstone, cur.Kind())
}

func TestStore_VersionTimesStrictlyIncrease(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	for v := 1; v <= 5; v++ {
		_, err := h.store.AddEntry(ctx, patient("7", "", `{}`), "")
		require.NoError(t, err)
	}

	history, err := h.store.ListVersionsByID(ctx, "Patient/7", nil, 0)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].VersionTime().After(history[i].VersionTime()),
			"%s must be newer than %s", history[i-1].Identity(), history[i].Identity())
	}
	assert.Equal(t, 1, h.count(t, "logical_id = ? AND state = 'current'", "Patient/7"))
}

func TestStore_AssignsVersionIDs(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	k, err := h.store.NewResourceKey(ctx, "Patient")
	require.NoError(t, err)
	assert.Equal(t, models.ResourceKey{Collection: "Patient", ID: "1"}, k)

	e := &models.ContentEntry{Key: k, Resource: &models.Generic{Type: "Patient", Body: []byte(`{}`)}}
	res, err := h.store.AddEntry(ctx, e, "")
	require.NoError(t, err)
	assert.Equal(t, "Patient/1/_history/1", res.Entries[0].Identity().RecordKey())

	vk, err := h.store.NewVersionKey(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, "2", vk.VersionID)

	_, err = h.store.NewResourceKey(ctx, "")
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = h.store.NewVersionKey(ctx, models.ResourceKey{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestStore_BlobRoundTrip(t *testing.T) {
	h := newHarness(t, BlobConfig{External: true})
	ctx := context.Background()

	payload := []byte{0x00, 0xff, 0x10, 'f', 'h', 'i', 'r'}
	_, err := h.store.AddEntry(ctx, binary("3", "1", "application/octet-stream", payload), "")
	require.NoError(t, err)

	raw := h.rawBody(t, "Binary/3/_history/1")
	var content map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["content"], &content))
	_, inline := content["content"]
	assert.False(t, inline, "payload must not be stored inline")
	assert.Contains(t, content, "digest")

	got, err := h.store.FindEntryByID(ctx, "Binary/3")
	require.NoError(t, err)
	b, ok := got.(*models.ContentEntry).Binary()
	require.True(t, ok)
	assert.Equal(t, payload, b.Content)
	assert.Equal(t, "application/octet-stream", b.ContentType)

	listed, err := h.store.ListCollection(ctx, "Binary", false, nil, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Nil(t, listed[0].(*models.ContentEntry).Resource, "lists do not load payloads")

	assert.Zero(t, h.blobs.OpenConns())
}

func TestStore_InlineBinaryWhenExternalizationOff(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	_, err := h.store.AddEntry(ctx, binary("3", "1", "text/plain", []byte("inline")), "")
	require.NoError(t, err)

	raw := h.rawBody(t, "Binary/3/_history/1")
	assert.Contains(t, string(raw["content"]), `"content"`)
	assert.Empty(t, h.blobs.Names())

	got, err := h.store.FindVersion(ctx, "Binary/3/_history/1")
	require.NoError(t, err)
	b, _ := got.(*models.ContentEntry).Binary()
	assert.Equal(t, []byte("inline"), b.Content)
}

func TestStore_FindErrors(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	_, err := h.store.FindEntryByID(ctx, "Patient/404")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = h.store.FindVersion(ctx, "Patient/404/_history/1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = h.store.FindVersion(ctx, "Patient/404")
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = h.store.FindEntryByID(ctx, "nonsense")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestStore_FindByVersionIDsKeepsOrder(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	_, err := h.store.AddEntries(ctx, []models.Entry{
		patient("1", "1", `{}`), patient("2", "1", `{}`), patient("3", "1", `{}`),
	}, "")
	require.NoError(t, err)

	keys := []string{"Patient/3/_history/1", "Patient/missing/_history/1", "Patient/1/_history/1", "Patient/2/_history/1"}
	got, err := h.store.FindByVersionIDs(ctx, keys)
	require.NoError(t, err)

	var gotKeys []string
	for _, e := range got {
		gotKeys = append(gotKeys, e.Identity().RecordKey())
	}
	if diff := cmp.Diff([]string{"Patient/3/_history/1", "Patient/1/_history/1", "Patient/2/_history/1"}, gotKeys); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_ListFilters(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	res, err := h.store.AddEntries(ctx, []models.Entry{patient("1", "1", `{}`), patient("2", "1", `{}`)}, "")
	require.NoError(t, err)
	mark := res.Entries[1].VersionTime()

	_, err = h.store.AddEntries(ctx, []models.Entry{
		patient("3", "1", `{}`),
		&models.ContentEntry{Key: key("Observation", "1", "1"), Resource: &models.Generic{Type: "Observation", Body: []byte(`{}`)}},
	}, "")
	require.NoError(t, err)

	since, err := h.store.ListCollection(ctx, "Patient", false, &mark, 0)
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "Patient/3", since[0].Identity().LogicalID())

	limited, err := h.store.ListCollection(ctx, "Patient", false, nil, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	obs, err := h.store.ListVersionsInCollection(ctx, "Observation", nil, 0)
	require.NoError(t, err)
	assert.Len(t, obs, 1)

	all, err := h.store.ListVersions(ctx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	recent, err := h.store.ListVersions(ctx, &mark, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestStore_ListTags(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	p := patient("1", "1", `{}`)
	p.Tags = []models.Tag{{Term: "vip", Scheme: "http://example.org/tags"}}
	o := &models.ContentEntry{
		Key:      key("Observation", "1", "1"),
		Tags:     []models.Tag{{Term: "lab", Scheme: "http://example.org/tags", Label: "Lab"}},
		Resource: &models.Generic{Type: "Observation", Body: []byte(`{}`)},
	}
	_, err := h.store.AddEntries(ctx, []models.Entry{p, o}, "")
	require.NoError(t, err)

	all, err := h.store.ListTags(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pt, err := h.store.ListTagsInCollection(ctx, "Patient")
	require.NoError(t, err)
	assert.Equal(t, []models.Tag{{Term: "vip", Scheme: "http://example.org/tags"}}, pt)

	_, err = h.store.ListTagsInCollection(ctx, "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestStore_ReplaceEntryStampsTime(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	p := patient("1", "1", `{}`)
	_, err := h.store.AddEntry(ctx, p, "")
	require.NoError(t, err)
	first := p.LastUpdated

	again := patient("1", "1", `{"active":true}`)
	_, err = h.store.ReplaceEntry(ctx, again, "")
	require.NoError(t, err)
	assert.True(t, again.LastUpdated.After(first))

	got, err := h.store.FindEntryByID(ctx, "Patient/1")
	require.NoError(t, err)
	assert.True(t, got.VersionTime().Equal(again.LastUpdated.Truncate(time.Microsecond)))
}

func TestStore_PurgeBatch(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	_, err := h.store.AddEntries(ctx, []models.Entry{patient("1", "1", `{}`)}, "keep")
	require.NoError(t, err)
	_, err = h.store.AddEntries(ctx, []models.Entry{patient("2", "1", `{}`), patient("3", "1", `{}`)}, "drop")
	require.NoError(t, err)

	n, err := h.store.PurgeBatch(ctx, "drop")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 1, h.count(t, ""))
}
