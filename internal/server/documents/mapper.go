// Package documents converts domain entries to storage documents and back.
package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/resourcetypes"
)

// ContentField is the name of the body member holding the resource payload.
// List queries project it away.
const ContentField = "content"

// Rehydrator restores binary content that was stored out of line.
type Rehydrator interface {
	Rehydrate(ctx context.Context, e *models.ContentEntry) error
}

type author struct {
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// body is the serialized entry. Storage metadata lives next to it in the
// document, never inside.
type body struct {
	ID           string          `json:"id"`
	Self         string          `json:"self"`
	Title        string          `json:"title,omitempty"`
	Author       *author         `json:"author,omitempty"`
	Published    *time.Time      `json:"published,omitempty"`
	Updated      *time.Time      `json:"updated,omitempty"`
	Deleted      *time.Time      `json:"deleted,omitempty"`
	Tags         []models.Tag    `json:"tags,omitempty"`
	ResourceType string          `json:"resourceType,omitempty"`
	Content      json.RawMessage `json:"content,omitempty"`
}

type Mapper struct {
	registry   *resourcetypes.Registry
	rehydrator Rehydrator
}

// NewMapper returns a mapper using registry for payloads. rehydrator may be
// nil when binary content is always kept inline.
func NewMapper(registry *resourcetypes.Registry, rehydrator Rehydrator) *Mapper {
	return &Mapper{registry: registry, rehydrator: rehydrator}
}

// ToDocument serializes e and attaches record key, logical id, collection,
// entry kind and version timestamp. State and batch id are left for the
// caller to stamp.
func (m *Mapper) ToDocument(e models.Entry) (*models.StorageDocument, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil entry", common.ErrMapping)
	}
	key := e.Identity()
	if !key.HasIdentity() {
		return nil, fmt.Errorf("%w: entry has no identity", common.ErrMapping)
	}
	if !key.HasVersion() {
		return nil, fmt.Errorf("%w: entry %s has no record key", common.ErrMapping, key.LogicalID())
	}

	b := body{ID: key.LogicalID(), Self: key.RecordKey()}

	switch v := e.(type) {
	case *models.ContentEntry:
		b.Title = v.Title
		if v.AuthorName != "" || v.AuthorURI != "" {
			b.Author = &author{Name: v.AuthorName, URI: v.AuthorURI}
		}
		b.Published = timePtr(v.Published)
		b.Updated = timePtr(v.LastUpdated)
		b.Tags = v.Tags
		name, content, err := m.registry.Encode(v.Resource)
		if err != nil {
			return nil, err
		}
		b.ResourceType = name
		b.Content = content
	case *models.TombstoneEntry:
		deleted := v.Deleted.UTC()
		b.Deleted = &deleted
	default:
		return nil, fmt.Errorf("%w: unsupported entry type %T", common.ErrValidation, e)
	}

	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMapping, err)
	}

	return &models.StorageDocument{
		RecordKey:  key.RecordKey(),
		LogicalID:  key.LogicalID(),
		Kind:       e.Kind(),
		Collection: key.Collection,
		VersionAt:  e.VersionTime().UTC(),
		Body:       raw,
	}, nil
}

// ToEntry parses a stored document back into an entry. With fetchContent
// set, externalized binary content is fetched back; otherwise the payload
// stays as it was read (possibly absent).
func (m *Mapper) ToEntry(ctx context.Context, doc *models.StorageDocument, fetchContent bool) (models.Entry, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", common.ErrMapping)
	}

	var b body
	if err := json.Unmarshal(doc.Body, &b); err != nil {
		return nil, fmt.Errorf("%w: cannot parse document %s: %v", common.ErrMapping, doc.RecordKey, err)
	}

	key, err := models.ParseResourceKey(b.Self)
	if err != nil || !key.HasVersion() {
		return nil, fmt.Errorf("%w: document %s has a malformed self link %q", common.ErrMapping, doc.RecordKey, b.Self)
	}

	if b.Deleted != nil {
		return &models.TombstoneEntry{Key: key, Deleted: b.Deleted.UTC()}, nil
	}

	e := &models.ContentEntry{
		Key:   key,
		Title: b.Title,
		Tags:  b.Tags,
	}
	if b.Author != nil {
		e.AuthorName, e.AuthorURI = b.Author.Name, b.Author.URI
	}
	if b.Published != nil {
		e.Published = b.Published.UTC()
	}
	if b.Updated != nil {
		e.LastUpdated = b.Updated.UTC()
	}

	if len(b.Content) > 0 {
		e.Resource, err = m.registry.Decode(b.ResourceType, b.Content)
		if err != nil {
			return nil, err
		}
	}

	if fetchContent && b.ResourceType == models.BinaryType && m.rehydrator != nil {
		if e.Resource == nil {
			e.Resource = &models.Binary{}
		}
		if err := m.rehydrator.Rehydrate(ctx, e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// ToEntries maps a list of documents, stopping at the first failure.
func (m *Mapper) ToEntries(ctx context.Context, docs []*models.StorageDocument, fetchContent bool) ([]models.Entry, error) {
	result := make([]models.Entry, 0, len(docs))
	for _, d := range docs {
		e, err := m.ToEntry(ctx, d, fetchContent)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
