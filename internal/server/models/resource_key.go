// Package models defines the domain entries handled by the storage engine and
// the persisted document shapes they map to.
package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
)

const historySegment = "_history"

// ResourceKey identifies a resource and, optionally, one of its versions.
type ResourceKey struct {
	Collection string
	ID         string
	VersionID  string
}

// LogicalID is the identity without version: "Patient/42".
func (k ResourceKey) LogicalID() string {
	return k.Collection + "/" + k.ID
}

// RecordKey is the identity including version: "Patient/42/_history/1".
// It is the primary key of stored documents.
func (k ResourceKey) RecordKey() string {
	return k.LogicalID() + "/" + historySegment + "/" + k.VersionID
}

// BlobName is the key externalized binary content is stored under:
// "Patient/42/1".
func (k ResourceKey) BlobName() string {
	return k.Collection + "/" + k.ID + "/" + k.VersionID
}

// HasIdentity reports whether collection and id are set.
func (k ResourceKey) HasIdentity() bool {
	return k.Collection != "" && k.ID != ""
}

// HasVersion reports whether the key names a specific version.
func (k ResourceKey) HasVersion() bool {
	return k.HasIdentity() && k.VersionID != ""
}

// WithVersion returns a copy of k pointing at version v.
func (k ResourceKey) WithVersion(v string) ResourceKey {
	k.VersionID = v
	return k
}

func (k ResourceKey) String() string {
	if k.VersionID != "" {
		return k.RecordKey()
	}
	return k.LogicalID()
}

// ParseResourceKey accepts "Collection/id", "Collection/id/_history/v" and
// the same forms prefixed by a base URL such as "http://hl7.org/fhir/".
func ParseResourceKey(s string) (ResourceKey, error) {
	path := s
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ResourceKey{}, fmt.Errorf("%w: bad resource url %q: %v", common.ErrValidation, s, err)
		}
		path = u.Path
	}

	var segs []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			segs = append(segs, p)
		}
	}

	n := len(segs)
	switch {
	case n >= 4 && segs[n-2] == historySegment:
		return ResourceKey{Collection: segs[n-4], ID: segs[n-3], VersionID: segs[n-1]}, nil
	case n >= 2 && segs[n-1] != historySegment && segs[n-2] != historySegment:
		return ResourceKey{Collection: segs[n-2], ID: segs[n-1]}, nil
	default:
		return ResourceKey{}, fmt.Errorf("%w: cannot parse resource key %q", common.ErrValidation, s)
	}
}
