package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
)

// EntryKind tags the two entry variants in storage.
type EntryKind string

const (
	KindContent   EntryKind = "content"
	KindTombstone EntryKind = "tombstone"
)

// Entry is a domain record: either a *ContentEntry or a *TombstoneEntry.
// The set is closed; consumers switch over both cases.
type Entry interface {
	Identity() ResourceKey
	Kind() EntryKind
	// VersionTime is the instant this version became effective.
	VersionTime() time.Time
	isEntry()
}

// Tag is a category attached to a content entry.
type Tag struct {
	Term   string `json:"term"`
	Scheme string `json:"scheme"`
	Label  string `json:"label,omitempty"`
}

// ContentEntry carries a resource payload.
type ContentEntry struct {
	Key         ResourceKey
	Title       string
	AuthorName  string
	AuthorURI   string
	Published   time.Time
	LastUpdated time.Time
	Tags        []Tag
	Resource    Resource
}

func (e *ContentEntry) Identity() ResourceKey  { return e.Key }
func (e *ContentEntry) Kind() EntryKind        { return KindContent }
func (e *ContentEntry) VersionTime() time.Time { return e.LastUpdated }
func (e *ContentEntry) isEntry()               {}

// Binary returns the binary payload when the entry holds one.
func (e *ContentEntry) Binary() (*Binary, bool) {
	b, ok := e.Resource.(*Binary)
	return b, ok && b != nil
}

// TombstoneEntry marks a logical delete. It has no payload but stays in
// the version history.
type TombstoneEntry struct {
	Key     ResourceKey
	Deleted time.Time
}

func (e *TombstoneEntry) Identity() ResourceKey  { return e.Key }
func (e *TombstoneEntry) Kind() EntryKind        { return KindTombstone }
func (e *TombstoneEntry) VersionTime() time.Time { return e.Deleted }
func (e *TombstoneEntry) isEntry()               {}

// Stamp sets the version time of e to t.
func Stamp(e Entry, t time.Time) {
	switch v := e.(type) {
	case *ContentEntry:
		v.LastUpdated = t
	case *TombstoneEntry:
		v.Deleted = t
	}
}

// SetIdentity replaces the key of e.
func SetIdentity(e Entry, k ResourceKey) {
	switch v := e.(type) {
	case *ContentEntry:
		v.Key = k
	case *TombstoneEntry:
		v.Key = k
	}
}

// CheckIdentity verifies that e has both a logical identity and a record key.
func CheckIdentity(e Entry) error {
	if e == nil {
		return fmt.Errorf("%w: nil entry", common.ErrValidation)
	}
	k := e.Identity()
	if !k.HasIdentity() {
		return fmt.Errorf("%w: entry has no identity", common.ErrValidation)
	}
	if !k.HasVersion() {
		return fmt.Errorf("%w: entry %s has no record key", common.ErrValidation, k.LogicalID())
	}
	return nil
}
