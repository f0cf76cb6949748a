package models

import "time"

// DocumentState tells current documents apart from history.
type DocumentState string

const (
	// StatePending documents belong to a batch that has not been published
	// yet. They are invisible to every read.
	StatePending    DocumentState = "pending"
	StateCurrent    DocumentState = "current"
	StateSuperseded DocumentState = "superseded"
)

// StorageDocument is the persisted form of an entry.
type StorageDocument struct {
	RecordKey  string
	LogicalID  string
	State      DocumentState
	Kind       EntryKind
	Collection string
	VersionAt  time.Time
	BatchID    string
	// Body is the serialized entry without storage metadata.
	Body []byte
}

// Filter selects stored documents. Zero values mean "no constraint", except
// Limit where zero means unlimited.
type Filter struct {
	OnlyCurrent    bool
	IncludeDeleted bool
	LogicalID      string
	Collection     string
	Since          *time.Time
	Limit          int
	// WithContent keeps the resource payload in the projected body.
	WithContent bool
}
