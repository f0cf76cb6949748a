package common

// Names of the sequence counters kept in the counters collection.
const (
	ResourceIDCounter = "resourceId"
	VersionIDCounter  = "versionId"
)

// DefaultListLimit caps list operations when the caller does not pass a limit.
const DefaultListLimit = 100
