package models

import "time"

// Snapshot is an immutable, ordered list of record keys captured from a
// query result.
type Snapshot struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	SelfLink   string    `json:"selfLink,omitempty"`
	SortBy     string    `json:"sortBy,omitempty"`
	Keys       []string  `json:"keys"`
	MatchCount int       `json:"matchCount"`
	CreatedAt  time.Time `json:"createdAt"`
}
