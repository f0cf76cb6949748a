package dbx

import "regexp"

// Bindvar is the placeholder style a driver understands. Queries in this
// module are written with Postgres style $n placeholders.
type Bindvar int

const (
	// Dollar keeps $1, $2, ... as written (pgx).
	Dollar Bindvar = iota
	// Question rewrites $n to ?n (SQLite numbered parameters).
	Question
)

var dollarPlaceholder = regexp.MustCompile(`\$(\d+)`)

// Rebind rewrites the placeholders of query for b.
func (b Bindvar) Rebind(query string) string {
	if b != Question {
		return query
	}
	return dollarPlaceholder.ReplaceAllString(query, "?$1")
}
