// Package counters persists named monotonic counters used to mint resource
// and version ids.
package counters

import "context"

type Repository interface {
	// Next atomically increments the counter and returns the new value.
	// A missing counter starts at 1.
	Next(ctx context.Context, name string) (int64, error)
	// EnsureAtLeast raises the counter to value if it is lower.
	EnsureAtLeast(ctx context.Context, name string, value int64) error
	Get(ctx context.Context, name string) (int64, error)
	DeleteAll(ctx context.Context) error
}
