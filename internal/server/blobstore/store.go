// Package blobstore keeps binary payloads outside the document store.
//
// Callers open a connection per operation and close it when done; a
// connection is never shared between unrelated writes.
package blobstore

import (
	"context"
	"io"
)

// Blob is a stored payload and its media type.
type Blob struct {
	ContentType string
	Data        []byte
}

// Store hands out connections to the blob backend.
type Store interface {
	Open(ctx context.Context) (Conn, error)
}

// Conn is a scoped session against the blob backend. Fetch returns
// common.ErrorNotFound for missing names. Delete ignores missing names.
type Conn interface {
	io.Closer
	Store(ctx context.Context, name string, b Blob) error
	Fetch(ctx context.Context, name string) (*Blob, error)
	Delete(ctx context.Context, names ...string) error
	DeleteAll(ctx context.Context) error
}
