package blobstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
)

// Memory implements an in-memory blob store. It is intended mainly for
// tests and the embedded SQLite flavour.
type Memory struct {
	m     sync.RWMutex
	blobs map[string]Blob
	open  int
}

var _ Store = &Memory{}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]Blob)}
}

func (ms *Memory) Open(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms.m.Lock()
	ms.open++
	ms.m.Unlock()
	return &memoryConn{ms: ms}, nil
}

// OpenConns reports how many connections have not been closed yet.
func (ms *Memory) OpenConns() int {
	ms.m.RLock()
	defer ms.m.RUnlock()
	return ms.open
}

// Names lists the stored names in no particular order.
func (ms *Memory) Names() []string {
	ms.m.RLock()
	defer ms.m.RUnlock()
	out := make([]string, 0, len(ms.blobs))
	for k := range ms.blobs {
		out = append(out, k)
	}
	return out
}

type memoryConn struct {
	ms     *Memory
	closed bool
}

func (c *memoryConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.ms.m.Lock()
	c.ms.open--
	c.ms.m.Unlock()
	return nil
}

func (c *memoryConn) check() error {
	if c.closed {
		return fmt.Errorf("%w: blob connection closed", common.ErrStorage)
	}
	return nil
}

func (c *memoryConn) Store(ctx context.Context, name string, b Blob) error {
	if err := c.check(); err != nil {
		return err
	}
	data := append([]byte(nil), b.Data...)
	c.ms.m.Lock()
	c.ms.blobs[name] = Blob{ContentType: b.ContentType, Data: data}
	c.ms.m.Unlock()
	return nil
}

func (c *memoryConn) Fetch(ctx context.Context, name string) (*Blob, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	c.ms.m.RLock()
	b, ok := c.ms.blobs[name]
	c.ms.m.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", common.ErrorNotFound, name)
	}
	return &Blob{ContentType: b.ContentType, Data: append([]byte(nil), b.Data...)}, nil
}

func (c *memoryConn) Delete(ctx context.Context, names ...string) error {
	if err := c.check(); err != nil {
		return err
	}
	c.ms.m.Lock()
	for _, n := range names {
		delete(c.ms.blobs, n)
	}
	c.ms.m.Unlock()
	return nil
}

func (c *memoryConn) DeleteAll(ctx context.Context) error {
	if err := c.check(); err != nil {
		return err
	}
	c.ms.m.Lock()
	c.ms.blobs = make(map[string]Blob)
	c.ms.m.Unlock()
	return nil
}
