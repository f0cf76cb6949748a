package timex

import (
	"sync"
	"time"
)

// Clock returns version timestamps.
type Clock interface {
	Now() time.Time
}

// MonotonicClock hands out UTC instants truncated to microseconds (the
// resolution both supported databases keep) and guarantees that every call
// returns a value strictly greater than the previous one.
type MonotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
