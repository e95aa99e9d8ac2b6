package sink

import (
	"context"
	"sync"

	"github.com/danmuck/aerctl/internal/burst"
)

// Collector records events in arrival order. It is safe for concurrent readers.
type Collector struct {
	mu      sync.Mutex
	events  []burst.Event
	changed chan struct{}
}

func NewCollector() *Collector {
	return &Collector{changed: make(chan struct{})}
}

func (c *Collector) Event(row, col uint16) {
	c.mu.Lock()
	c.events = append(c.events, burst.Event{Row: row, Col: col})
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

func (c *Collector) Events() []burst.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]burst.Event(nil), c.events...)
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *Collector) Reset() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}

// Wait blocks until at least n events were collected or ctx ends.
func (c *Collector) Wait(ctx context.Context, n int) error {
	for {
		c.mu.Lock()
		got := len(c.events)
		ch := c.changed
		c.mu.Unlock()
		if got >= n {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Multi fans each event out to every sink in order.
type Multi []burst.Sink

func (m Multi) Event(row, col uint16) {
	for _, s := range m {
		if s != nil {
			s.Event(row, col)
		}
	}
}
