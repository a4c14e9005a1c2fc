package farm

import (
	"context"
	"sync"
)

// FetchFunc loads a vendor catalog.
type FetchFunc func(ctx context.Context) ([]Agent, error)

// Catalog caches a vendor catalog for the lifetime of an adapter. The
// first successful fetch is kept until Reset; failed fetches are not
// cached.
type Catalog struct {
	mu      sync.Mutex
	fetch   FetchFunc
	agents  []Agent
	fetched bool
}

// NewCatalog returns a Catalog that loads entries with fetch.
func NewCatalog(fetch FetchFunc) *Catalog {
	return &Catalog{fetch: fetch}
}

// Get returns the cached catalog, fetching it on first use. Concurrent
// callers wait for a single fetch.
func (c *Catalog) Get(ctx context.Context) ([]Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fetched {
		return c.agents, nil
	}

	agents, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.agents = agents
	c.fetched = true
	return c.agents, nil
}

// Reset drops the cached catalog.
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agents = nil
	c.fetched = false
}
