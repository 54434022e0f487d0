package schema

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes successful lookups of another provider in a bounded LRU.
// Failures are not cached, so a later lookup retries.
type Cached struct {
	next  Provider
	cache *lru.Cache[string, *Table]
}

// NewCached wraps next with an LRU of size entries.
func NewCached(next Provider, size int) (*Cached, error) {
	cache, err := lru.New[string, *Table](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: cache}, nil
}

// Table implements Provider.
func (c *Cached) Table(ctx context.Context, name string) (*Table, error) {
	if t, ok := c.cache.Get(name); ok {
		return t, nil
	}
	t, err := c.next.Table(ctx, name)
	if err != nil {
		return nil, err
	}
	c.cache.Add(name, t)
	return t, nil
}

// Purge drops every cached table.
func (c *Cached) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached tables.
func (c *Cached) Len() int {
	return c.cache.Len()
}
