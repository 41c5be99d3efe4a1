// Package feed provides the article corpus seen by the search subsystem.
package feed

import (
	"sort"
	"sync"

	"feedsearch/internal/domain"
)

// Catalog is an in-memory, concurrency-safe set of items keyed by ID.
type Catalog struct {
	mu    sync.RWMutex
	items map[int64]domain.Item
}

func NewCatalog() *Catalog {
	return &Catalog{
		items: make(map[int64]domain.Item),
	}
}

func (c *Catalog) Put(items ...domain.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		c.items[item.ID] = item
	}
}

func (c *Catalog) Get(id int64) (domain.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	return item, ok
}

func (c *Catalog) Remove(ids ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.items, id)
	}
}

// Snapshot returns a copy of the catalog suitable as a search corpus.
func (c *Catalog) Snapshot() map[int64]domain.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int64]domain.Item, len(c.items))
	for id, item := range c.items {
		out[id] = item
	}
	return out
}

// List returns all items ordered by ID.
func (c *Catalog) List() []domain.Item {
	c.mu.RLock()
	items := make([]domain.Item, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, item)
	}
	c.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].ID < items[j].ID
	})
	return items
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
