package engine

import (
	"sort"
	"sync"
)

// Cache is the in-memory, per-collection store of entities keyed by id. It is
// the single source of truth for rendering; all mutation funnels through
// Upsert and Remove.
type Cache[T Entity] struct {
	mu   sync.RWMutex
	docs map[string]T
}

func NewCache[T Entity]() *Cache[T] {
	return &Cache[T]{docs: make(map[string]T)}
}

// Upsert inserts or replaces the document by id. Out-of-order delivery is
// guarded against: a document strictly older than the cached copy (lower
// version, or equal version with an earlier updated_at) is ignored. Returns
// whether the cache changed.
func (c *Cache[T]) Upsert(doc T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := doc.EntityID()
	if existing, ok := c.docs[id]; ok {
		if existing.EntityVersion() > doc.EntityVersion() {
			return false
		}
		if existing.EntityVersion() == doc.EntityVersion() &&
			existing.EntityUpdatedAt().After(doc.EntityUpdatedAt()) {
			return false
		}
	}

	c.docs[id] = doc
	return true
}

// Remove deletes by id. Removing an absent id is a no-op, not an error.
func (c *Cache[T]) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return false
	}
	delete(c.docs, id)
	return true
}

func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	return doc, ok
}

func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.docs)
}

// IDs returns the set of cached ids.
func (c *Cache[T]) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	return ids
}

// Query selects and orders entities for List. A nil Filter matches
// everything. A nil Less orders by updated_at, newest first. Ties are always
// broken by id so the order is total and stable across calls.
type Query[T Entity] struct {
	Filter func(T) bool
	Less   func(a, b T) bool
}

// List snapshots the matching entities in query order. The returned slice is
// independent of the cache, so callers can iterate and restart freely while
// the cache keeps changing.
func (c *Cache[T]) List(q Query[T]) []T {
	c.mu.RLock()
	out := make([]T, 0, len(c.docs))
	for _, doc := range c.docs {
		if q.Filter == nil || q.Filter(doc) {
			out = append(out, doc)
		}
	}
	c.mu.RUnlock()

	less := q.Less
	if less == nil {
		less = func(a, b T) bool { return a.EntityUpdatedAt().After(b.EntityUpdatedAt()) }
	}
	sort.Slice(out, func(i, j int) bool {
		if less(out[i], out[j]) {
			return true
		}
		if less(out[j], out[i]) {
			return false
		}
		return out[i].EntityID() < out[j].EntityID()
	})
	return out
}
