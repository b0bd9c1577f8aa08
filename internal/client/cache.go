package client

import (
	"strings"
	"sync"
	"time"
)

const (
	// Entries older than staleAfter are refetched; entries older than
	// dropAfter are removed outright.
	staleAfter = 5 * time.Minute
	dropAfter  = 10 * time.Minute
)

// Cache is a read-through cache for API reads. Writes never patch it;
// mutations invalidate the matching key so the next read refetches.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	value     interface{}
	fetchedAt time.Time
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prune()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.fetchedAt) >= staleAfter {
		return nil, false
	}
	return entry.value, true
}

func (c *Cache) Put(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prune()
	c.entries[key] = cacheEntry{value: value, fetchedAt: c.now()}
}

func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.entries, key)
	}
}

// InvalidatePrefix drops every key with the given prefix, e.g. all cached
// lead searches at once.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// prune drops garbage-collectable entries. Callers must hold the lock.
func (c *Cache) prune() {
	now := c.now()
	for key, entry := range c.entries {
		if now.Sub(entry.fetchedAt) >= dropAfter {
			delete(c.entries, key)
		}
	}
}
