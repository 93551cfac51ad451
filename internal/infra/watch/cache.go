package watch

import (
	"sync"

	"toolsyncd/internal/domain"
)

// Cache is the local mirror of what was last pushed to the sink, keyed
// by service name. It is never authoritative over the sink's real
// state and may be transiently stale. Entries exist only for services
// whose last reconciliation applied at least one tool.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]domain.ToolSet
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]domain.ToolSet)}
}

// Get returns a copy of the applied set for a service.
func (c *Cache) Get(service string) (domain.ToolSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.entries[service]
	if !ok {
		return nil, false
	}
	return set.Clone(), true
}

// Put replaces the entry for a service with the given set.
func (c *Cache) Put(service string, set domain.ToolSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[service] = set.Clone()
}

// Remove deletes the entry for a service.
func (c *Cache) Remove(service string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, service)
}

// Keys returns the services with a cache entry.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of cached services.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
