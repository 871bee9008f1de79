package app

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ValidationCache remembers when a file path was last confirmed on disk.
// Entries carry no go-cache expiration: trust is judged against the caller's
// clock and the current TTL, which SetTTL may change for entries already
// stored.
type ValidationCache struct {
	entries *gocache.Cache
	ttl     time.Duration
	mu      sync.RWMutex
}

// NewValidationCache creates a cache whose entries are trusted for ttl
func NewValidationCache(ttl time.Duration) *ValidationCache {
	return &ValidationCache{
		entries: gocache.New(gocache.NoExpiration, 0),
		ttl:     ttl,
	}
}

// Trusted reports whether path was validated no longer than ttl before now
func (c *ValidationCache) Trusted(path string, now time.Time) bool {
	v, ok := c.entries.Get(path)
	if !ok {
		return false
	}
	at, ok := v.(time.Time)
	if !ok {
		return false
	}
	return now.Sub(at) <= c.TTL()
}

// Put records a positive validation
func (c *ValidationCache) Put(path string, at time.Time) {
	c.entries.Set(path, at, gocache.NoExpiration)
}

// Evict forgets path
func (c *ValidationCache) Evict(path string) {
	c.entries.Delete(path)
}

// Len returns the number of entries, expired or not
func (c *ValidationCache) Len() int {
	return c.entries.ItemCount()
}

// Clear drops every entry and returns how many were removed
func (c *ValidationCache) Clear() int {
	n := c.entries.ItemCount()
	c.entries.Flush()
	return n
}

// CleanupExpired removes entries older than the TTL
func (c *ValidationCache) CleanupExpired(now time.Time) int {
	ttl := c.TTL()
	removed := 0
	for path, item := range c.entries.Items() {
		at, ok := item.Object.(time.Time)
		if !ok || now.Sub(at) > ttl {
			c.entries.Delete(path)
			removed++
		}
	}
	return removed
}

// TTL returns the current trust window
func (c *ValidationCache) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// SetTTL changes the trust window for existing and future entries
func (c *ValidationCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}
