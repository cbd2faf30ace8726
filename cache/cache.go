package cache

import (
	"sync"
	"time"

	"distance-api-go/logcolors"
	"distance-api-go/services/distance"

	log "github.com/sirupsen/logrus"
)

// Entry is one cached resolution. Owned exclusively by the cache;
// overwritten whole on every recomputation, never merged.
type Entry struct {
	Value     distance.Result `json:"value"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Cache is an in-memory TTL cache keyed by the literal request tuple.
// Safe for concurrent use by every in-flight request. Deliberately not
// durable: it is a latency/cost optimization, not a store of record, and
// an empty cache after restart only costs upstream calls.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]Entry
}

// New creates an empty cache whose entries live for ttl after each Put.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]Entry),
	}
}

// Get returns the live entry for key. An expired entry is treated as absent
// and removed on the spot.
func (c *Cache) Get(key string) (distance.Result, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return distance.Result{}, false
	}
	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a Put may have refreshed it.
		if current, still := c.entries[key]; still && time.Now().After(current.ExpiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return distance.Result{}, false
	}
	return entry.Value, true
}

// Put overwrites any entry for key with a fresh TTL. There is no
// refresh-on-read: only Put extends an entry's life.
func (c *Cache) Put(key string, value distance.Result) {
	c.mu.Lock()
	c.entries[key] = Entry{
		Value:     value,
		ExpiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Len returns the number of entries, live or not yet swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry and returns how many were removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]Entry)
	return n
}

// Dump returns a copy of the cache contents for the admin endpoint.
func (c *Cache) Dump() map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on interval until stop is closed. Expiry is
// already enforced lazily on Get; the sweeper only bounds memory held by
// keys nobody asks for again.
func (c *Cache) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	log.Infof("%s Starting cache sweeper (interval: %v)", logcolors.LogCacheSweep, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				log.Infof("%s Removed %d expired entries", logcolors.LogCacheSweep, removed)
			}
		case <-stop:
			return
		}
	}
}
