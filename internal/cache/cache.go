// Package cache is the in-memory TTL cache sitting in front of the
// failover chain. A hit short-circuits the vendor attempts entirely.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/indexbasket/market-proxy/internal/source"
)

type key struct {
	instrumentID string
	contentType  source.ContentType
}

type item struct {
	record    source.CanonicalRecord
	expiresAt time.Time
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Puts    int64   `json:"puts"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}

// Cache stores canonical records per (instrument, content type) for a TTL.
// A zero or negative TTL disables caching entirely.
type Cache struct {
	ttl        time.Duration
	maxEntries int

	mutex sync.RWMutex
	items map[key]item

	hits   atomic.Int64
	misses atomic.Int64
	puts   atomic.Int64
}

func New(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		items:      make(map[key]item),
	}
}

// Get returns the cached record for an instrument if it has not expired.
func (c *Cache) Get(instrumentID string, ct source.ContentType) (source.CanonicalRecord, bool) {
	if c.ttl <= 0 {
		return source.CanonicalRecord{}, false
	}

	c.mutex.RLock()
	it, exists := c.items[key{instrumentID, ct}]
	c.mutex.RUnlock()

	if !exists || time.Now().After(it.expiresAt) {
		c.misses.Add(1)
		return source.CanonicalRecord{}, false
	}

	c.hits.Add(1)
	return it.record, true
}

// Put stores a record. When the cache is over its entry cap, expired items
// are evicted first, then arbitrary ones until under the cap.
func (c *Cache) Put(instrumentID string, ct source.ContentType, record source.CanonicalRecord) {
	if c.ttl <= 0 {
		return
	}

	now := time.Now()

	c.mutex.Lock()
	c.items[key{instrumentID, ct}] = item{record: record, expiresAt: now.Add(c.ttl)}

	if c.maxEntries > 0 && len(c.items) > c.maxEntries {
		for k, it := range c.items {
			if now.After(it.expiresAt) {
				delete(c.items, k)
			}
			if len(c.items) <= c.maxEntries {
				break
			}
		}
		for k := range c.items {
			if len(c.items) <= c.maxEntries {
				break
			}
			delete(c.items, k)
		}
	}
	c.mutex.Unlock()

	c.puts.Add(1)
}

// Invalidate drops the cached record for one instrument.
func (c *Cache) Invalidate(instrumentID string, ct source.ContentType) {
	c.mutex.Lock()
	delete(c.items, key{instrumentID, ct})
	c.mutex.Unlock()
}

// Clear drops every cached record. Counters are kept.
func (c *Cache) Clear() {
	c.mutex.Lock()
	c.items = make(map[key]item)
	c.mutex.Unlock()
}

// Stats returns hit/miss/put counters and the current entry count.
func (c *Cache) Stats() Stats {
	c.mutex.RLock()
	entries := len(c.items)
	c.mutex.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:    hits,
		Misses:  misses,
		Puts:    c.puts.Load(),
		Entries: entries,
		HitRate: hitRate,
	}
}
