package llmcache

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// l1Entry is one cached value with its freshness window. TTL is attached per
// insert, so expiry lives in the entry rather than in the LRU itself.
type l1Entry struct {
	Value     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// l1Cache is the bounded in-process tier: LRU ordering with per-entry TTL.
// Expired entries are purged lazily on access and eagerly on write.
type l1Cache struct {
	cache     *lru.Cache[string, *l1Entry]
	evictions atomic.Int64
}

func newL1Cache(size int) (*l1Cache, error) {
	c := &l1Cache{}
	inner, err := lru.NewWithEvict[string, *l1Entry](size, func(string, *l1Entry) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.cache = inner
	return c, nil
}

// get returns a live entry, removing it when expired.
func (c *l1Cache) get(key string, now time.Time) (*l1Entry, bool) {
	entry, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if now.After(entry.ExpiresAt) {
		c.cache.Remove(key)
		return nil, false
	}
	return entry, true
}

// set stores a freshly computed value with its TTL anchored at now.
func (c *l1Cache) set(key, value string, ttl time.Duration, now time.Time) {
	c.add(key, &l1Entry{
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, now)
}

// restore re-inserts an entry copied from another tier, keeping its original
// creation time and deadline so age-based checks see the canonical values.
func (c *l1Cache) restore(key string, entry *l1Entry, now time.Time) {
	c.add(key, entry, now)
}

// add inserts the entry and eagerly drops any entries that have already
// expired, so stale data never crowds out live data under LRU pressure.
func (c *l1Cache) add(key string, entry *l1Entry, now time.Time) {
	for _, k := range c.cache.Keys() {
		if existing, ok := c.cache.Peek(k); ok && now.After(existing.ExpiresAt) {
			c.cache.Remove(k)
		}
	}
	c.cache.Add(key, entry)
}

func (c *l1Cache) remove(key string) { c.cache.Remove(key) }

func (c *l1Cache) purge() { c.cache.Purge() }

func (c *l1Cache) len() int { return c.cache.Len() }
