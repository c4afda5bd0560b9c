package loki

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisOpTimeout bounds every shared-tier operation.
const redisOpTimeout = 500 * time.Millisecond

// l2KeyPrefix namespaces result metadata in the shared store.
const l2KeyPrefix = "loki:result:"

// CacheEntry is the metadata pointing at one downloaded result file. The
// referenced file must exist on read; a stale pointer is removed and treated
// as a miss (self-healing).
type CacheEntry struct {
	FilePath    string    `json:"file_path"`
	CreatedAt   time.Time `json:"created_at"`
	ResultCount int       `json:"result_count"`
	FileSize    int64     `json:"file_size"`
}

// resultCache keeps L1 metadata in memory and optionally mirrors it to a
// shared Redis store so sibling processes reuse downloaded files.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry

	redis *redis.Client // nil when no shared tier is configured
}

func newResultCache(redisURL string) *resultCache {
	c := &resultCache{entries: make(map[string]*CacheEntry)}
	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("Invalid Loki cache L2 URL, continuing L1-only", "error", err)
			return c
		}
		opts.DialTimeout = redisOpTimeout
		opts.ReadTimeout = redisOpTimeout
		opts.WriteTimeout = redisOpTimeout
		c.redis = redis.NewClient(opts)
	}
	return c
}

// get returns a live entry whose file still exists. Expired entries and
// stale file pointers are dropped.
func (c *resultCache) get(ctx context.Context, key string, ttl time.Duration) (*CacheEntry, bool) {
	now := time.Now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && now.Sub(entry.CreatedAt) > ttl {
		delete(c.entries, key)
		entry, ok = nil, false
	}
	c.mu.Unlock()

	if ok {
		if fileExists(entry.FilePath) {
			return entry, true
		}
		// Self-heal: the file was rotated or deleted under us.
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	}

	if c.redis == nil {
		return nil, false
	}

	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	raw, err := c.redis.Get(opCtx, l2KeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Loki cache L2 read failed", "error", err)
		}
		return nil, false
	}

	var l2Entry CacheEntry
	if err := json.Unmarshal([]byte(raw), &l2Entry); err != nil {
		return nil, false
	}
	if now.Sub(l2Entry.CreatedAt) > ttl {
		return nil, false
	}
	if !fileExists(l2Entry.FilePath) {
		// Self-heal the shared pointer too.
		delCtx, delCancel := context.WithTimeout(ctx, redisOpTimeout)
		defer delCancel()
		_ = c.redis.Del(delCtx, l2KeyPrefix+key).Err()
		return nil, false
	}

	// Back-fill L1.
	c.mu.Lock()
	c.entries[key] = &l2Entry
	c.mu.Unlock()
	return &l2Entry, true
}

// put registers a downloaded result file in L1 and, when configured, L2.
func (c *resultCache) put(ctx context.Context, key string, entry *CacheEntry, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := c.redis.Set(opCtx, l2KeyPrefix+key, raw, ttl).Err(); err != nil {
		slog.Warn("Loki cache L2 write failed", "error", err)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
