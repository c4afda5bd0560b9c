package loki

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/logsleuth/sleuth/pkg/trace"
)

// maxFetchRetries bounds the exponential backoff on transient HTTP failures.
const maxFetchRetries = 3

// ClientConfig configures the query client and its result cache.
type ClientConfig struct {
	Endpoint     string
	CacheDir     string
	CacheEnabled bool
	BroadTTL     time.Duration
	TraceTTL     time.Duration
	QueryLimit   int

	// RedisURL enables the shared metadata tier when non-empty.
	RedisURL string
}

// Client executes ranged queries against the remote log store and caches
// result files keyed by query parameters.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	cache      *resultCache
	metrics    *Metrics
}

// NewClient creates a query client. The cache directory is created eagerly.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BroadTTL <= 0 {
		cfg.BroadTTL = 4 * time.Hour
	}
	if cfg.TraceTTL <= 0 {
		cfg.TraceTTL = 6 * time.Hour
	}
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = 5000
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create loki cache dir: %w", err)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		cache:      newResultCache(cfg.RedisURL),
		metrics:    &Metrics{},
	}, nil
}

// Metrics returns the per-process cache metrics.
func (c *Client) Metrics() MetricsSnapshot { return c.metrics.Snapshot() }

// FetchLogs executes the query and returns the path of a local file holding
// the response. Cached results are served without touching the backend;
// forceRefresh bypasses both cache tiers. A fetch failure is counted in
// metrics and returns an empty path with the error; callers treat an empty
// path as "no logs".
func (c *Client) FetchLogs(ctx context.Context, q *Query, forceRefresh bool) (string, error) {
	key := q.CacheKey()
	ttl := c.ttlFor(q)
	log := slog.With("cache_key", key, "selector", q.Selector())

	if c.cfg.CacheEnabled && !forceRefresh {
		if entry, ok := c.cache.get(ctx, key, ttl); ok {
			c.metrics.hits.Add(1)
			c.metrics.bytesSaved.Add(entry.FileSize)
			log.Debug("Loki result served from cache", "file", entry.FilePath)
			return entry.FilePath, nil
		}
		c.metrics.misses.Add(1)
	}

	path, err := c.download(ctx, q, key)
	if err != nil {
		c.metrics.errors.Add(1)
		return "", err
	}
	c.metrics.downloads.Add(1)

	// Inspect the downloaded file before registering it. Empty result sets
	// are never cached (the file may remain on disk); a transient gap in
	// the log store must not be pinned for a full TTL.
	data, err := os.ReadFile(path)
	if err != nil {
		c.metrics.errors.Add(1)
		return "", fmt.Errorf("failed to read downloaded result: %w", err)
	}
	resp, err := trace.ParseLokiResponse(data)
	if err != nil {
		c.metrics.errors.Add(1)
		return "", err
	}
	if resp.IsEmpty() {
		log.Info("Loki result empty, not caching")
		return path, nil
	}

	if c.cfg.CacheEnabled {
		info, statErr := os.Stat(path)
		var size int64
		if statErr == nil {
			size = info.Size()
		}
		c.cache.put(ctx, key, &CacheEntry{
			FilePath:    path,
			CreatedAt:   time.Now(),
			ResultCount: resp.EntryCount(),
			FileSize:    size,
		}, ttl)
	}

	log.Info("Loki result downloaded", "entries", resp.EntryCount())
	return path, nil
}

// ttlFor selects the result TTL: trace-ID-scoped queries live longer than
// broad range queries.
func (c *Client) ttlFor(q *Query) time.Duration {
	if q.TraceID != "" {
		return c.cfg.TraceTTL
	}
	return c.cfg.BroadTTL
}

// download executes the ranged query with retry and writes the raw response
// body to the cache directory.
func (c *Client) download(ctx context.Context, q *Query, key string) (string, error) {
	start, end := q.Window(time.Now())

	queryURL, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid loki endpoint: %w", err)
	}
	queryURL = queryURL.JoinPath("/loki/api/v1/query_range")

	params := url.Values{}
	params.Set("query", q.Selector())
	params.Set("start", strconv.FormatInt(start.UnixNano(), 10))
	params.Set("end", strconv.FormatInt(end.UnixNano(), 10))
	params.Set("limit", strconv.Itoa(c.cfg.QueryLimit))
	queryURL.RawQuery = params.Encode()

	var body []byte
	operation := func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, queryURL.String(), nil)
		if reqErr != nil {
			return backoff.Permanent(reqErr)
		}
		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return doErr
		}
		defer func() { _ = resp.Body.Close() }()

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return readErr
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("log store returned status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("log store returned status %d", resp.StatusCode))
		}
		body = data
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("log query failed: %w", err)
	}

	path := filepath.Join(c.cfg.CacheDir, "loki_"+key+".json")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write result file: %w", err)
	}
	return path, nil
}
