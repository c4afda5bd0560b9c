package llmcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/logsleuth/sleuth/pkg/llm"
)

// Status describes how a gateway call was served.
type Status string

const (
	StatusHitL1     Status = "HIT_L1"
	StatusHitL2     Status = "HIT_L2"
	StatusMiss      Status = "MISS"
	StatusBypass    Status = "BYPASS"
	StatusCoalesced Status = "COALESCED"
)

// ErrNilCompute indicates a Cached call without a compute function.
var ErrNilCompute = errors.New("llmcache: compute function is nil")

// Diagnostics describes how a call was served, for logs and event payloads.
type Diagnostics struct {
	Status    Status `json:"status"`
	KeyPrefix string `json:"key_prefix"`
}

// ComputeFunc produces the value on a cache miss. cacheable=false prevents
// the result from being stored even when the policy allows writes.
type ComputeFunc func(ctx context.Context) (value string, cacheable bool, err error)

// CachedInput carries everything needed to serve one gateway call.
type CachedInput struct {
	CacheType  string
	ModelID    string
	Messages   []llm.Message
	Options    map[string]any
	DefaultTTL time.Duration
	Policy     *Policy
	Compute    ComputeFunc
}

// Config holds the gateway's own settings (decoupled from pkg/config so the
// cache can be embedded in tests without the full configuration).
type Config struct {
	Enabled        bool
	Namespace      string
	L1Size         int
	L1TTL          time.Duration
	GatewayVersion string
	PromptVersion  string
}

// Gateway is the two-tier content-addressed cache for LLM calls. It owns L1
// exclusively; L2 is shared across processes by Redis semantics.
type Gateway struct {
	cfg   Config
	l1    *l1Cache
	l2    *l2Store // nil when L2 is disabled
	group singleflight.Group
	stats counters
}

// New creates a gateway. l2URL is optional; empty disables the shared tier.
func New(cfg Config, l2URL string, l2AutoProbe bool) (*Gateway, error) {
	if cfg.L1Size <= 0 {
		cfg.L1Size = 512
	}
	if cfg.L1TTL <= 0 {
		cfg.L1TTL = 30 * time.Minute
	}

	l1, err := newL1Cache(cfg.L1Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create L1 cache: %w", err)
	}

	g := &Gateway{cfg: cfg, l1: l1}
	if l2URL != "" {
		l2, err := newL2Store(l2URL, l2AutoProbe)
		if err != nil {
			// A malformed L2 URL downgrades to L1-only; it must not take
			// the process down.
			slog.Warn("Invalid L2 cache URL, continuing L1-only", "error", err)
		} else {
			g.l2 = l2
		}
	}
	return g, nil
}

// Cached serves one LLM call through the cache: key derivation, policy
// checks, L1/L2 probes, then single-flight compute on miss.
func (g *Gateway) Cached(ctx context.Context, in CachedInput) (string, Diagnostics, error) {
	if in.Compute == nil {
		return "", Diagnostics{}, ErrNilCompute
	}

	namespace := in.Policy.namespaceOr(g.cfg.Namespace)
	key := BuildKey(in.CacheType, namespace, in.ModelID, in.Messages, in.Options,
		g.cfg.GatewayVersion, g.cfg.PromptVersion)
	diag := Diagnostics{KeyPrefix: KeyPrefix(key)}

	if !g.cfg.Enabled || in.Policy.disabled() {
		g.stats.bypasses.Add(1)
		value, _, err := in.Compute(ctx)
		diag.Status = StatusBypass
		return value, diag, err
	}

	now := time.Now()

	// Read path, skipped under no_cache (forced revalidation).
	if in.Policy == nil || !in.Policy.NoCache {
		if entry, ok := g.l1.get(key, now); ok && in.Policy.freshEnough(entry.CreatedAt, now) {
			g.stats.l1Hits.Add(1)
			diag.Status = StatusHitL1
			return entry.Value, diag, nil
		}
		g.stats.l1Misses.Add(1)

		if g.l2 != nil && g.l2.ensureAvailable(ctx) {
			if entry, ok := g.l2.get(ctx, key); ok && in.Policy.freshEnough(entry.CreatedAt, now) {
				g.stats.l2Hits.Add(1)
				g.backfillL1(key, entry, in, now)
				diag.Status = StatusHitL2
				return entry.Value, diag, nil
			}
			g.stats.l2Misses.Add(1)
		}
	}

	// Miss: single-flight compute. leader is set only inside the closure, so
	// callers that received the leader's value can report COALESCED.
	leader := false
	value, err, _ := g.group.Do(key, func() (any, error) {
		leader = true
		return g.computeAndStore(ctx, key, in)
	})
	if err != nil {
		return "", diag, err
	}

	if leader {
		diag.Status = StatusMiss
	} else {
		g.stats.coalesced.Add(1)
		diag.Status = StatusCoalesced
	}
	return value.(string), diag, nil
}

// computeAndStore runs on the single-flight leader: cross-process lock when
// L2 is present, compute, then store bounded by policy and cacheability.
func (g *Gateway) computeAndStore(ctx context.Context, key string, in CachedInput) (string, error) {
	l2Ready := g.l2 != nil && g.l2.ensureAvailable(ctx)

	if l2Ready {
		if g.l2.acquireLock(ctx, key) {
			defer g.l2.releaseLock(ctx, key)
		} else if entry, ok := g.l2.waitForResult(ctx, key); ok {
			// Another process computed the value while we waited.
			g.stats.l2Hits.Add(1)
			g.backfillL1(key, entry, in, time.Now())
			return entry.Value, nil
		}
		// Wait budget elapsed: compute independently.
	}

	g.stats.computes.Add(1)
	value, cacheable, err := in.Compute(ctx)
	if err != nil {
		return "", err
	}

	noStore := in.Policy != nil && in.Policy.NoStore
	if cacheable && !noStore {
		now := time.Now()
		ttl := in.Policy.effectiveTTL(g.ttlOr(in.DefaultTTL))
		g.l1.set(key, value, ttl, now)
		g.stats.l1Sets.Add(1)
		if l2Ready {
			g.l2.set(ctx, key, value, ttl, now)
			g.stats.l2Sets.Add(1)
		}
	}
	return value, nil
}

// backfillL1 copies an L2 hit into L1, preserving the original creation time
// so s_maxage keeps working on later L1 hits. The backfilled entry keeps the
// canonical CreatedAt+ttl deadline rather than restarting the TTL.
func (g *Gateway) backfillL1(key string, entry *l2Entry, in CachedInput, now time.Time) {
	ttl := in.Policy.effectiveTTL(g.ttlOr(in.DefaultTTL))
	expiresAt := entry.CreatedAt.Add(ttl)
	if !expiresAt.After(now) {
		return
	}
	g.l1.restore(key, &l1Entry{
		Value:     entry.Value,
		CreatedAt: entry.CreatedAt,
		ExpiresAt: expiresAt,
	}, now)
	g.stats.l1Sets.Add(1)
}

func (g *Gateway) ttlOr(defaultTTL time.Duration) time.Duration {
	if defaultTTL > 0 {
		return defaultTTL
	}
	return g.cfg.L1TTL
}

// Delete removes a key from both tiers.
func (g *Gateway) Delete(ctx context.Context, key string) {
	g.l1.remove(key)
	if g.l2 != nil && g.l2.ensureAvailable(ctx) {
		g.l2.delete(ctx, key)
	}
}

// ClearL1 drops every L1 entry. L2 is untouched.
func (g *Gateway) ClearL1() {
	g.l1.purge()
}

// PingL2 checks the shared tier's reachability. Returns an error when L2 is
// not configured or unreachable.
func (g *Gateway) PingL2(ctx context.Context) error {
	if g.l2 == nil {
		return errors.New("L2 cache not configured")
	}
	return g.l2.ping(ctx)
}

// Snapshot returns current gateway statistics.
func (g *Gateway) Snapshot(ctx context.Context) Stats {
	s := Stats{
		Enabled: g.cfg.Enabled,
		L1: TierStats{
			Hits:      g.stats.l1Hits.Load(),
			Misses:    g.stats.l1Misses.Load(),
			Sets:      g.stats.l1Sets.Load(),
			Evictions: g.l1.evictions.Load(),
		},
		L1Entries: g.l1.len(),
		L2: TierStats{
			Hits:   g.stats.l2Hits.Load(),
			Misses: g.stats.l2Misses.Load(),
			Sets:   g.stats.l2Sets.Load(),
		},
		L2Enabled: g.l2 != nil,
		Bypasses:  g.stats.bypasses.Load(),
		Computes:  g.stats.computes.Load(),
		Coalesced: g.stats.coalesced.Load(),
	}
	if g.l2 != nil {
		s.L2Healthy = g.l2.ping(ctx) == nil
		s.L2LastError = g.l2.LastError()
	}
	return s
}
