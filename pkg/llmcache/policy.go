// Package llmcache implements the two-tier content-addressed cache gateway
// for LLM calls: an in-process LRU+TTL tier (L1), an optional shared Redis
// tier (L2), request coalescing, and HTTP-style cache-control policies.
package llmcache

import "time"

// Policy mirrors HTTP cache-control semantics for one gateway call.
//
//   - NoCache forces revalidation: the read path is bypassed but the computed
//     value is still stored.
//   - NoStore forbids writing the computed value.
//   - TTLSeconds overrides the call's default TTL when set.
//   - SMaxAgeSeconds rejects hits older than the given age, per tier.
//   - Namespace partitions entries between tenants or test runs.
type Policy struct {
	Enabled        *bool  `json:"enabled,omitempty"`
	NoCache        bool   `json:"no_cache,omitempty"`
	NoStore        bool   `json:"no_store,omitempty"`
	TTLSeconds     *int   `json:"ttl_seconds,omitempty"`
	SMaxAgeSeconds *int   `json:"s_maxage_seconds,omitempty"`
	Namespace      string `json:"namespace,omitempty"`
}

// disabled reports whether the policy explicitly disables caching.
func (p *Policy) disabled() bool {
	return p != nil && p.Enabled != nil && !*p.Enabled
}

// effectiveTTL resolves the TTL for a write: policy override first, then the
// call default.
func (p *Policy) effectiveTTL(defaultTTL time.Duration) time.Duration {
	if p != nil && p.TTLSeconds != nil {
		return time.Duration(*p.TTLSeconds) * time.Second
	}
	return defaultTTL
}

// freshEnough reports whether an entry created at createdAt satisfies the
// policy's s_maxage constraint. Entries with no constraint always pass.
func (p *Policy) freshEnough(createdAt time.Time, now time.Time) bool {
	if p == nil || p.SMaxAgeSeconds == nil {
		return true
	}
	return now.Sub(createdAt) <= time.Duration(*p.SMaxAgeSeconds)*time.Second
}

// namespaceOr returns the policy namespace, falling back to def.
func (p *Policy) namespaceOr(def string) string {
	if p != nil && p.Namespace != "" {
		return p.Namespace
	}
	return def
}
