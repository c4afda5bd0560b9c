package llmcache

import "sync/atomic"

// counters holds the per-process gateway counters. All fields are updated
// atomically; background cache bookkeeping never raises to callers.
type counters struct {
	l1Hits   atomic.Int64
	l1Misses atomic.Int64
	l1Sets   atomic.Int64

	l2Hits   atomic.Int64
	l2Misses atomic.Int64
	l2Sets   atomic.Int64

	bypasses  atomic.Int64
	computes  atomic.Int64
	coalesced atomic.Int64
}

// TierStats reports counters for one cache tier.
type TierStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Sets      int64 `json:"sets"`
	Evictions int64 `json:"evictions"`
}

// Stats is the gateway statistics snapshot returned by the admin endpoint.
type Stats struct {
	Enabled     bool      `json:"enabled"`
	L1          TierStats `json:"l1"`
	L1Entries   int       `json:"l1_entries"`
	L2          TierStats `json:"l2"`
	L2Enabled   bool      `json:"l2_enabled"`
	L2Healthy   bool      `json:"l2_healthy"`
	L2LastError string    `json:"l2_last_error,omitempty"`
	Bypasses    int64     `json:"bypasses"`
	Computes    int64     `json:"computes"`
	Coalesced   int64     `json:"coalesced"`
}
