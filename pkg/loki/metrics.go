package loki

import (
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// Metrics holds per-process result cache counters. Metric updates never
// raise to callers.
type Metrics struct {
	hits       atomic.Int64
	misses     atomic.Int64
	downloads  atomic.Int64
	errors     atomic.Int64
	bytesSaved atomic.Int64
}

// MetricsSnapshot is the exported view of the cache counters.
type MetricsSnapshot struct {
	Hits            int64   `json:"hits"`
	Misses          int64   `json:"misses"`
	Downloads       int64   `json:"downloads"`
	Errors          int64   `json:"errors"`
	BytesSaved      int64   `json:"bytes_saved"`
	BytesSavedHuman string  `json:"bytes_saved_human"`
	HitRate         float64 `json:"hit_rate"`
}

// Snapshot returns the current counter values. Hit rate is hits over
// (hits + misses); zero traffic reports 0.
func (m *Metrics) Snapshot() MetricsSnapshot {
	hits := m.hits.Load()
	misses := m.misses.Load()
	saved := m.bytesSaved.Load()

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	return MetricsSnapshot{
		Hits:            hits,
		Misses:          misses,
		Downloads:       m.downloads.Load(),
		Errors:          m.errors.Load(),
		BytesSaved:      saved,
		BytesSavedHuman: humanize.Bytes(uint64(saved)),
		HitRate:         rate,
	}
}
