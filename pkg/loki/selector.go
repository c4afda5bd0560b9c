// Package loki translates query parameters into LogQL-style selector
// expressions, executes ranged queries against the remote log store, and
// caches result files keyed by query parameters.
package loki

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Query describes one ranged log query.
type Query struct {
	// Filters become label matchers inside the stream selector.
	Filters map[string]string `json:"filters"`

	// Pipeline stages are appended after the selector, separated by "|".
	// A stage beginning with a negation token (!=, !~) is appended without
	// the "|" prefix.
	Pipeline []string `json:"pipeline,omitempty"`

	// Search terms become a single |= "a" or "b" expression.
	Search []string `json:"search,omitempty"`

	// TraceID, when set, appends a trace_id equality stage and switches the
	// result cache to the longer trace-scoped TTL.
	TraceID string `json:"trace_id,omitempty"`

	// Date (YYYY-MM-DD) and optional Time (HH:MM) open the window; EndDate /
	// EndTime close it. All times are UTC.
	Date    string `json:"date,omitempty"`
	Time    string `json:"time,omitempty"`
	EndDate string `json:"end_date,omitempty"`
	EndTime string `json:"end_time,omitempty"`
}

// Selector renders the LogQL selector expression for the query.
func (q *Query) Selector() string {
	var b strings.Builder

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, q.Filters[k])
	}
	b.WriteByte('}')

	for _, stage := range q.Pipeline {
		stage = strings.TrimSpace(stage)
		if stage == "" {
			continue
		}
		if strings.HasPrefix(stage, "!=") || strings.HasPrefix(stage, "!~") {
			b.WriteString(" " + stage)
		} else {
			b.WriteString(" | " + stage)
		}
	}

	if q.TraceID != "" {
		fmt.Fprintf(&b, " | trace_id=%q", q.TraceID)
	}

	if len(q.Search) > 0 {
		escaped := make([]string, len(q.Search))
		for i, term := range q.Search {
			escaped[i] = `"` + strings.ReplaceAll(term, `"`, `\"`) + `"`
		}
		b.WriteString(` |= ` + strings.Join(escaped, " or "))
	}

	return b.String()
}

// Window resolves the query's time window. With no date the window is the
// last 24 hours ending at now.
func (q *Query) Window(now time.Time) (start, end time.Time) {
	now = now.UTC()
	if q.Date == "" {
		return now.Add(-24 * time.Hour), now
	}

	start = parseDayTime(q.Date, q.Time)
	switch {
	case q.EndDate != "" && q.EndTime != "":
		end = parseDayTime(q.EndDate, q.EndTime)
	case q.EndDate != "":
		end = parseDayTime(q.EndDate, "").Add(24 * time.Hour)
	default:
		end = parseDayTime(q.Date, "").Add(24 * time.Hour)
	}
	return start, end
}

func parseDayTime(date, clock string) time.Time {
	if clock == "" {
		clock = "00:00"
	}
	t, err := time.Parse("2006-01-02 15:04", date+" "+clock)
	if err != nil {
		// A malformed date falls back to today midnight UTC; validation
		// upstream should prevent this.
		return time.Now().UTC().Truncate(24 * time.Hour)
	}
	return t.UTC()
}

// CacheKey derives the deterministic 20-hex-character result cache key for
// the query.
func (q *Query) CacheKey() string {
	encoded, err := json.Marshal(q)
	if err != nil {
		encoded = []byte(q.Selector())
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])[:20]
}
