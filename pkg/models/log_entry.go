package models

import "time"

// LogEntry is a single parsed log record. Timestamp may be nil when parsing
// failed; ordering treats a nil timestamp as earliest.
type LogEntry struct {
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	TraceID    string     `json:"trace_id,omitempty"`
	Level      string     `json:"level"`
	Service    string     `json:"service,omitempty"`
	Message    string     `json:"message"`
	Raw        string     `json:"raw"`
	SourceFile string     `json:"source_file"`
}

// Before reports whether e sorts before other by timestamp. Nil timestamps
// sort earliest; two nil timestamps compare equal (callers must use a stable
// sort to preserve insertion order on ties).
func (e *LogEntry) Before(other *LogEntry) bool {
	if e.Timestamp == nil {
		return other.Timestamp != nil
	}
	if other.Timestamp == nil {
		return false
	}
	return e.Timestamp.Before(*other.Timestamp)
}

// TimelineEvent is a thin projection of a log entry used in reports and
// analysis prompts. OperationSummary is heuristically extracted from the
// message without executing any remote call.
type TimelineEvent struct {
	Seq              int        `json:"seq"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
	Level            string     `json:"level"`
	OperationSummary string     `json:"operation_summary"`
	Source           string     `json:"source"`
}

// TraceBundle is the complete chronological set of records for a single
// trace across every source that mentioned it. Immutable once emitted.
// Invariants: every entry's TraceID equals TraceID; Entries is non-empty.
type TraceBundle struct {
	TraceID      string          `json:"trace_id"`
	Entries      []LogEntry      `json:"entries"`
	Timeline     []TimelineEvent `json:"timeline"`
	SourceFiles  []string        `json:"source_files"`
	TotalEntries int             `json:"total_entries"`
}

// TimeSpan returns the first and last non-nil timestamps in the bundle.
// ok is false when no entry carries a timestamp.
func (b *TraceBundle) TimeSpan() (first, last time.Time, ok bool) {
	for i := range b.Entries {
		ts := b.Entries[i].Timestamp
		if ts == nil {
			continue
		}
		if !ok {
			first, last, ok = *ts, *ts, true
			continue
		}
		if ts.Before(first) {
			first = *ts
		}
		if ts.After(last) {
			last = *ts
		}
	}
	return first, last, ok
}

// Levels returns the distinct log levels present in the bundle, in first-seen order.
func (b *TraceBundle) Levels() []string {
	seen := make(map[string]bool)
	var levels []string
	for i := range b.Entries {
		lvl := b.Entries[i].Level
		if lvl == "" || seen[lvl] {
			continue
		}
		seen[lvl] = true
		levels = append(levels, lvl)
	}
	return levels
}
