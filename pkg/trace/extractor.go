// Package trace discovers trace identifiers in log bodies (XML-framed files
// or remote JSON log streams), groups log entries per trace, and builds
// chronological timelines across sources.
package trace

import (
	"regexp"
	"strings"
)

// Regexes are compiled once per process and kept next to the framing code
// they serve.
var (
	logRowOpenRegex = regexp.MustCompile(`<log-row[^>]*>`)
	requestIDRegex  = regexp.MustCompile(`<request-id>\s*([^<]+?)\s*</request-id>`)
)

const logRowCloseTag = "</log-row>"

// Occurrence is one discovered trace identifier with its position and an
// excerpt of the enclosing record.
type Occurrence struct {
	TraceID    string
	Offset     int
	RowExcerpt string
}

// Extract returns the trace identifier of the record enclosing the given
// byte offset. When offset is negative, or when no record encloses it, the
// first record's trace is returned. Records without a closing tag are
// skipped as malformed.
func Extract(text string, offset int) (string, bool) {
	recs := records(text)
	if len(recs) == 0 {
		return "", false
	}

	if offset >= 0 {
		for _, rec := range recs {
			if offset >= rec.start && offset < rec.end {
				return rec.traceID(text)
			}
		}
	}
	return recs[0].traceID(text)
}

// ExtractAll returns every trace identifier in document order, one per
// well-formed record that carries a request ID.
func ExtractAll(text string) []Occurrence {
	var out []Occurrence
	for _, rec := range records(text) {
		id, ok := rec.traceID(text)
		if !ok {
			continue
		}
		excerpt := text[rec.start:rec.end]
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		out = append(out, Occurrence{TraceID: id, Offset: rec.start, RowExcerpt: excerpt})
	}
	return out
}

// Unique returns the distinct trace IDs from occurrences, first-seen order.
func Unique(occurrences []Occurrence) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, occ := range occurrences {
		if seen[occ.TraceID] {
			continue
		}
		seen[occ.TraceID] = true
		ids = append(ids, occ.TraceID)
	}
	return ids
}

// UniqueIDs deduplicates already-extracted trace IDs, first-seen order.
// Empty IDs are dropped.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// record is the byte span of one well-formed <log-row> element.
type record struct {
	start, end int
}

// traceID returns the first <request-id> value within the record.
func (r record) traceID(text string) (string, bool) {
	m := requestIDRegex.FindStringSubmatch(text[r.start:r.end])
	if m == nil {
		return "", false
	}
	id := strings.TrimSpace(m[1])
	return id, id != ""
}

// records locates well-formed <log-row>…</log-row> spans. A row whose
// closing tag is missing is malformed and skipped; scanning resumes at the
// next opening tag.
func records(text string) []record {
	var out []record
	for _, loc := range logRowOpenRegex.FindAllStringIndex(text, -1) {
		closeIdx := strings.Index(text[loc[1]:], logRowCloseTag)
		if closeIdx < 0 {
			continue
		}
		end := loc[1] + closeIdx + len(logRowCloseTag)
		// Nested or overlapping opens inside an already-claimed span are
		// artifacts of a malformed row; keep the span that closed first.
		if len(out) > 0 && loc[0] < out[len(out)-1].end {
			continue
		}
		out = append(out, record{start: loc[0], end: end})
	}
	return out
}
