package trace

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/logsleuth/sleuth/pkg/models"
)

// Source is one pre-parsed candidate log source for bundle compilation.
type Source struct {
	Name    string
	Entries []models.LogEntry
}

// xmlFieldRegexes lift the known child tags of a <log-row> record.
var (
	xmlTimestampRegex = regexp.MustCompile(`<timestamp>\s*([^<]+?)\s*</timestamp>`)
	xmlLevelRegex     = regexp.MustCompile(`<level>\s*([^<]+?)\s*</level>`)
	xmlServiceRegex   = regexp.MustCompile(`<service>\s*([^<]+?)\s*</service>`)
	xmlMessageRegex   = regexp.MustCompile(`(?s)<message>\s*(.*?)\s*</message>`)
)

// ParseXMLRecords parses the well-formed <log-row> records of an XML-framed
// log file into entries. Records without a request ID are kept with an empty
// trace; malformed records are skipped by the framing scan.
func ParseXMLRecords(content, sourceName string) []models.LogEntry {
	var entries []models.LogEntry
	for _, rec := range records(content) {
		body := content[rec.start:rec.end]
		entry := models.LogEntry{
			Raw:        body,
			SourceFile: sourceName,
			Level:      "INFO",
		}
		if m := requestIDRegex.FindStringSubmatch(body); m != nil {
			entry.TraceID = strings.TrimSpace(m[1])
		}
		if m := xmlTimestampRegex.FindStringSubmatch(body); m != nil {
			entry.Timestamp = ParseTimestamp(m[1])
		}
		if m := xmlLevelRegex.FindStringSubmatch(body); m != nil {
			entry.Level = strings.ToUpper(strings.TrimSpace(m[1]))
		}
		if m := xmlServiceRegex.FindStringSubmatch(body); m != nil {
			entry.Service = strings.TrimSpace(m[1])
		}
		if m := xmlMessageRegex.FindStringSubmatch(body); m != nil {
			entry.Message = m[1]
		} else {
			entry.Message = body
		}
		entries = append(entries, entry)
	}
	return entries
}

// ParseTimestamp parses a textual timestamp with dayfirst precedence and
// fuzzy tolerance. Returns nil when the text cannot be parsed; nil sorts
// earliest in bundles.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	ts, err := dateparse.ParseAny(s, dateparse.PreferMonthFirst(false))
	if err != nil {
		return nil
	}
	ts = ts.UTC()
	return &ts
}

// Compile builds one bundle per trace ID by collecting every matching entry
// across all sources. Entries are merged into a single timestamp-sorted
// sequence (stable, nil timestamps first). Trace IDs with no matching
// entries produce no bundle; empty bundles are never materialized.
func Compile(traceIDs []string, sources []Source) []*models.TraceBundle {
	var bundles []*models.TraceBundle
	for _, id := range traceIDs {
		bundle := compileOne(id, sources)
		if bundle != nil {
			bundles = append(bundles, bundle)
		}
	}
	return bundles
}

func compileOne(traceID string, sources []Source) *models.TraceBundle {
	var entries []models.LogEntry
	var sourceFiles []string
	seenSource := make(map[string]bool)

	for _, src := range sources {
		matched := false
		for i := range src.Entries {
			if src.Entries[i].TraceID != traceID {
				continue
			}
			entries = append(entries, src.Entries[i])
			matched = true
		}
		if matched && !seenSource[src.Name] {
			seenSource[src.Name] = true
			sourceFiles = append(sourceFiles, src.Name)
		}
	}

	if len(entries) == 0 {
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Before(&entries[j])
	})

	return &models.TraceBundle{
		TraceID:      traceID,
		Entries:      entries,
		Timeline:     BuildTimeline(entries),
		SourceFiles:  sourceFiles,
		TotalEntries: len(entries),
	}
}
