package trace

import (
	"regexp"
	"strings"

	"github.com/logsleuth/sleuth/pkg/models"
)

// Operation extraction heuristics, compiled once per process. They only
// inspect message text; no remote call is ever executed.
var (
	httpCallRegex  = regexp.MustCompile(`\b(GET|POST|PUT|DELETE|PATCH|HEAD)\s+(/[^\s"']*)`)
	exceptionRegex = regexp.MustCompile(`\b([A-Z][A-Za-z0-9_]*(?:Exception|Error))\b`)
	methodRegex    = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]{2,})\s*\(`)
)

// BuildTimeline projects entries into timeline events with heuristically
// extracted operation summaries. Entries must already be sorted.
func BuildTimeline(entries []models.LogEntry) []models.TimelineEvent {
	events := make([]models.TimelineEvent, 0, len(entries))
	for i := range entries {
		events = append(events, models.TimelineEvent{
			Seq:              i + 1,
			Timestamp:        entries[i].Timestamp,
			Level:            entries[i].Level,
			OperationSummary: OperationSummary(entries[i].Message),
			Source:           entries[i].SourceFile,
		})
	}
	return events
}

// OperationSummary extracts a short description of what a log message
// represents: an HTTP call, an exception class, a method invocation, or a
// truncated excerpt of the message itself.
func OperationSummary(message string) string {
	message = strings.TrimSpace(message)

	if m := httpCallRegex.FindStringSubmatch(message); m != nil {
		return m[1] + " " + m[2]
	}
	if m := exceptionRegex.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	if m := methodRegex.FindStringSubmatch(message); m != nil {
		return m[1] + "()"
	}

	if len(message) > 80 {
		return message[:80] + "..."
	}
	if message == "" {
		return "(empty message)"
	}
	return message
}
