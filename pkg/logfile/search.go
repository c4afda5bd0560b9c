package logfile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/logsleuth/sleuth/pkg/trace"
)

// Match is one matching line returned by SearchWithTraceIDs. LineNumber is
// 1-based; ByteOffset is the offset of the line's first byte within the
// decompressed content.
type Match struct {
	Line       string
	LineNumber int
	ByteOffset int
	TraceID    string
}

// compilePatterns compiles patterns as case-insensitive regular expressions.
func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid search pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Search returns every line of path matching any pattern, each surrounded by
// contextLines lines of context before and after. Overlapping context blocks
// are not deduplicated; lines are returned in file order per match.
func Search(path string, patterns []string, contextLines int) ([]string, error) {
	compiled, err := compilePatterns(patterns)
	if err != nil {
		return nil, err
	}

	content, err := ReadFullContent(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(content, "\n")
	var out []string
	for i, line := range lines {
		if !anyMatch(compiled, line) {
			continue
		}
		start := i - contextLines
		if start < 0 {
			start = 0
		}
		end := i + contextLines
		if end >= len(lines) {
			end = len(lines) - 1
		}
		out = append(out, lines[start:end+1]...)
	}
	return out, nil
}

// SearchWithTraceIDs returns every matching line together with its position
// and the trace identifier of the enclosing log record.
func SearchWithTraceIDs(path string, patterns []string) ([]Match, error) {
	compiled, err := compilePatterns(patterns)
	if err != nil {
		return nil, err
	}

	content, err := ReadFullContent(path)
	if err != nil {
		return nil, err
	}

	var matches []Match
	offset := 0
	for i, line := range strings.Split(content, "\n") {
		if anyMatch(compiled, line) {
			m := Match{
				Line:       line,
				LineNumber: i + 1,
				ByteOffset: offset,
			}
			if traceID, ok := trace.Extract(content, offset); ok {
				m.TraceID = traceID
			}
			matches = append(matches, m)
		}
		offset += len(line) + 1 // +1 for the split newline
	}
	return matches, nil
}

func anyMatch(patterns []*regexp.Regexp, line string) bool {
	for _, re := range patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
