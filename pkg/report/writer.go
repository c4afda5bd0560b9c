// Package report renders analysis results into on-disk text reports: one
// comprehensive report per trace and one master summary per run. Rendering
// consumes read-only models; no report holds references back into the
// pipeline.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/logsleuth/sleuth/pkg/models"
)

const (
	traceReportPrefix = "trace_"
	traceReportSuffix = "_report.txt"
)

// unsafeIDChars matches anything not allowed in a report filename.
var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Writer renders reports into a single output directory.
type Writer struct {
	outputDir string
	now       func() time.Time
}

// NewWriter creates the writer, creating the output directory eagerly.
func NewWriter(outputDir string) (*Writer, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report output dir: %w", err)
	}
	return &Writer{outputDir: outputDir, now: time.Now}, nil
}

// OutputDir returns the directory reports are written to.
func (w *Writer) OutputDir() string { return w.outputDir }

// WriteTraceReport renders one per-trace comprehensive report and returns its
// path.
func (w *Writer) WriteTraceReport(bundle *models.TraceBundle, analysis *models.TraceAnalysis,
	params *models.SearchParameters, userPrompt string) (string, error) {

	var b strings.Builder
	line := strings.Repeat("=", 72)

	fmt.Fprintf(&b, "%s\nFORENSIC TRACE REPORT\n%s\n", line, line)
	fmt.Fprintf(&b, "Trace ID: %s\n", bundle.TraceID)
	fmt.Fprintf(&b, "Generated: %s\n\n", w.now().UTC().Format(time.RFC3339))

	b.WriteString("EXECUTIVE SUMMARY\n-----------------\n")
	fmt.Fprintf(&b, "Dispute: %s\n", userPrompt)
	fmt.Fprintf(&b, "Key finding: %s\n", analysis.KeyFinding)
	fmt.Fprintf(&b, "Transaction outcome: %s\n", analysis.TransactionOutcome)
	fmt.Fprintf(&b, "Confidence: %s\n\n", analysis.ConfidenceLevel)

	b.WriteString("SEARCH PARAMETERS\n-----------------\n")
	if params != nil {
		fmt.Fprintf(&b, "Time frame: %s\n", params.TimeFrame)
		fmt.Fprintf(&b, "Domain: %s\n", params.Domain)
		fmt.Fprintf(&b, "Query keys: %s\n", strings.Join(params.QueryKeys, ", "))
	}
	b.WriteString("\n")

	b.WriteString("DETAILED ANALYSIS\n-----------------\n")
	fmt.Fprintf(&b, "Relevance score: %d\n", analysis.RelevanceScore)
	fmt.Fprintf(&b, "Request summary: %s\n", analysis.RequestSummary)
	fmt.Fprintf(&b, "Failure point: %s\n", analysis.FailurePoint)
	fmt.Fprintf(&b, "Primary issue: %s\n", analysis.PrimaryIssue)
	writeList(&b, "Evidence found", analysis.EvidenceFound)
	writeList(&b, "Critical indicators", analysis.CriticalIndicators)
	fmt.Fprintf(&b, "Customer claim assessment: %s\n", analysis.CustomerClaimAssessment)
	fmt.Fprintf(&b, "Root cause analysis: %s\n", analysis.RootCauseAnalysis)
	fmt.Fprintf(&b, "Recommendation: %s\n", analysis.Recommendation)
	fmt.Fprintf(&b, "Technical details: %s\n\n", analysis.TechnicalDetails)

	b.WriteString("CHRONOLOGICAL TIMELINE\n----------------------\n")
	fmt.Fprintf(&b, "%s\n", analysis.TimelineSummary)
	for _, ev := range bundle.Timeline {
		ts := "unknown"
		if ev.Timestamp != nil {
			ts = ev.Timestamp.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "%3d. [%s] %-5s %s (%s)\n", ev.Seq, ts, ev.Level, ev.OperationSummary, ev.Source)
	}
	b.WriteString("\n")

	b.WriteString("FULL LOG ENTRIES\n----------------\n")
	for i := range bundle.Entries {
		e := &bundle.Entries[i]
		ts := "unknown"
		if e.Timestamp != nil {
			ts = e.Timestamp.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "Entry %d:\n", i+1)
		fmt.Fprintf(&b, "  - Timestamp: %s\n", ts)
		fmt.Fprintf(&b, "  - Level: %s\n", e.Level)
		if e.Service != "" {
			fmt.Fprintf(&b, "  - Service: %s\n", e.Service)
		}
		fmt.Fprintf(&b, "  - Source: %s\n", e.SourceFile)
		fmt.Fprintf(&b, "  - Message: %s\n", e.Message)
	}
	b.WriteString("\n")

	b.WriteString("TECHNICAL METRICS\n-----------------\n")
	fmt.Fprintf(&b, "Total entries: %d\n", bundle.TotalEntries)
	fmt.Fprintf(&b, "Source files: %s\n", strings.Join(bundle.SourceFiles, ", "))
	if first, last, ok := bundle.TimeSpan(); ok {
		fmt.Fprintf(&b, "Time span: %s .. %s\n",
			first.UTC().Format(time.RFC3339), last.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Log levels: %s\n\n", strings.Join(bundle.Levels(), ", "))

	fmt.Fprintf(&b, "Analysis completed: %s\n", w.now().UTC().Format(time.RFC3339))

	path := filepath.Join(w.outputDir, TraceReportFilename(bundle.TraceID))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write trace report: %w", err)
	}
	return path, nil
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "%s: (none)\n", label)
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "  * %s\n", item)
	}
}

// TraceReportFilename returns the canonical report filename for a trace ID.
func TraceReportFilename(traceID string) string {
	return traceReportPrefix + sanitizeID(traceID) + traceReportSuffix
}

// TraceIDFromFilename recovers the (sanitized) trace ID from a report path.
// Returns "" for paths that are not trace reports.
func TraceIDFromFilename(path string) string {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, traceReportPrefix) || !strings.HasSuffix(name, traceReportSuffix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, traceReportPrefix), traceReportSuffix)
}

func sanitizeID(id string) string {
	return unsafeIDChars.ReplaceAllString(id, "_")
}
