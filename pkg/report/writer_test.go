package report

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsleuth/sleuth/pkg/models"
)

func fixedWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	w.now = func() time.Time {
		return time.Date(2025, 7, 24, 12, 0, 0, 0, time.UTC)
	}
	return w
}

func reportBundle() *models.TraceBundle {
	when := time.Date(2025, 7, 24, 10, 15, 30, 0, time.UTC)
	return &models.TraceBundle{
		TraceID: "trace/1:a",
		Entries: []models.LogEntry{
			{TraceID: "trace/1:a", Level: "INFO", Message: "request received", SourceFile: "a.log"},
			{TraceID: "trace/1:a", Level: "ERROR", Timestamp: &when, Service: "payment-gw",
				Message: "TRANSACTION FAILED", SourceFile: "a.log"},
		},
		Timeline: []models.TimelineEvent{
			{Seq: 1, Level: "INFO", OperationSummary: "request received", Source: "a.log"},
			{Seq: 2, Level: "ERROR", Timestamp: &when, OperationSummary: "TRANSACTION FAILED", Source: "a.log"},
		},
		SourceFiles:  []string{"a.log"},
		TotalEntries: 2,
	}
}

func TestWriteTraceReport(t *testing.T) {
	w := fixedWriter(t)
	analysis := &models.TraceAnalysis{
		RelevanceScore:     88,
		KeyFinding:         "gateway timeout before confirmation",
		TransactionOutcome: "FAILED",
		ConfidenceLevel:    "HIGH",
		EvidenceFound:      []string{"timeout stack trace"},
	}
	params := &models.SearchParameters{TimeFrame: "2025-07-24", Domain: "BKASH", QueryKeys: []string{"900112233"}}

	path, err := w.WriteTraceReport(reportBundle(), analysis, params, "did the transfer fail?")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)

	assert.Contains(t, body, "FORENSIC TRACE REPORT")
	assert.Contains(t, body, "Trace ID: trace/1:a")
	assert.Contains(t, body, "Generated: 2025-07-24T12:00:00Z")
	assert.Contains(t, body, "EXECUTIVE SUMMARY")
	assert.Contains(t, body, "Key finding: gateway timeout before confirmation")
	assert.Contains(t, body, "Query keys: 900112233")
	assert.Contains(t, body, "Relevance score: 88")
	assert.Contains(t, body, "  * timeout stack trace")
	assert.Contains(t, body, "CHRONOLOGICAL TIMELINE")
	assert.Contains(t, body, "FULL LOG ENTRIES")
	assert.Contains(t, body, "  - Timestamp: unknown")
	assert.Contains(t, body, "  - Timestamp: 2025-07-24T10:15:30Z")
	assert.Contains(t, body, "  - Service: payment-gw")
	assert.Contains(t, body, "Total entries: 2")
	assert.Contains(t, body, "Analysis completed: 2025-07-24T12:00:00Z")
}

func TestTraceReportFilenameRoundTrip(t *testing.T) {
	name := TraceReportFilename("abc-123")
	assert.Equal(t, "trace_abc-123_report.txt", name)
	assert.Equal(t, "abc-123", TraceIDFromFilename("/out/"+name))
}

func TestTraceReportFilenameSanitizesUnsafeChars(t *testing.T) {
	name := TraceReportFilename("a/b:c d")
	assert.Equal(t, "trace_a_b_c_d_report.txt", name)
}

func TestTraceIDFromFilenameNonReports(t *testing.T) {
	assert.Equal(t, "", TraceIDFromFilename("master_report_20250724_120000.txt"))
	assert.Equal(t, "", TraceIDFromFilename("app.log"))
}

func TestWriteMasterReport(t *testing.T) {
	w := fixedWriter(t)

	relevance := &models.RelevanceSummary{}
	relevance.Add(models.RelevanceResult{
		TraceID: "t-1", Level: models.RelevanceRelevant, RelevanceScore: 70, ConfidenceScore: 80,
		Recommendation: "review manually",
	})

	path, err := w.WriteMasterReport(MasterInput{
		UserPrompt: "did the transfer fail?",
		Params:     &models.SearchParameters{Domain: "BKASH", QueryKeys: []string{"900112233"}},
		Relevance:  relevance,
		Quality:    &models.QualityAssessment{CompletenessScore: 90, RelevanceScore: 85, CoverageScore: 80, Status: "ok"},
		Summary:    &models.MasterSummary{Verdict: "SUPPORTED", Summary: "the transfer failed"},
		TraceFiles: []string{"/out/trace_t-1_report.txt"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "master_report_20250724_120000.txt"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)

	assert.Contains(t, body, "MASTER ANALYSIS SUMMARY")
	assert.Contains(t, body, "VERDICT")
	assert.Contains(t, body, "SUPPORTED")
	assert.Contains(t, body, "RELEVANCE RANKING")
	assert.Contains(t, body, "Relevant (1):")
	assert.Contains(t, body, "t-1 score=70 confidence=80 review manually")
	assert.Contains(t, body, "QUALITY ASSESSMENT")
	// No time frame and no highly relevant trace: both gaps are surfaced.
	assert.Contains(t, body, "GAPS")
	assert.Contains(t, body, "No time frame was extracted")
	assert.Contains(t, body, "No trace scored highly_relevant")
	assert.Contains(t, body, "FILE INDEX")
	assert.Contains(t, body, "/out/trace_t-1_report.txt")
}
