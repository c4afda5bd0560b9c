package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/logsleuth/sleuth/pkg/models"
)

// MasterInput collects everything the master summary report renders.
type MasterInput struct {
	UserPrompt string
	Params     *models.SearchParameters
	Relevance  *models.RelevanceSummary
	Quality    *models.QualityAssessment
	Summary    *models.MasterSummary
	TraceFiles []string
}

// WriteMasterReport renders the run-level summary: verdict, relevance
// ranking, statistics, gaps, and the file index. Returns the report path.
func (w *Writer) WriteMasterReport(in MasterInput) (string, error) {
	var b strings.Builder
	line := strings.Repeat("=", 72)

	fmt.Fprintf(&b, "%s\nMASTER ANALYSIS SUMMARY\n%s\n", line, line)
	fmt.Fprintf(&b, "Generated: %s\n\n", w.now().UTC().Format(time.RFC3339))

	fmt.Fprintf(&b, "Dispute: %s\n", in.UserPrompt)
	if in.Params != nil {
		fmt.Fprintf(&b, "Time frame: %s | Domain: %s | Query keys: %s\n",
			in.Params.TimeFrame, in.Params.Domain, strings.Join(in.Params.QueryKeys, ", "))
	}
	b.WriteString("\n")

	if in.Summary != nil {
		b.WriteString("VERDICT\n-------\n")
		fmt.Fprintf(&b, "%s\n\n%s\n", in.Summary.Verdict, in.Summary.Summary)
		writeList(&b, "Key traces", in.Summary.KeyTraces)
		writeList(&b, "Open items", in.Summary.OpenItems)
		b.WriteString("\n")
	}

	if in.Relevance != nil {
		b.WriteString("RELEVANCE RANKING\n-----------------\n")
		writeBucket(&b, "Highly relevant", in.Relevance.HighlyRelevant)
		writeBucket(&b, "Relevant", in.Relevance.Relevant)
		writeBucket(&b, "Potentially relevant", in.Relevance.PotentiallyRelevant)
		writeBucket(&b, "Not relevant", in.Relevance.NotRelevant)
		writeBucket(&b, "Ignored", in.Relevance.Ignored)
		fmt.Fprintf(&b, "Total traces scored: %d\n\n", in.Relevance.Total)
	}

	if in.Quality != nil {
		b.WriteString("QUALITY ASSESSMENT\n------------------\n")
		fmt.Fprintf(&b, "Completeness: %d | Relevance: %d | Coverage: %d\n",
			in.Quality.CompletenessScore, in.Quality.RelevanceScore, in.Quality.CoverageScore)
		fmt.Fprintf(&b, "Status: %s\n\n", in.Quality.Status)
	}

	writeGaps(&b, in)

	b.WriteString("FILE INDEX\n----------\n")
	for _, f := range in.TraceFiles {
		fmt.Fprintf(&b, "  %s\n", f)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Analysis completed: %s\n", w.now().UTC().Format(time.RFC3339))

	name := fmt.Sprintf("master_report_%s.txt", w.now().UTC().Format("20060102_150405"))
	path := filepath.Join(w.outputDir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write master report: %w", err)
	}
	return path, nil
}

func writeBucket(b *strings.Builder, label string, results []models.RelevanceResult) {
	fmt.Fprintf(b, "%s (%d):\n", label, len(results))
	for _, r := range results {
		fmt.Fprintf(b, "  - %s score=%d confidence=%d %s\n",
			r.TraceID, r.RelevanceScore, r.ConfidenceScore, r.Recommendation)
	}
}

// writeGaps lists coverage gaps a reviewer should know about.
func writeGaps(b *strings.Builder, in MasterInput) {
	var gaps []string
	if in.Params != nil && in.Params.TimeFrame == "" {
		gaps = append(gaps, "No time frame was extracted; results may span unrelated days")
	}
	if in.Relevance != nil && in.Relevance.Total == 0 {
		gaps = append(gaps, "No traces were scored; acquisition may have found nothing")
	}
	if in.Relevance != nil && len(in.Relevance.HighlyRelevant) == 0 && in.Relevance.Total > 0 {
		gaps = append(gaps, "No trace scored highly_relevant; direct evidence of the dispute was not found")
	}
	if len(gaps) == 0 {
		return
	}
	b.WriteString("GAPS\n----\n")
	for _, g := range gaps {
		fmt.Fprintf(b, "  ! %s\n", g)
	}
	b.WriteString("\n")
}
