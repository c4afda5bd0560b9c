package models

// TraceAnalysis is the structured per-trace LLM analysis. The LLM returns it
// as JSON; malformed responses fall back to DefaultTraceAnalysis.
type TraceAnalysis struct {
	RelevanceScore          int      `json:"relevance_score"`
	RequestSummary          string   `json:"request_summary"`
	TransactionOutcome      string   `json:"transaction_outcome"`
	FailurePoint            string   `json:"failure_point"`
	KeyFinding              string   `json:"key_finding"`
	PrimaryIssue            string   `json:"primary_issue"`
	ConfidenceLevel         string   `json:"confidence_level"`
	EvidenceFound           []string `json:"evidence_found"`
	CriticalIndicators      []string `json:"critical_indicators"`
	TimelineSummary         string   `json:"timeline_summary"`
	CustomerClaimAssessment string   `json:"customer_claim_assessment"`
	RootCauseAnalysis       string   `json:"root_cause_analysis"`
	Recommendation          string   `json:"recommendation"`
	TechnicalDetails        string   `json:"technical_details"`
}

// DefaultTraceAnalysis is the fallback skeleton used when the LLM response
// cannot be parsed. Confidence is LOW so downstream consumers can discount it.
func DefaultTraceAnalysis() *TraceAnalysis {
	return &TraceAnalysis{
		RequestSummary:          "Analysis unavailable - LLM response could not be parsed",
		TransactionOutcome:      "UNKNOWN",
		FailurePoint:            "unknown",
		KeyFinding:              "Automated analysis failed; manual review required",
		PrimaryIssue:            "unknown",
		ConfidenceLevel:         "LOW",
		TimelineSummary:         "unavailable",
		CustomerClaimAssessment: "UNVERIFIED",
		RootCauseAnalysis:       "unavailable",
		Recommendation:          "Review the trace entries manually",
		TechnicalDetails:        "unavailable",
	}
}

// MasterSummary is the final LLM synthesis across all analyzed traces.
type MasterSummary struct {
	Verdict   string   `json:"verdict"`
	Summary   string   `json:"summary"`
	KeyTraces []string `json:"key_traces"`
	OpenItems []string `json:"open_items"`
}

// DefaultMasterSummary is the fallback used when the synthesis LLM call fails.
func DefaultMasterSummary() *MasterSummary {
	return &MasterSummary{
		Verdict: "UNDETERMINED",
		Summary: "Automated synthesis unavailable; review the per-trace reports manually",
	}
}

// QualityAssessment is the one-per-request overall quality check.
type QualityAssessment struct {
	CompletenessScore int    `json:"completeness_score"`
	RelevanceScore    int    `json:"relevance_score"`
	CoverageScore     int    `json:"coverage_score"`
	Status            string `json:"status"`
}

// DefaultQualityAssessment is the neutral fallback used on LLM failure.
func DefaultQualityAssessment() *QualityAssessment {
	return &QualityAssessment{
		CompletenessScore: 50,
		RelevanceScore:    50,
		CoverageScore:     50,
		Status:            "Quality assessment unavailable",
	}
}
