package models

// RelevanceLevel classifies how relevant a trace is to the dispute prompt.
type RelevanceLevel string

const (
	RelevanceHighlyRelevant      RelevanceLevel = "highly_relevant"
	RelevanceRelevant            RelevanceLevel = "relevant"
	RelevancePotentiallyRelevant RelevanceLevel = "potentially_relevant"
	RelevanceNotRelevant         RelevanceLevel = "not_relevant"
	RelevanceIgnored             RelevanceLevel = "ignored"
	RelevanceUnknown             RelevanceLevel = "unknown"
)

// LevelForScore maps a numeric relevance score to its level.
// The "ignored" level is assigned only by the rule pre-filter, never here.
func LevelForScore(score int) RelevanceLevel {
	switch {
	case score >= 80:
		return RelevanceHighlyRelevant
	case score >= 60:
		return RelevanceRelevant
	case score >= 40:
		return RelevancePotentiallyRelevant
	default:
		return RelevanceNotRelevant
	}
}

// ClampScore clamps a score into the [0, 100] range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// RelevanceResult is the outcome of scoring one trace report file.
type RelevanceResult struct {
	FilePath            string         `json:"file_path"`
	TraceID             string         `json:"trace_id"`
	Level               RelevanceLevel `json:"level"`
	RelevanceScore      int            `json:"relevance_score"`
	ConfidenceScore     int            `json:"confidence_score"`
	MatchingElements    []string       `json:"matching_elements,omitempty"`
	NonMatchingElements []string       `json:"non_matching_elements,omitempty"`
	KeyFindings         []string       `json:"key_findings,omitempty"`
	Recommendation      string         `json:"recommendation,omitempty"`
	AppliedRules        []string       `json:"applied_rules,omitempty"`
	IgnoredPatterns     []string       `json:"ignored_patterns,omitempty"`
	ProcessingTimeMS    int64          `json:"processing_time_ms"`
}

// RelevanceSummary aggregates scored results into level buckets.
type RelevanceSummary struct {
	HighlyRelevant      []RelevanceResult `json:"highly_relevant"`
	Relevant            []RelevanceResult `json:"relevant"`
	PotentiallyRelevant []RelevanceResult `json:"potentially_relevant"`
	NotRelevant         []RelevanceResult `json:"not_relevant"`
	Ignored             []RelevanceResult `json:"ignored"`
	Total               int               `json:"total"`
}

// Add buckets a result by its level. Unknown levels land in NotRelevant.
func (s *RelevanceSummary) Add(r RelevanceResult) {
	s.Total++
	switch r.Level {
	case RelevanceHighlyRelevant:
		s.HighlyRelevant = append(s.HighlyRelevant, r)
	case RelevanceRelevant:
		s.Relevant = append(s.Relevant, r)
	case RelevancePotentiallyRelevant:
		s.PotentiallyRelevant = append(s.PotentiallyRelevant, r)
	case RelevanceIgnored:
		s.Ignored = append(s.Ignored, r)
	default:
		s.NotRelevant = append(s.NotRelevant, r)
	}
}
