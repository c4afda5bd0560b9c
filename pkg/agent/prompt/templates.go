// Package prompt holds the prompt templates used by the agents and resolves
// them against an optional database-backed override store. Templates use
// $name placeholders expanded by Render.
package prompt

// Template names. Database overrides are keyed by these.
const (
	NameParameterExtraction  = "parameter_extraction"
	NameTraceAnalysis        = "trace_analysis"
	NameTraceEntriesAnalysis = "trace_entries_analysis"
	NameQualityAssessment    = "quality_assessment"
	NameRelevanceScoring     = "relevance_scoring"
	NameMasterSummary        = "master_summary"
)

const parameterExtractionTemplate = `You are a precise parameter extraction engine for a log analysis system.
Extract search parameters from the user's dispute description.

Respond with ONLY a JSON object, no prose, in this exact shape:
{
  "time_frame": "<single date mentioned, normalized to YYYY-MM-DD, or empty string>",
  "domain": "<business domain mentioned, or empty string>",
  "query_keys": ["<token>", ...]
}

Rules:
- query_keys must be drawn ONLY from the recognized tokens below; never invent tokens.
- domain must be drawn ONLY from the recognized domains below, or be empty.
- Dates written as DD.MM.YYYY or DD/MM/YYYY are day-first.

User description:
$user_prompt

Recognized identifier names: $allowed_keys
Recognized domains: $domain_keywords`

const analysisJSONShape = `{
  "relevance_score": 0, "request_summary": "", "transaction_outcome": "",
  "failure_point": "", "key_finding": "", "primary_issue": "",
  "confidence_level": "", "evidence_found": [], "critical_indicators": [],
  "timeline_summary": "", "customer_claim_assessment": "",
  "root_cause_analysis": "", "recommendation": "", "technical_details": ""
}`

const traceAnalysisTemplate = `You are a senior production support engineer performing forensic log analysis.
Analyze the request trace below against the customer's dispute and produce a structured assessment.

Respond with ONLY a JSON object with these exact fields:
` + analysisJSONShape + `

relevance_score is an integer 0-100. confidence_level is one of HIGH, MEDIUM, LOW.
Leave fields you cannot determine as empty strings.

Trace ID: $trace_id
Dispute: $user_prompt
Parameters: $parameters
Statistics: $statistics

Log messages:
$messages

Timeline:
$timeline`

const traceEntriesAnalysisTemplate = `You are a senior production support engineer performing forensic log analysis.
Analyze the raw log entry sequence below against the customer's dispute and produce a structured assessment.

Respond with ONLY a JSON object with these exact fields:
` + analysisJSONShape + `

relevance_score is an integer 0-100. confidence_level is one of HIGH, MEDIUM, LOW.
Leave fields you cannot determine as empty strings.

Trace ID: $trace_id
Dispute: $user_prompt
Parameters: $parameters

Entries:
$messages`

const qualityAssessmentTemplate = `You are a quality reviewer for automated forensic analysis.
Score the overall analysis run below against the dispute.

Respond with ONLY a JSON object:
{
  "completeness_score": 0, "relevance_score": 0,
  "coverage_score": 0, "status": ""
}

All scores are integers 0-100; status is a single line.

Dispute: $user_prompt
Parameters: $parameters

Per-trace findings:
$findings`

const relevanceScoringTemplate = `You are a relevance classifier for dispute log analysis.
Score how relevant the trace below is to the user's dispute, 0-100.

Respond with ONLY a JSON object with these exact fields:
{
  "relevance_score": 0, "confidence_score": 0,
  "matching_elements": [], "non_matching_elements": [],
  "key_findings": [], "domain_match": false, "time_match": false,
  "keyword_matches": [], "important_pattern_matches": [],
  "recommendation": "", "reasoning": ""
}

Both scores are integers 0-100. Scoring guide: 80+ direct evidence of the
disputed transaction; 60-79 same party or adjacent operation; 40-59 same
domain background activity; below 40 unrelated noise.

Dispute: $user_prompt
Parameters: $parameters
Important signals: $important
Known noise: $ignore

Trace $trace_id:
$body`

const masterSummaryTemplate = `You are a senior analyst writing the final summary of a dispute investigation.
Synthesize the per-trace findings below into a single master assessment.

Respond with ONLY a JSON object:
{
  "verdict": "<one sentence answering the dispute>",
  "summary": "<3-8 sentence synthesis>",
  "key_traces": ["<trace id>", ...],
  "open_items": ["<unresolved item>", ...]
}

Dispute: $user_prompt

Per-trace findings:
$findings`

// builtins maps template names to their compiled-in text.
var builtins = map[string]string{
	NameParameterExtraction:  parameterExtractionTemplate,
	NameTraceAnalysis:        traceAnalysisTemplate,
	NameTraceEntriesAnalysis: traceEntriesAnalysisTemplate,
	NameQualityAssessment:    qualityAssessmentTemplate,
	NameRelevanceScoring:     relevanceScoringTemplate,
	NameMasterSummary:        masterSummaryTemplate,
}
