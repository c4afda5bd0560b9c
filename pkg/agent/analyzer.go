package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/logsleuth/sleuth/pkg/agent/prompt"
	"github.com/logsleuth/sleuth/pkg/llm"
	"github.com/logsleuth/sleuth/pkg/llmcache"
	"github.com/logsleuth/sleuth/pkg/models"
)

// Cache types for the analysis calls.
const (
	CacheTypeTraceAnalysis        = "trace_analysis"
	CacheTypeTraceEntriesAnalysis = "trace_entries_analysis"
	CacheTypeQualityAssessment    = "quality_assessment"
)

// Sampling bounds for analysis prompts.
const (
	maxSampledMessages = 10
	maxSampledTimeline = 15
	minMessageLength   = 20
	analysisTTL        = 12 * time.Hour
)

// Analyzer produces per-trace forensic analyses and the per-request quality
// assessment. LLM failures and unparseable responses degrade to default
// skeletons; the analyzer never returns an error for those.
type Analyzer struct {
	provider llm.Provider
	modelID  string
	prompts  *prompt.Store
	gateway  *llmcache.Gateway
	timeout  time.Duration
}

// NewAnalyzer wires the analysis agent.
func NewAnalyzer(provider llm.Provider, modelID string, prompts *prompt.Store,
	gateway *llmcache.Gateway, timeout time.Duration) *Analyzer {
	return &Analyzer{
		provider: provider,
		modelID:  modelID,
		prompts:  prompts,
		gateway:  gateway,
		timeout:  timeout,
	}
}

// AnalyzeBundle analyzes one trace bundle. fromEntries selects the raw-entry
// prompt path used when bundles come straight from the remote log store
// without intermediate files.
func (a *Analyzer) AnalyzeBundle(ctx context.Context, bundle *models.TraceBundle,
	userPrompt string, params *models.SearchParameters, fromEntries bool,
	policy *llmcache.Policy) (*models.TraceAnalysis, llmcache.Diagnostics) {

	templateName, cacheType := prompt.NameTraceAnalysis, CacheTypeTraceAnalysis
	if fromEntries {
		templateName, cacheType = prompt.NameTraceEntriesAnalysis, CacheTypeTraceEntriesAnalysis
	}

	text, err := a.prompts.Resolve(ctx, templateName)
	if err != nil {
		slog.Error("Trace analysis template unavailable", "trace_id", bundle.TraceID, "error", err)
		return models.DefaultTraceAnalysis(), llmcache.Diagnostics{}
	}

	rendered := prompt.Render(text, prompt.Vars{
		"trace_id":    bundle.TraceID,
		"user_prompt": userPrompt,
		"parameters":  formatParameters(params),
		"statistics":  bundleStatistics(bundle),
		"messages":    strings.Join(SampleMessages(bundle, maxSampledMessages), "\n"),
		"timeline":    strings.Join(SampleTimeline(bundle, maxSampledTimeline), "\n"),
	})

	value, diag, err := a.chat(ctx, cacheType, rendered, policy)
	if err != nil {
		slog.Warn("Trace analysis LLM call failed, using default skeleton",
			"trace_id", bundle.TraceID, "error", err)
		return models.DefaultTraceAnalysis(), diag
	}

	analysis := &models.TraceAnalysis{}
	if decodeErr := llm.DecodeJSON(value, analysis); decodeErr != nil {
		slog.Warn("Trace analysis response unparseable, using default skeleton",
			"trace_id", bundle.TraceID, "error", decodeErr, "key_prefix", diag.KeyPrefix)
		return models.DefaultTraceAnalysis(), diag
	}
	analysis.RelevanceScore = models.ClampScore(analysis.RelevanceScore)
	return analysis, diag
}

// AssessQuality runs the once-per-request quality check over the per-trace
// findings.
func (a *Analyzer) AssessQuality(ctx context.Context, analyses map[string]*models.TraceAnalysis,
	userPrompt string, params *models.SearchParameters,
	policy *llmcache.Policy) (*models.QualityAssessment, llmcache.Diagnostics) {

	text, err := a.prompts.Resolve(ctx, prompt.NameQualityAssessment)
	if err != nil {
		slog.Error("Quality assessment template unavailable", "error", err)
		return models.DefaultQualityAssessment(), llmcache.Diagnostics{}
	}

	rendered := prompt.Render(text, prompt.Vars{
		"user_prompt": userPrompt,
		"parameters":  formatParameters(params),
		"findings":    formatFindings(analyses),
	})

	value, diag, err := a.chat(ctx, CacheTypeQualityAssessment, rendered, policy)
	if err != nil {
		slog.Warn("Quality assessment LLM call failed, using neutral default", "error", err)
		return models.DefaultQualityAssessment(), diag
	}

	qa := &models.QualityAssessment{}
	if decodeErr := llm.DecodeJSON(value, qa); decodeErr != nil {
		slog.Warn("Quality assessment response unparseable, using neutral default",
			"error", decodeErr, "key_prefix", diag.KeyPrefix)
		return models.DefaultQualityAssessment(), diag
	}
	qa.CompletenessScore = models.ClampScore(qa.CompletenessScore)
	qa.RelevanceScore = models.ClampScore(qa.RelevanceScore)
	qa.CoverageScore = models.ClampScore(qa.CoverageScore)
	return qa, diag
}

// chat sends one rendered prompt through the gateway.
func (a *Analyzer) chat(ctx context.Context, cacheType, rendered string,
	policy *llmcache.Policy) (string, llmcache.Diagnostics, error) {
	messages := []llm.Message{{Role: llm.RoleUser, Content: rendered}}
	return a.gateway.Cached(ctx, llmcache.CachedInput{
		CacheType:  cacheType,
		ModelID:    a.modelID,
		Messages:   messages,
		DefaultTTL: analysisTTL,
		Policy:     policy,
		Compute: func(ctx context.Context) (string, bool, error) {
			resp, err := a.provider.Chat(ctx, a.modelID, messages, &llm.Options{Timeout: a.timeout})
			if err != nil {
				return "", false, err
			}
			return resp.Message.Content, true, nil
		},
	})
}

// SampleMessages returns up to limit non-trivial messages from the bundle.
// Trivial lines (length <= 20) carry no analytical signal and are skipped.
func SampleMessages(bundle *models.TraceBundle, limit int) []string {
	var out []string
	for i := range bundle.Entries {
		msg := strings.TrimSpace(bundle.Entries[i].Message)
		if len(msg) <= minMessageLength {
			continue
		}
		out = append(out, msg)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// SampleTimeline formats up to limit timeline events as prompt lines.
func SampleTimeline(bundle *models.TraceBundle, limit int) []string {
	var out []string
	for _, ev := range bundle.Timeline {
		ts := "unknown"
		if ev.Timestamp != nil {
			ts = ev.Timestamp.UTC().Format(time.RFC3339)
		}
		out = append(out, fmt.Sprintf("%d. [%s] %s %s", ev.Seq, ts, ev.Level, ev.OperationSummary))
		if len(out) >= limit {
			break
		}
	}
	return out
}

func formatParameters(params *models.SearchParameters) string {
	if params == nil {
		return "(none)"
	}
	return fmt.Sprintf("time_frame=%s domain=%s query_keys=%s",
		orNone(params.TimeFrame), orNone(params.Domain), prompt.FormatList(params.QueryKeys))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// bundleStatistics summarizes a bundle for the analysis prompt.
func bundleStatistics(bundle *models.TraceBundle) string {
	span := "unknown"
	if first, last, ok := bundle.TimeSpan(); ok {
		span = fmt.Sprintf("%s .. %s",
			first.UTC().Format(time.RFC3339), last.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("entries=%d sources=%d span=%s levels=%s",
		bundle.TotalEntries, len(bundle.SourceFiles), span,
		prompt.FormatList(bundle.Levels()))
}

// formatFindings renders per-trace findings in deterministic trace-ID order
// so repeated runs hit the same cache key.
func formatFindings(analyses map[string]*models.TraceAnalysis) string {
	if len(analyses) == 0 {
		return "(none)"
	}
	ids := make([]string, 0, len(analyses))
	for id := range analyses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		an := analyses[id]
		fmt.Fprintf(&b, "- %s: score=%d outcome=%s finding=%s\n",
			id, an.RelevanceScore, orNone(an.TransactionOutcome), orNone(an.KeyFinding))
	}
	return strings.TrimRight(b.String(), "\n")
}
