package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/logsleuth/sleuth/pkg/agent/prompt"
	"github.com/logsleuth/sleuth/pkg/llm"
	"github.com/logsleuth/sleuth/pkg/llmcache"
	"github.com/logsleuth/sleuth/pkg/models"
	"github.com/logsleuth/sleuth/pkg/report"
	"github.com/logsleuth/sleuth/pkg/rules"
)

// maxRelevanceBody bounds how much of a trace report is embedded in the
// scoring prompt.
const maxRelevanceBody = 8000

const relevanceTTL = 12 * time.Hour

// RelevanceConfig tunes the relevance analyzer.
type RelevanceConfig struct {
	// Rules are the loaded context rules.
	Rules []rules.ContextRule

	// IgnoreSaturation is the fraction of a trace's lines an ignore pattern
	// must reach to short-circuit the trace as ignored.
	IgnoreSaturation float64

	// BatchSize bounds files per batch; Workers bounds parallel scoring.
	BatchSize int
	Workers   int
}

// RelevanceAnalyzer classifies trace report files against the dispute:
// rule-driven pre-filter first, LLM scoring for the rest.
type RelevanceAnalyzer struct {
	provider llm.Provider
	modelID  string
	prompts  *prompt.Store
	gateway  *llmcache.Gateway
	cfg      RelevanceConfig
	timeout  time.Duration
}

// NewRelevanceAnalyzer wires the relevance agent.
func NewRelevanceAnalyzer(provider llm.Provider, modelID string, prompts *prompt.Store,
	gateway *llmcache.Gateway, cfg RelevanceConfig, timeout time.Duration) *RelevanceAnalyzer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.IgnoreSaturation <= 0 {
		cfg.IgnoreSaturation = 0.30
	}
	return &RelevanceAnalyzer{
		provider: provider,
		modelID:  modelID,
		prompts:  prompts,
		gateway:  gateway,
		cfg:      cfg,
		timeout:  timeout,
	}
}

// rawRelevance is the LLM's scoring JSON shape.
type rawRelevance struct {
	RelevanceScore          int      `json:"relevance_score"`
	ConfidenceScore         int      `json:"confidence_score"`
	MatchingElements        []string `json:"matching_elements"`
	NonMatchingElements     []string `json:"non_matching_elements"`
	KeyFindings             []string `json:"key_findings"`
	DomainMatch             bool     `json:"domain_match"`
	TimeMatch               bool     `json:"time_match"`
	KeywordMatches          []string `json:"keyword_matches"`
	ImportantPatternMatches []string `json:"important_pattern_matches"`
	Recommendation          string   `json:"recommendation"`
	Reasoning               string   `json:"reasoning"`
}

// ScoreReports classifies every report file and aggregates the results into
// level buckets. Files are processed in batches over a bounded worker pool.
func (r *RelevanceAnalyzer) ScoreReports(ctx context.Context, files []string,
	userPrompt string, params *models.SearchParameters,
	policy *llmcache.Policy) (*models.RelevanceSummary, error) {

	selected := rules.Select(r.cfg.Rules, domainOf(params), queryKeysOf(params))
	summary := &models.RelevanceSummary{}
	var mu sync.Mutex

	for start := 0; start < len(files); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(files))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Workers)
		for _, file := range files[start:end] {
			g.Go(func() error {
				result := r.scoreFile(gctx, file, userPrompt, params, selected, policy)
				mu.Lock()
				summary.Add(result)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// scoreFile classifies one report file. Read failures and LLM failures yield
// a not_relevant result with zero confidence rather than an error.
func (r *RelevanceAnalyzer) scoreFile(ctx context.Context, file, userPrompt string,
	params *models.SearchParameters, selected []rules.ContextRule,
	policy *llmcache.Policy) models.RelevanceResult {

	started := time.Now()
	result := models.RelevanceResult{
		FilePath:     file,
		TraceID:      report.TraceIDFromFilename(file),
		AppliedRules: rules.RuleIDs(selected),
	}
	finish := func() models.RelevanceResult {
		result.ProcessingTimeMS = time.Since(started).Milliseconds()
		return result
	}

	data, err := os.ReadFile(file)
	if err != nil {
		slog.Warn("Relevance scoring could not read report file", "file", file, "error", err)
		result.Level = models.RelevanceNotRelevant
		result.Recommendation = "Report file unreadable; re-run analysis"
		return finish()
	}
	body := string(data)

	// Phase 1: saturation pre-filter, no LLM call.
	if pattern, saturated := rules.SaturatedIgnore(body, selected, r.cfg.IgnoreSaturation); saturated {
		result.Level = models.RelevanceIgnored
		result.IgnoredPatterns = []string{pattern}
		result.Recommendation = fmt.Sprintf("Dominated by known-noise pattern %q", pattern)
		return finish()
	}

	// Phase 2: LLM scoring.
	raw, ok := r.scoreWithLLM(ctx, result.TraceID, body, userPrompt, params, selected, policy)
	if !ok {
		result.Level = models.RelevanceUnknown
		result.Recommendation = "Automated scoring unavailable; review manually"
		return finish()
	}

	result.RelevanceScore = models.ClampScore(raw.RelevanceScore)
	result.ConfidenceScore = models.ClampScore(raw.ConfidenceScore)
	result.Level = models.LevelForScore(result.RelevanceScore)
	result.MatchingElements = raw.MatchingElements
	result.NonMatchingElements = raw.NonMatchingElements
	result.KeyFindings = raw.KeyFindings
	result.Recommendation = raw.Recommendation
	result.IgnoredPatterns = rules.IgnorePatterns(selected)
	return finish()
}

func (r *RelevanceAnalyzer) scoreWithLLM(ctx context.Context, traceID, body, userPrompt string,
	params *models.SearchParameters, selected []rules.ContextRule,
	policy *llmcache.Policy) (*rawRelevance, bool) {

	text, err := r.prompts.Resolve(ctx, prompt.NameRelevanceScoring)
	if err != nil {
		slog.Error("Relevance template unavailable", "trace_id", traceID, "error", err)
		return nil, false
	}

	if len(body) > maxRelevanceBody {
		body = body[:maxRelevanceBody]
	}
	rendered := prompt.Render(text, prompt.Vars{
		"user_prompt": userPrompt,
		"parameters":  formatParameters(params),
		"important":   prompt.FormatList(rules.ImportantPatterns(selected)),
		"ignore":      prompt.FormatList(rules.IgnorePatterns(selected)),
		"trace_id":    traceID,
		"body":        body,
	})

	messages := []llm.Message{{Role: llm.RoleUser, Content: rendered}}
	value, diag, err := r.gateway.Cached(ctx, llmcache.CachedInput{
		CacheType:  llmcache.CacheTypeRelevanceAnalysis,
		ModelID:    r.modelID,
		Messages:   messages,
		DefaultTTL: relevanceTTL,
		Policy:     policy,
		Compute: func(ctx context.Context) (string, bool, error) {
			resp, chatErr := r.provider.Chat(ctx, r.modelID, messages, &llm.Options{Timeout: r.timeout})
			if chatErr != nil {
				return "", false, chatErr
			}
			return resp.Message.Content, true, nil
		},
	})
	if err != nil {
		slog.Warn("Relevance LLM call failed", "trace_id", traceID, "error", err)
		return nil, false
	}

	raw := &rawRelevance{}
	if decodeErr := llm.DecodeJSON(value, raw); decodeErr != nil {
		slog.Warn("Relevance response unparseable", "trace_id", traceID,
			"error", decodeErr, "key_prefix", diag.KeyPrefix)
		return nil, false
	}
	return raw, true
}

// Describe renders a relevance summary as a short natural-language string
// for client display.
func Describe(s *models.RelevanceSummary) string {
	if s == nil || s.Total == 0 {
		return "No traces were scored."
	}
	parts := []string{fmt.Sprintf("Scored %d trace(s)", s.Total)}
	if n := len(s.HighlyRelevant); n > 0 {
		parts = append(parts, fmt.Sprintf("%d highly relevant", n))
	}
	if n := len(s.Relevant); n > 0 {
		parts = append(parts, fmt.Sprintf("%d relevant", n))
	}
	if n := len(s.PotentiallyRelevant); n > 0 {
		parts = append(parts, fmt.Sprintf("%d potentially relevant", n))
	}
	if n := len(s.NotRelevant); n > 0 {
		parts = append(parts, fmt.Sprintf("%d not relevant", n))
	}
	if n := len(s.Ignored); n > 0 {
		parts = append(parts, fmt.Sprintf("%d ignored by context rules", n))
	}
	return strings.Join(parts, ", ") + "."
}

func domainOf(params *models.SearchParameters) string {
	if params == nil {
		return ""
	}
	return params.Domain
}

func queryKeysOf(params *models.SearchParameters) []string {
	if params == nil {
		return nil
	}
	return params.QueryKeys
}
