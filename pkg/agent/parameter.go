// Package agent implements the LLM-driven pipeline agents: parameter
// extraction, planning, per-trace analysis, and relevance scoring. Every LLM
// call is routed through the cache gateway; every response is parsed
// tolerantly with a typed fallback.
package agent

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/logsleuth/sleuth/pkg/agent/prompt"
	"github.com/logsleuth/sleuth/pkg/llm"
	"github.com/logsleuth/sleuth/pkg/llmcache"
	"github.com/logsleuth/sleuth/pkg/models"
)

// CacheTypeParameterExtraction namespaces parameter extraction cache entries.
const CacheTypeParameterExtraction = "parameter_extraction"

// parameterTTL bounds how long an extraction result stays cached. Prompts
// repeat often during an investigation session; a day is plenty.
const parameterTTL = 24 * time.Hour

// dayFirstDateRegex matches DD.MM.YYYY-style dates (also / and - separators).
var dayFirstDateRegex = regexp.MustCompile(`\b(\d{1,2})[./-](\d{1,2})[./-](\d{4})\b`)

// isoDateRegex matches YYYY-MM-DD dates.
var isoDateRegex = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)

// longNumericIDRegex matches transaction-style numeric identifiers.
var longNumericIDRegex = regexp.MustCompile(`\b\d{8,}\b`)

// ParameterAgent extracts SearchParameters from a natural-language dispute
// prompt (LLM-first, regex fallback).
type ParameterAgent struct {
	provider       llm.Provider
	modelID        string
	prompts        *prompt.Store
	gateway        *llmcache.Gateway
	allowedKeys    []string
	domainKeywords []string
	timeout        time.Duration
}

// NewParameterAgent wires the extraction agent.
func NewParameterAgent(provider llm.Provider, modelID string, prompts *prompt.Store,
	gateway *llmcache.Gateway, allowedKeys, domainKeywords []string, timeout time.Duration) *ParameterAgent {
	return &ParameterAgent{
		provider:       provider,
		modelID:        modelID,
		prompts:        prompts,
		gateway:        gateway,
		allowedKeys:    allowedKeys,
		domainKeywords: domainKeywords,
		timeout:        timeout,
	}
}

// rawParameters is the LLM's JSON shape before post-processing.
type rawParameters struct {
	TimeFrame string   `json:"time_frame"`
	Domain    string   `json:"domain"`
	QueryKeys []string `json:"query_keys"`
}

// Extract turns a dispute prompt into SearchParameters. An LLM failure or
// unparseable response degrades to the regex fallback, never to an error:
// the planning gate decides whether the result is sufficient.
func (a *ParameterAgent) Extract(ctx context.Context, userPrompt string, policy *llmcache.Policy) (*models.SearchParameters, llmcache.Diagnostics, error) {
	text, err := a.prompts.Resolve(ctx, prompt.NameParameterExtraction)
	if err != nil {
		return nil, llmcache.Diagnostics{}, err
	}
	rendered := prompt.Render(text, prompt.Vars{
		"user_prompt":     userPrompt,
		"allowed_keys":    prompt.FormatList(a.allowedKeys),
		"domain_keywords": prompt.FormatList(a.domainKeywords),
	})

	messages := []llm.Message{{Role: llm.RoleUser, Content: rendered}}
	value, diag, err := a.gateway.Cached(ctx, llmcache.CachedInput{
		CacheType:  CacheTypeParameterExtraction,
		ModelID:    a.modelID,
		Messages:   messages,
		DefaultTTL: parameterTTL,
		Policy:     policy,
		Compute: func(ctx context.Context) (string, bool, error) {
			resp, chatErr := a.provider.Chat(ctx, a.modelID, messages, &llm.Options{Timeout: a.timeout})
			if chatErr != nil {
				return "", false, chatErr
			}
			return resp.Message.Content, true, nil
		},
	})

	var raw rawParameters
	switch {
	case err != nil:
		slog.Warn("Parameter extraction LLM call failed, using regex fallback", "error", err)
		raw = a.regexFallback(userPrompt)
	default:
		if decodeErr := llm.DecodeJSON(value, &raw); decodeErr != nil {
			slog.Warn("Parameter extraction response unparseable, using regex fallback",
				"error", decodeErr, "key_prefix", diag.KeyPrefix)
			raw = a.regexFallback(userPrompt)
		}
	}

	params := a.postProcess(userPrompt, raw)
	return params, diag, nil
}

// postProcess normalizes the date, filters query keys against the allow-list,
// and merges domain keywords the prompt mentions literally.
func (a *ParameterAgent) postProcess(userPrompt string, raw rawParameters) *models.SearchParameters {
	params := &models.SearchParameters{
		TimeFrame: NormalizeDate(raw.TimeFrame),
		Domain:    strings.ToUpper(strings.TrimSpace(raw.Domain)),
	}

	seen := make(map[string]bool)
	addKey := func(key string) {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" || seen[key] {
			return
		}
		if !a.keyAllowed(key) {
			return
		}
		seen[key] = true
		params.QueryKeys = append(params.QueryKeys, key)
	}
	for _, k := range raw.QueryKeys {
		addKey(k)
	}

	// Literal mentions beat the LLM: any allow-listed token or domain keyword
	// present verbatim in the prompt is included even when the model missed it.
	lowerPrompt := strings.ToLower(userPrompt)
	for _, k := range a.allowedKeys {
		if strings.Contains(lowerPrompt, strings.ToLower(k)) {
			addKey(k)
		}
	}
	for _, kw := range a.domainKeywords {
		if strings.Contains(lowerPrompt, strings.ToLower(kw)) {
			params.Domain = mergeDomain(params.Domain, kw)
		}
	}

	if params.TimeFrame == "" {
		params.TimeFrame = firstDateIn(userPrompt)
	}
	return params
}

// keyAllowed reports whether a query key passes the allow-list. Long numeric
// identifiers (transaction IDs etc.) are always permitted as literal search
// keys.
func (a *ParameterAgent) keyAllowed(key string) bool {
	if isAllDigits(key) && len(key) >= 8 {
		return true
	}
	for _, allowed := range a.allowedKeys {
		if strings.EqualFold(allowed, key) {
			return true
		}
	}
	return false
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// regexFallback scans the prompt directly when the LLM path fails: dates,
// domain keywords, and long numeric identifiers.
func (a *ParameterAgent) regexFallback(userPrompt string) rawParameters {
	raw := rawParameters{TimeFrame: firstDateIn(userPrompt)}
	lowerPrompt := strings.ToLower(userPrompt)
	for _, kw := range a.domainKeywords {
		if strings.Contains(lowerPrompt, strings.ToLower(kw)) {
			raw.Domain = mergeDomain(raw.Domain, kw)
		}
	}
	raw.QueryKeys = longNumericIDRegex.FindAllString(userPrompt, -1)
	return raw
}

// firstDateIn returns the first date mentioned in the text, normalized to
// YYYY-MM-DD, or "".
func firstDateIn(text string) string {
	if m := isoDateRegex.FindString(text); m != "" {
		return NormalizeDate(m)
	}
	if m := dayFirstDateRegex.FindString(text); m != "" {
		return NormalizeDate(m)
	}
	return ""
}

// NormalizeDate parses a free-form date with day-first precedence and returns
// it as YYYY-MM-DD, or "" when unparseable.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t, err := dateparse.ParseAny(s, dateparse.PreferMonthFirst(false))
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// mergeDomain adds a keyword to a comma-joined uppercase domain set.
// ApplyDomainHint folds a caller-supplied domain into extracted parameters.
// The hint leads; extracted values are kept as secondary context.
func ApplyDomainHint(params *models.SearchParameters, hint string) {
	hint = strings.ToUpper(strings.TrimSpace(hint))
	if hint == "" {
		return
	}
	merged := hint
	for _, part := range strings.Split(params.Domain, ",") {
		merged = mergeDomain(merged, part)
	}
	params.Domain = merged
}

func mergeDomain(domain, keyword string) string {
	keyword = strings.ToUpper(strings.TrimSpace(keyword))
	if keyword == "" {
		return domain
	}
	if domain == "" {
		return keyword
	}
	for _, existing := range strings.Split(domain, ",") {
		if strings.TrimSpace(existing) == keyword {
			return domain
		}
	}
	return domain + "," + keyword
}
