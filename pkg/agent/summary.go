package agent

import (
	"context"
	"log/slog"

	"github.com/logsleuth/sleuth/pkg/agent/prompt"
	"github.com/logsleuth/sleuth/pkg/llm"
	"github.com/logsleuth/sleuth/pkg/llmcache"
	"github.com/logsleuth/sleuth/pkg/models"
)

// CacheTypeMasterSummary namespaces the final synthesis cache entries.
const CacheTypeMasterSummary = "master_summary"

// Summarize synthesizes the per-trace findings into the final master
// assessment. Failures degrade to a default summary.
func (a *Analyzer) Summarize(ctx context.Context, analyses map[string]*models.TraceAnalysis,
	userPrompt string, policy *llmcache.Policy) (*models.MasterSummary, llmcache.Diagnostics) {

	text, err := a.prompts.Resolve(ctx, prompt.NameMasterSummary)
	if err != nil {
		slog.Error("Master summary template unavailable", "error", err)
		return models.DefaultMasterSummary(), llmcache.Diagnostics{}
	}

	rendered := prompt.Render(text, prompt.Vars{
		"user_prompt": userPrompt,
		"findings":    formatFindings(analyses),
	})

	value, diag, err := a.chat(ctx, CacheTypeMasterSummary, rendered, policy)
	if err != nil {
		slog.Warn("Master summary LLM call failed, using default", "error", err)
		return models.DefaultMasterSummary(), diag
	}

	summary := &models.MasterSummary{}
	if decodeErr := llm.DecodeJSON(value, summary); decodeErr != nil {
		slog.Warn("Master summary response unparseable, using default",
			"error", decodeErr, "key_prefix", diag.KeyPrefix)
		return models.DefaultMasterSummary(), diag
	}
	return summary, diag
}
