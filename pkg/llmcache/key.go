package llmcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/logsleuth/sleuth/pkg/llm"
)

// CacheTypeRelevanceAnalysis triggers report-timestamp stripping during
// canonicalization: report templates inject generation timestamps that change
// on every run without changing semantics.
const CacheTypeRelevanceAnalysis = "relevance_analysis"

// volatileLinePrefixes are stripped from relevance_analysis messages before
// hashing. They come from report templates and vary per run.
var volatileLinePrefixes = []string{
	"Generated:",
	"Analysis completed:",
	"  - Timestamp:",
}

// timeoutOptionKeys identify client-timeout options that do not affect the
// LLM response and are removed before hashing.
var timeoutOptionKeys = map[string]bool{
	"timeout":         true,
	"timeout_seconds": true,
	"request_timeout": true,
}

// keyPayload is the canonical structure hashed into the cache key. Field
// order is fixed; map keys are sorted by encoding/json.
type keyPayload struct {
	CacheType      string         `json:"cache_type"`
	Namespace      string         `json:"namespace"`
	ModelID        string         `json:"model_id"`
	Messages       []llm.Message  `json:"messages"`
	Options        map[string]any `json:"options"`
	GatewayVersion string         `json:"gateway_version"`
	PromptVersion  string         `json:"prompt_version"`
}

// BuildKey derives the deterministic cache key for one gateway call:
// "llm:{cache_type}:{sha256 hex of the canonical payload}".
func BuildKey(cacheType, namespace, modelID string, messages []llm.Message, options map[string]any, gatewayVersion, promptVersion string) string {
	payload := keyPayload{
		CacheType:      cacheType,
		Namespace:      namespace,
		ModelID:        modelID,
		Messages:       canonicalizeMessages(cacheType, messages),
		Options:        filterOptions(options),
		GatewayVersion: gatewayVersion,
		PromptVersion:  promptVersion,
	}

	// encoding/json sorts map keys, so the encoding is stable across runs
	// and processes.
	encoded, err := json.Marshal(payload)
	if err != nil {
		// Marshal of plain strings/maps cannot fail; keep a deterministic
		// degenerate key just in case.
		encoded = []byte(cacheType + ":" + modelID)
	}

	sum := sha256.Sum256(encoded)
	return "llm:" + cacheType + ":" + hex.EncodeToString(sum[:])
}

// KeyPrefix returns the 12-character key digest prefix used in diagnostics
// and logs.
func KeyPrefix(key string) string {
	if idx := strings.LastIndexByte(key, ':'); idx >= 0 {
		key = key[idx+1:]
	}
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

// canonicalizeMessages normalizes message content so benign variation does
// not change the key: newlines unified, surrounding whitespace trimmed, and
// volatile report lines stripped for the relevance_analysis cache type.
func canonicalizeMessages(cacheType string, messages []llm.Message) []llm.Message {
	out := make([]llm.Message, len(messages))
	for i, m := range messages {
		content := strings.ReplaceAll(m.Content, "\r\n", "\n")
		content = strings.ReplaceAll(content, "\r", "\n")
		if cacheType == CacheTypeRelevanceAnalysis {
			content = stripVolatileLines(content)
		}
		out[i] = llm.Message{Role: m.Role, Content: strings.TrimSpace(content)}
	}
	return out
}

func stripVolatileLines(content string) string {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		volatile := false
		for _, prefix := range volatileLinePrefixes {
			if strings.HasPrefix(line, prefix) {
				volatile = true
				break
			}
		}
		if !volatile {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// filterOptions drops client-timeout keys; they do not affect the response.
func filterOptions(options map[string]any) map[string]any {
	filtered := make(map[string]any, len(options))
	for k, v := range options {
		if timeoutOptionKeys[strings.ToLower(k)] {
			continue
		}
		filtered[k] = v
	}
	return filtered
}
