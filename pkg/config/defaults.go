package config

import "time"

// Built-in defaults. User YAML overrides non-zero fields via mergo during load.

// DefaultQueryKeys is the built-in query-key allow-list. Extracted keys not
// on this list are dropped by the parameter agent.
var DefaultQueryKeys = []string{
	"bkash", "nagad", "rocket", "upay", "npsb", "beftn", "rtgs",
	"account_number", "card_number", "transaction_id", "reference_number",
	"mobile_number", "error", "timeout", "failed", "reversal",
}

// DefaultDomainKeywords is the built-in list of recognized business domains.
var DefaultDomainKeywords = []string{
	"BKASH", "NAGAD", "ROCKET", "UPAY", "NPSB", "BEFTN", "RTGS", "MFS", "CARD", "ATM",
}

// DefaultConfig returns the built-in configuration. All fields are
// overridable from sleuth.yaml.
func DefaultConfig() *Config {
	return &Config{
		LLM: &LLMConfig{
			Provider:      "local",
			LocalEndpoint: "http://localhost:11434/api/chat",
			LocalModel:    "qwen2.5:14b",
			RemoteModel:   "gpt-4o-mini",
			Timeout:       120 * time.Second,
		},
		Cache: &CacheConfig{
			Enabled:        true,
			Namespace:      "sleuth",
			L1Size:         512,
			L1TTL:          30 * time.Minute,
			L2Enabled:      false,
			L2AutoProbe:    true,
			GatewayVersion: "v1",
			PromptVersion:  "v1",
		},
		Loki: &LokiConfig{
			CacheDir:     "./cache/loki",
			CacheEnabled: true,
			BroadTTL:     4 * time.Hour,
			TraceTTL:     6 * time.Hour,
			QueryLimit:   5000,
		},
		Analysis: &AnalysisConfig{
			OutputDir:        "./reports",
			BatchSize:        10,
			Workers:          4,
			AllowedQueryKeys: DefaultQueryKeys,
			DomainKeywords:   DefaultDomainKeywords,
		},
		Rules: &RulesConfig{
			CSVPath:          "./config/context_rules.csv",
			IgnoreSaturation: 0.30,
		},
		Database: &DatabaseConfig{
			Schema:    "public",
			PromptTTL: 10 * time.Minute,
		},
	}
}
