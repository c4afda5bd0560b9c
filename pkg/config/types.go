// Package config loads, merges, and validates the sleuth configuration
// directory (sleuth.yaml + projects.yaml + .env).
package config

import (
	"time"

	"github.com/logsleuth/sleuth/pkg/models"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	configDir string

	LLM      *LLMConfig                          `yaml:"llm"`
	Cache    *CacheConfig                        `yaml:"cache"`
	Loki     *LokiConfig                         `yaml:"loki"`
	Analysis *AnalysisConfig                     `yaml:"analysis"`
	Rules    *RulesConfig                        `yaml:"rules"`
	Database *DatabaseConfig                     `yaml:"database"`
	Projects map[string]models.ProjectDescriptor `yaml:"projects"`
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// Project returns the descriptor for the given project code.
func (c *Config) Project(code string) (models.ProjectDescriptor, bool) {
	p, ok := c.Projects[code]
	return p, ok
}

// LLMConfig selects and configures the chat providers.
type LLMConfig struct {
	// Provider selects the active provider: "local" or "remote".
	Provider string `yaml:"provider"`

	// Local inference daemon settings.
	LocalEndpoint string `yaml:"local_endpoint"`
	LocalModel    string `yaml:"local_model"`

	// Remote OpenAI-compatible gateway settings.
	RemoteEndpoint string `yaml:"remote_endpoint"`
	RemoteAPIKey   string `yaml:"remote_api_key"`
	RemoteModel    string `yaml:"remote_model"`
	RemoteRouteTag string `yaml:"remote_route_tag"`

	// Timeout applied to each chat call.
	Timeout time.Duration `yaml:"timeout"`
}

// Model returns the model ID for the active provider.
func (c *LLMConfig) Model() string {
	if c.Provider == "remote" {
		return c.RemoteModel
	}
	return c.LocalModel
}

// CacheConfig configures the LLM cache gateway.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`

	// L1 in-process tier.
	L1Size int           `yaml:"l1_size"`
	L1TTL  time.Duration `yaml:"l1_ttl"`

	// L2 shared tier (Redis). AutoProbe controls the one-time availability
	// probe on first use.
	L2Enabled   bool   `yaml:"l2_enabled"`
	L2URL       string `yaml:"l2_url"`
	L2AutoProbe bool   `yaml:"l2_auto_probe"`

	// Version strings participate in every cache key. Bumping either
	// invalidates all entries without deletion.
	GatewayVersion string `yaml:"gateway_version"`
	PromptVersion  string `yaml:"prompt_version"`
}

// LokiConfig configures the remote log store client and its result cache.
type LokiConfig struct {
	Endpoint     string `yaml:"endpoint"`
	CacheDir     string `yaml:"cache_dir"`
	CacheEnabled bool   `yaml:"cache_enabled"`

	// BroadTTL applies to range queries; TraceTTL to trace-ID-scoped queries.
	BroadTTL time.Duration `yaml:"broad_ttl"`
	TraceTTL time.Duration `yaml:"trace_ttl"`

	// QueryLimit is the per-query maximum number of returned log lines.
	QueryLimit int `yaml:"query_limit"`
}

// AnalysisConfig configures the analyze and relevance agents.
type AnalysisConfig struct {
	// OutputDir receives per-trace and master report files.
	OutputDir string `yaml:"output_dir"`

	// BatchSize bounds how many trace files one relevance batch processes.
	BatchSize int `yaml:"batch_size"`

	// Workers bounds parallel per-trace analysis/scoring. 1 = serial.
	Workers int `yaml:"workers"`

	// AllowedQueryKeys is the allow-list for extracted query keys.
	AllowedQueryKeys []string `yaml:"allowed_query_keys"`

	// DomainKeywords is the allow-list of recognized business domains.
	DomainKeywords []string `yaml:"domain_keywords"`
}

// RulesConfig configures the context-rule pre-filter.
type RulesConfig struct {
	// CSVPath is the context rules file. A default file is created when missing.
	CSVPath string `yaml:"csv_path"`

	// IgnoreSaturation is the fraction of a trace's lines an ignore pattern
	// must match to short-circuit the trace as ignored.
	IgnoreSaturation float64 `yaml:"ignore_saturation"`
}

// DatabaseConfig configures the optional prompt-template store.
type DatabaseConfig struct {
	// URL is the PostgreSQL DSN. Empty disables DB-backed prompts entirely
	// (built-in templates are used).
	URL string `yaml:"url"`

	// Schema qualifies the prompt_templates table.
	Schema string `yaml:"schema"`

	// PromptTTL bounds how long a resolved template is cached.
	PromptTTL time.Duration `yaml:"prompt_ttl"`
}
