package config

import (
	"fmt"

	"github.com/logsleuth/sleuth/pkg/models"
)

// validate performs a single validation pass over the merged configuration
// and reports every problem found, not just the first.
func validate(cfg *Config) error {
	var problems []string

	switch cfg.LLM.Provider {
	case "local":
		if cfg.LLM.LocalEndpoint == "" {
			problems = append(problems, "llm.local_endpoint is required for provider=local")
		}
		if cfg.LLM.LocalModel == "" {
			problems = append(problems, "llm.local_model is required for provider=local")
		}
	case "remote":
		if cfg.LLM.RemoteEndpoint == "" {
			problems = append(problems, "llm.remote_endpoint is required for provider=remote")
		}
		if cfg.LLM.RemoteAPIKey == "" {
			problems = append(problems, "llm.remote_api_key is required for provider=remote")
		}
		if cfg.LLM.RemoteModel == "" {
			problems = append(problems, "llm.remote_model is required for provider=remote")
		}
	default:
		problems = append(problems, fmt.Sprintf("llm.provider must be \"local\" or \"remote\", got %q", cfg.LLM.Provider))
	}

	if cfg.Cache.L1Size <= 0 {
		problems = append(problems, "cache.l1_size must be positive")
	}
	if cfg.Cache.L2Enabled && cfg.Cache.L2URL == "" {
		problems = append(problems, "cache.l2_url is required when cache.l2_enabled")
	}
	if cfg.Cache.GatewayVersion == "" || cfg.Cache.PromptVersion == "" {
		problems = append(problems, "cache.gateway_version and cache.prompt_version must be set")
	}

	if cfg.Rules.IgnoreSaturation <= 0 || cfg.Rules.IgnoreSaturation > 1 {
		problems = append(problems, "rules.ignore_saturation must be in (0, 1]")
	}

	if cfg.Analysis.Workers < 1 {
		problems = append(problems, "analysis.workers must be at least 1")
	}
	if cfg.Analysis.BatchSize < 1 {
		problems = append(problems, "analysis.batch_size must be at least 1")
	}

	for code, p := range cfg.Projects {
		switch p.LogSourceKind {
		case models.LogSourceFile, models.LogSourceRemote:
		default:
			problems = append(problems, fmt.Sprintf("projects.%s.log_source_kind must be \"file\" or \"remote\"", code))
			continue
		}
		if len(p.Environments) == 0 {
			problems = append(problems, fmt.Sprintf("projects.%s has no environments", code))
		}
		for envCode, env := range p.Environments {
			if p.LogSourceKind == models.LogSourceFile && env.LogRoot == "" {
				problems = append(problems, fmt.Sprintf("projects.%s.environments.%s.log_root is required for file projects", code, envCode))
			}
			if p.LogSourceKind == models.LogSourceRemote && env.Namespace == "" {
				problems = append(problems, fmt.Sprintf("projects.%s.environments.%s.namespace is required for remote projects", code, envCode))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
