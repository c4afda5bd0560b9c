package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/logsleuth/sleuth/pkg/models"
)

// sleuthYAML mirrors the sleuth.yaml file structure.
type sleuthYAML struct {
	LLM      *LLMConfig      `yaml:"llm"`
	Cache    *CacheConfig    `yaml:"cache"`
	Loki     *LokiConfig     `yaml:"loki"`
	Analysis *AnalysisConfig `yaml:"analysis"`
	Rules    *RulesConfig    `yaml:"rules"`
	Database *DatabaseConfig `yaml:"database"`
}

// projectsYAML mirrors the projects.yaml file structure.
type projectsYAML struct {
	Projects map[string]models.ProjectDescriptor `yaml:"projects"`
}

// Initialize loads, merges, and validates configuration from configDir.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load sleuth.yaml and projects.yaml
//  2. Expand environment variables ({{.VAR}} template syntax)
//  3. Merge user values over built-in defaults
//  4. Validate the result
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized",
		"projects", len(cfg.Projects),
		"llm_provider", cfg.LLM.Provider,
		"cache_enabled", cfg.Cache.Enabled)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	var user sleuthYAML
	if err := loadYAML(configDir, "sleuth.yaml", &user); err != nil {
		return nil, NewLoadError("sleuth.yaml", err)
	}

	var projects projectsYAML
	if err := loadYAML(configDir, "projects.yaml", &projects); err != nil {
		return nil, NewLoadError("projects.yaml", err)
	}

	cfg := DefaultConfig()
	cfg.configDir = configDir
	cfg.Projects = projects.Projects
	if cfg.Projects == nil {
		cfg.Projects = make(map[string]models.ProjectDescriptor)
	}

	// Backfill project codes from map keys when omitted in YAML.
	for code, p := range cfg.Projects {
		if p.Code == "" {
			p.Code = code
			cfg.Projects[code] = p
		}
	}

	// Merge user sections over defaults; non-zero user values win.
	sections := []struct {
		dst, src any
	}{
		{cfg.LLM, user.LLM},
		{cfg.Cache, user.Cache},
		{cfg.Loki, user.Loki},
		{cfg.Analysis, user.Analysis},
		{cfg.Rules, user.Rules},
		{cfg.Database, user.Database},
	}
	for _, s := range sections {
		if s.src == nil || isNilPointer(s.src) {
			continue
		}
		if err := mergo.Merge(s.dst, s.src, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge configuration section: %w", err)
		}
	}

	return cfg, nil
}

func isNilPointer(v any) bool {
	switch p := v.(type) {
	case *LLMConfig:
		return p == nil
	case *CacheConfig:
		return p == nil
	case *LokiConfig:
		return p == nil
	case *AnalysisConfig:
		return p == nil
	case *RulesConfig:
		return p == nil
	case *DatabaseConfig:
		return p == nil
	}
	return false
}

func loadYAML(configDir, filename string, target any) error {
	path := filepath.Join(configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}
