// Sleuth server: receives natural-language dispute prompts, locates the
// matching logs, and streams per-trace forensic analysis over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/logsleuth/sleuth/pkg/agent"
	"github.com/logsleuth/sleuth/pkg/agent/prompt"
	"github.com/logsleuth/sleuth/pkg/api"
	"github.com/logsleuth/sleuth/pkg/config"
	"github.com/logsleuth/sleuth/pkg/llm"
	"github.com/logsleuth/sleuth/pkg/llmcache"
	"github.com/logsleuth/sleuth/pkg/loki"
	"github.com/logsleuth/sleuth/pkg/pipeline"
	"github.com/logsleuth/sleuth/pkg/report"
	"github.com/logsleuth/sleuth/pkg/rules"
	"github.com/logsleuth/sleuth/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env from the config directory before anything reads the environment.
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	slog.Info("Starting sleuth",
		"version", version.Full(),
		"http_port", httpPort,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize the LLM cache gateway
	l2URL := ""
	if cfg.Cache.L2Enabled {
		l2URL = cfg.Cache.L2URL
	}
	gateway, err := llmcache.New(llmcache.Config{
		Enabled:        cfg.Cache.Enabled,
		Namespace:      cfg.Cache.Namespace,
		L1Size:         cfg.Cache.L1Size,
		L1TTL:          cfg.Cache.L1TTL,
		GatewayVersion: cfg.Cache.GatewayVersion,
		PromptVersion:  cfg.Cache.PromptVersion,
	}, l2URL, cfg.Cache.L2AutoProbe)
	if err != nil {
		slog.Error("Failed to create cache gateway", "error", err)
		os.Exit(1)
	}
	slog.Info("Cache gateway initialized",
		"enabled", cfg.Cache.Enabled, "l2", cfg.Cache.L2Enabled)

	// 3. Create the LLM provider
	var provider llm.Provider
	if cfg.LLM.Provider == "remote" {
		provider = llm.NewOpenAIProvider(cfg.LLM.RemoteEndpoint, cfg.LLM.RemoteAPIKey,
			cfg.LLM.RemoteRouteTag, cfg.LLM.Timeout)
	} else {
		provider = llm.NewLocalProvider(cfg.LLM.LocalEndpoint, cfg.LLM.Timeout)
	}
	if !provider.IsAvailable(ctx) {
		// Non-fatal: per-trace analyses degrade to default skeletons.
		slog.Warn("LLM provider not reachable at startup", "provider", provider.Name())
	}
	slog.Info("LLM provider initialized", "provider", provider.Name(), "model", cfg.LLM.Model())

	// 4. Initialize the prompt template store (built-ins when no database)
	promptStore, err := prompt.NewStore(ctx, cfg.Database.URL, cfg.Database.Schema, cfg.Database.PromptTTL)
	if err != nil {
		slog.Error("Failed to create prompt store", "error", err)
		os.Exit(1)
	}
	defer promptStore.Close()

	// 5. Create the remote log store client
	lokiClient, err := loki.NewClient(loki.ClientConfig{
		Endpoint:     cfg.Loki.Endpoint,
		CacheDir:     cfg.Loki.CacheDir,
		CacheEnabled: cfg.Loki.CacheEnabled,
		BroadTTL:     cfg.Loki.BroadTTL,
		TraceTTL:     cfg.Loki.TraceTTL,
		QueryLimit:   cfg.Loki.QueryLimit,
		RedisURL:     l2URL,
	})
	if err != nil {
		slog.Error("Failed to create log store client", "error", err)
		os.Exit(1)
	}

	// 6. Load context rules (default file is created when missing)
	contextRules, err := rules.Load(cfg.Rules.CSVPath)
	if err != nil {
		slog.Error("Failed to load context rules", "path", cfg.Rules.CSVPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Context rules loaded", "path", cfg.Rules.CSVPath, "count", len(contextRules))

	// 7. Wire the agents and the report writer
	modelID := cfg.LLM.Model()
	paramAgent := agent.NewParameterAgent(provider, modelID, promptStore, gateway,
		cfg.Analysis.AllowedQueryKeys, cfg.Analysis.DomainKeywords, cfg.LLM.Timeout)
	analyzer := agent.NewAnalyzer(provider, modelID, promptStore, gateway, cfg.LLM.Timeout)
	relevance := agent.NewRelevanceAnalyzer(provider, modelID, promptStore, gateway,
		agent.RelevanceConfig{
			Rules:            contextRules,
			IgnoreSaturation: cfg.Rules.IgnoreSaturation,
			BatchSize:        cfg.Analysis.BatchSize,
			Workers:          cfg.Analysis.Workers,
		}, cfg.LLM.Timeout)

	writer, err := report.NewWriter(cfg.Analysis.OutputDir)
	if err != nil {
		slog.Error("Failed to create report writer", "error", err)
		os.Exit(1)
	}

	// 8. Build the orchestrator and HTTP server
	orchestrator := pipeline.NewOrchestrator(cfg, paramAgent, analyzer, relevance, lokiClient, writer)
	server := api.NewServer(cfg, orchestrator, paramAgent, gateway, lokiClient, provider)

	httpServer := &http.Server{
		Addr:    ":" + httpPort,
		Handler: server.Router(),
	}

	// 9. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Sleuth started successfully", "projects", len(cfg.Projects))

	// 10. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 11. Graceful shutdown: let in-flight streams finish their current step
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
