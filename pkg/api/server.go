// Package api exposes the analysis pipeline over HTTP: chat submission with
// a server-sent event progress stream, plan preview, cache administration,
// and health.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logsleuth/sleuth/pkg/agent"
	"github.com/logsleuth/sleuth/pkg/config"
	"github.com/logsleuth/sleuth/pkg/llm"
	"github.com/logsleuth/sleuth/pkg/llmcache"
	"github.com/logsleuth/sleuth/pkg/loki"
	"github.com/logsleuth/sleuth/pkg/pipeline"
	"github.com/logsleuth/sleuth/pkg/version"
)

// Server is the HTTP API server.
type Server struct {
	cfg          *config.Config
	orchestrator *pipeline.Orchestrator
	paramAgent   *agent.ParameterAgent
	gateway      *llmcache.Gateway
	lokiClient   *loki.Client
	provider     llm.Provider
	streams      *streamRegistry
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, orchestrator *pipeline.Orchestrator,
	paramAgent *agent.ParameterAgent, gateway *llmcache.Gateway,
	lokiClient *loki.Client, provider llm.Provider) *Server {
	return &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		paramAgent:   paramAgent,
		gateway:      gateway,
		lokiClient:   lokiClient,
		provider:     provider,
		streams:      newStreamRegistry(),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/chat", s.SubmitChat)
		v1.GET("/stream/:id", s.StreamEvents)
		v1.POST("/plan", s.PreviewPlan)

		cache := v1.Group("/cache")
		{
			cache.GET("/ping", s.CachePing)
			cache.GET("/stats", s.CacheStats)
			cache.POST("/delete", s.CacheDelete)
			cache.POST("/clear-l1", s.CacheClearL1)
		}
	}
	return r
}

// Health reports service and dependency status.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status":  "healthy",
		"version": version.Full(),
	}
	body["llm_provider"] = gin.H{
		"name":      s.provider.Name(),
		"available": s.provider.IsAvailable(ctx),
	}
	if err := s.gateway.PingL2(ctx); err != nil {
		body["cache_l2"] = gin.H{"healthy": false, "error": err.Error()}
	} else {
		body["cache_l2"] = gin.H{"healthy": true}
	}

	c.JSON(status, body)
}
