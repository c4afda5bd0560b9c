package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/logsleuth/sleuth/pkg/agent"
	"github.com/logsleuth/sleuth/pkg/llmcache"
	"github.com/logsleuth/sleuth/pkg/pipeline"
)

// ChatRequest is the chat submission body.
type ChatRequest struct {
	Prompt       string           `json:"prompt" binding:"required"`
	Project      string           `json:"project" binding:"required"`
	Env          string           `json:"env" binding:"required"`
	Domain       string           `json:"domain,omitempty"`
	Cache        *llmcache.Policy `json:"cache,omitempty"`
	ForceRefresh bool             `json:"force_refresh,omitempty"`
}

// SubmitChat registers an analysis request and returns the stream URL the
// client consumes for progress events.
func (s *Server) SubmitChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, ok := s.cfg.Project(req.Project); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown project: " + req.Project})
		return
	}

	id := s.streams.add(pipeline.Request{
		Prompt:       req.Prompt,
		Project:      req.Project,
		Env:          req.Env,
		Domain:       req.Domain,
		Policy:       req.Cache,
		ForceRefresh: req.ForceRefresh,
	})
	c.JSON(http.StatusOK, gin.H{"streamUrl": "/api/v1/stream/" + id})
}

// StreamEvents runs the pipeline for a submitted request and forwards its
// events as SSE frames. A client disconnect cancels the stream; in-flight
// LLM computes finish and populate the cache for retries.
func (s *Server) StreamEvents(c *gin.Context) {
	req, ok := s.streams.claim(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown or expired stream"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	events := s.orchestrator.Run(c.Request.Context(), req)
	c.Stream(func(w io.Writer) bool {
		ev, open := <-events
		if !open {
			return false
		}
		c.SSEvent(string(ev.Step), ev.Payload)
		return true
	})
}

// PlanRequest is the plan preview body.
type PlanRequest struct {
	Prompt  string           `json:"prompt" binding:"required"`
	Project string           `json:"project" binding:"required"`
	Env     string           `json:"env" binding:"required"`
	Domain  string           `json:"domain,omitempty"`
	Cache   *llmcache.Policy `json:"cache,omitempty"`
}

// PreviewPlan extracts parameters and returns the feasibility plan without
// running the pipeline.
func (s *Server) PreviewPlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	project, ok := s.cfg.Project(req.Project)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown project: " + req.Project})
		return
	}

	params, _, err := s.paramAgent.Extract(c.Request.Context(), req.Prompt, req.Cache)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	agent.ApplyDomainHint(params, req.Domain)
	plan := agent.BuildPlan(params, project, req.Env, req.Prompt)
	c.JSON(http.StatusOK, gin.H{"parameters": params, "plan": plan})
}
