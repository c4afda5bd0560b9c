package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CachePing checks the shared cache tier's reachability.
func (s *Server) CachePing(c *gin.Context) {
	if err := s.gateway.PingL2(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unreachable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CacheStats returns per-tier gateway counters plus the log result cache
// metrics.
func (s *Server) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"gateway": s.gateway.Snapshot(c.Request.Context()),
		"loki":    s.lokiClient.Metrics(),
	})
}

// CacheDeleteRequest names the key to remove.
type CacheDeleteRequest struct {
	Key string `json:"key" binding:"required"`
}

// CacheDelete removes one key from both tiers.
func (s *Server) CacheDelete(c *gin.Context) {
	var req CacheDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.gateway.Delete(c.Request.Context(), req.Key)
	c.JSON(http.StatusOK, gin.H{"deleted": req.Key})
}

// CacheClearL1 drops every in-process cache entry. The shared tier is left
// untouched.
func (s *Server) CacheClearL1(c *gin.Context) {
	s.gateway.ClearL1()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
