package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleRoot lists the endpoints.
func (s *Server) handleRoot(c *gin.Context) {
	endpoints := gin.H{
		"healthz": "/healthz",
		"readyz":  "/readyz",
		"stats":   "/stats",
	}
	if s.deps.Metrics != nil {
		endpoints["metrics"] = "/metrics"
	}
	if s.deps.Webhook != nil {
		endpoints["webhook"] = s.config.WebhookPath
	}
	c.JSON(http.StatusOK, gin.H{"name": "Attendio Bot", "endpoints": endpoints})
}

// handleStats reports the bot's runtime counters.
func (s *Server) handleStats(c *gin.Context) {
	if s.deps.Stats == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "stats are not available"})
		return
	}
	stats := s.deps.Stats()
	stats["http_uptime"] = s.Uptime().Round(time.Second).String()
	c.JSON(http.StatusOK, stats)
}
