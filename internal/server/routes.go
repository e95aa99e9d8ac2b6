package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/aerctl/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "0.1.0"

func (s *Server) RegisterRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.cfg.ID,
			"version": version,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := s.capture.Running()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.appeared).String(),
			"service": s.cfg.ID,
			"version": version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/stats", func(c *gin.Context) {
		out := gin.H{"capture": s.capture.Snapshot()}
		if s.stream != nil {
			out["stream"] = s.stream.Stats()
			out["stream_enabled"] = s.stream.Enabled()
		}
		c.JSON(http.StatusOK, out)
	})

	admin := r.Group("/", auth.Require(s.cfg.Auth))
	admin.POST("/stats/reset", func(c *gin.Context) {
		counters := false
		if raw := c.Query("counters"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "counters must be a boolean"})
				return
			}
			counters = v
		}
		s.capture.RequestReset(counters)
		if counters && s.stream != nil {
			s.stream.ResetStats()
		}
		s.log.Info().Bool("counters", counters).Msg("stats reset requested")
		// Owners apply the reset on their next iteration.
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "counters": counters})
	})

	admin.POST("/sink/enabled/:state", func(c *gin.Context) {
		if s.stream == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no stream sink attached"})
			return
		}
		enabled, ok := parseSwitch(c.Param("state"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "state must be on or off"})
			return
		}
		s.stream.SetEnabled(enabled)
		s.log.Info().Bool("enabled", enabled).Msg("stream sink toggled")
		c.JSON(http.StatusOK, gin.H{"status": "ok", "enabled": enabled})
	})
}

func parseSwitch(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "1", "enable", "enabled":
		return true, true
	case "off", "false", "0", "disable", "disabled":
		return false, true
	default:
		return false, false
	}
}
