// Package health exposes the liveness endpoint.
package health

import (
	"time"

	"github.com/gin-gonic/gin"
)

// StatsProvider reports live registry sizes for the health payload. The
// session Hub implements it.
type StatsProvider interface {
	Counts() (channels, clients int)
}

// Handler manages health check endpoints
type Handler struct {
	started time.Time
	stats   StatsProvider
}

// NewHandler creates a new health check handler
func NewHandler(stats StatsProvider) *Handler {
	return &Handler{
		started: time.Now(),
		stats:   stats,
	}
}

// Healthz reports process status, uptime, and live registry counts.
func (h *Handler) Healthz(c *gin.Context) {
	channels, clients := 0, 0
	if h.stats != nil {
		channels, clients = h.stats.Counts()
	}

	c.JSON(200, gin.H{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"channels":       channels,
		"clients":        clients,
	})
}
