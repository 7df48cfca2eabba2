// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readyTimeout = 2 * time.Second

// Pinger checks that a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	backend string
	db      Pinger
}

// NewHealthHandler creates a health handler. db is nil for the memory backend.
func NewHealthHandler(backend string, db Pinger) *HealthHandler {
	return &HealthHandler{backend: backend, db: db}
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready. The memory backend is always ready.
func (h *HealthHandler) Ready(c *gin.Context) {
	body := gin.H{"status": "ok", "backend": h.backend}
	if h.db == nil {
		c.JSON(http.StatusOK, body)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	started := time.Now()
	err := h.db.Ping(ctx)
	check := gin.H{"latency_ms": time.Since(started).Milliseconds()}
	body["checks"] = gin.H{"database": check}

	if err != nil {
		check["status"] = "unhealthy"
		check["error"] = err.Error()
		body["status"] = "error"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	check["status"] = "healthy"
	c.JSON(http.StatusOK, body)
}
