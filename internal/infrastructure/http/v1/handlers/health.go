// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PingFunc checks that the store is reachable.
type PingFunc func(ctx context.Context) error

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	ping    PingFunc
	backend string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(ping PingFunc, backend string) *HealthHandler {
	return &HealthHandler{ping: ping, backend: backend}
}

// Live handles liveness probe (is the process alive?).
// GET /health
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": h.backend,
	})
}

// Ready handles readiness probe (is the store reachable?).
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "error",
				"checks": map[string]string{
					h.backend: "unhealthy: " + err.Error(),
				},
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			h.backend: "healthy",
		},
	})
}
