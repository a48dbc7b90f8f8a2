package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Version отдаётся в /api/version; переопределяется через -ldflags.
var Version = "v2.1"

// Pinger проверяет доступность базы для /ready.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	ping Pinger
	log  *slog.Logger
}

func NewHealthHandler(ping Pinger, log *slog.Logger) *HealthHandler {
	return &HealthHandler{ping: ping, log: log}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ticket-service",
		"time":    time.Now().Unix(),
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.log.Warn("readiness check failed", "error", err)
			abortError(c, http.StatusServiceUnavailable, CodeNotReady)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
