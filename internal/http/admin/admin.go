// Package admin exposes the operational HTTP surface of the sync worker:
// health, Prometheus metrics and a manual circuit breaker reset.
package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"devpulse.app/syncd/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	connections store.ConnectionStore
	registry    *prometheus.Registry
}

func NewHandler(connections store.ConnectionStore, registry *prometheus.Registry) *Handler {
	return &Handler{connections: connections, registry: registry}
}

func SetupRoutes(router *gin.Engine, h *Handler) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))

	router.POST("/connections/:id/breaker/reset", h.ResetBreaker)
}

// ResetBreaker zeroes a connection's error count so the next sweep picks
// it up again.
func (h *Handler) ResetBreaker(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
		return
	}

	if err := h.connections.ResetErrorCount(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to reset breaker", "error", err, "connection_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset breaker"})
		return
	}

	slog.InfoContext(ctx, "breaker reset", "connection_id", id)
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
