package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/logging"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
	"github.com/gin-gonic/gin"
)

// Ping godoc
// @Summary Ping
// @Tags health
// @Produce json
// @Success 200 {object} model.PingResponse
// @Router /ping [get]
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, model.PingResponse{Message: "pong"})
}

// Root godoc
// @Summary Service banner
// @Tags health
// @Produce json
// @Success 200 {object} model.RootResponse
// @Router / [get]
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Status:  "ok",
		Message: "Grubtech API server is running",
	})
}

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db  pinger
	log *slog.Logger
}

func NewHealthHandler(db pinger, log *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, log: log}
}

// Health godoc
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.StatusResponse{Status: "ok"})
}

// Ready godoc
// @Summary Readiness check
// @Description Fails with 503 while the database is unreachable.
// @Tags health
// @Produce json
// @Success 200 {object} model.ReadyResponse
// @Failure 503 {object} model.ReadyResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn("readiness check failed", logging.Err(err))
		c.JSON(http.StatusServiceUnavailable, model.ReadyResponse{Ready: false})
		return
	}
	c.JSON(http.StatusOK, model.ReadyResponse{Ready: true})
}
