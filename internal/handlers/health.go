package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/batepapo/internal/middleware"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the health of the process and its store.
type HealthHandler struct {
	store Pinger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Check handles GET /health.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		middleware.FromContext(ctx).Warn("Health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Code: "unavailable", Message: "store unreachable"})
	}
	return c.String(http.StatusOK, "OK")
}
