package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/batepapo/internal/domain"
	"github.com/nfrund/batepapo/internal/middleware"
)

// ParticipantService is the part of the presence tracker the API needs.
type ParticipantService interface {
	Register(ctx context.Context, name string) (*domain.Participant, error)
	Touch(ctx context.Context, name string) error
	List(ctx context.Context) ([]*domain.Participant, error)
}

// ParticipantHandler handles registration, listing and keepalive requests.
type ParticipantHandler struct {
	participants ParticipantService
	display      func(string) string
}

// NewParticipantHandler creates a new participant handler. display renders
// a name for humans, e.g. a Sanitizer's Title.
func NewParticipantHandler(participants ParticipantService, display func(string) string) *ParticipantHandler {
	return &ParticipantHandler{participants: participants, display: display}
}

// Register handles POST /participants.
func (h *ParticipantHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return respondBindError(c, err)
	}

	p, err := h.participants.Register(ctx, req.Name)
	if err != nil {
		return respondError(c, err)
	}

	if err := middleware.Remember(c, p.Name); err != nil {
		middleware.FromContext(ctx).Debug("Session not saved", "error", err)
	}
	return c.JSON(http.StatusCreated, NewParticipantResponse(p, h.display))
}

// List handles GET /participants.
func (h *ParticipantHandler) List(c echo.Context) error {
	ps, err := h.participants.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	out := make([]ParticipantResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, NewParticipantResponse(p, h.display))
	}
	return c.JSON(http.StatusOK, out)
}

// Status handles POST /status, the caller's keepalive.
func (h *ParticipantHandler) Status(c echo.Context) error {
	if err := h.participants.Touch(c.Request().Context(), middleware.User(c)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusOK)
}
