package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/batepapo/internal/domain"
	"github.com/nfrund/batepapo/internal/middleware"
)

// MessageService is the part of the message log the API needs.
type MessageService interface {
	Append(ctx context.Context, from string, in domain.MessageInput) (*domain.Message, error)
	ListVisibleTo(ctx context.Context, viewer string, limit int) ([]*domain.Message, error)
	UpdateOwn(ctx context.Context, id, viewer string, in domain.MessageInput) (*domain.Message, error)
	DeleteOwn(ctx context.Context, id, viewer string) error
}

// MessageHandler handles the message log endpoints. The caller is whoever
// the Identity middleware resolved.
type MessageHandler struct {
	messages MessageService
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(messages MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Create handles POST /messages.
func (h *MessageHandler) Create(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return respondBindError(c, err)
	}

	m, err := h.messages.Append(c.Request().Context(), middleware.User(c), req.Input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// List handles GET /messages?limit=N.
func (h *MessageHandler) List(c echo.Context) error {
	req, err := bindListMessages(c)
	if err != nil {
		return respondError(c, err)
	}

	msgs, err := h.messages.ListVisibleTo(c.Request().Context(), middleware.User(c), req.limit())
	if err != nil {
		return respondError(c, err)
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

// Update handles PUT /messages/:id.
func (h *MessageHandler) Update(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return respondBindError(c, err)
	}

	m, err := h.messages.UpdateOwn(c.Request().Context(), c.Param("id"), middleware.User(c), req.Input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// Delete handles DELETE /messages/:id.
func (h *MessageHandler) Delete(c echo.Context) error {
	if err := h.messages.DeleteOwn(c.Request().Context(), c.Param("id"), middleware.User(c)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusCreated)
}
