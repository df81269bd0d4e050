package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/batepapo/internal/domain"
	"github.com/nfrund/batepapo/internal/middleware"
	"github.com/nfrund/batepapo/internal/view"
)

// lobbyHistory is how many messages the lobby shows.
const lobbyHistory = 100

// LobbyParticipants adds the lookup the lobby needs to tell whether the
// remembered name is still in the room.
type LobbyParticipants interface {
	ParticipantService
	Lookup(ctx context.Context, name string) (*domain.Participant, error)
}

// LobbyHandler serves the HTML lobby and its htmx fragments.
type LobbyHandler struct {
	participants LobbyParticipants
	messages     MessageService
	display      func(string) string
}

// NewLobbyHandler creates a new lobby handler.
func NewLobbyHandler(participants LobbyParticipants, messages MessageService, display func(string) string) *LobbyHandler {
	return &LobbyHandler{participants: participants, messages: messages, display: display}
}

// Page handles GET /.
func (h *LobbyHandler) Page(c echo.Context) error {
	ctx := c.Request().Context()
	viewer := middleware.User(c)

	if viewer != "" {
		if _, err := h.participants.Lookup(ctx, viewer); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				middleware.FromContext(ctx).Warn("Lobby lookup failed", "viewer", viewer, "error", err)
			}
			viewer = ""
		}
	}

	page := view.Page("Bate-papo", view.GetFlashData(c), view.Lobby(viewer))
	return c.Render(http.StatusOK, "", page)
}

// Join handles POST /lobby/join and redirects back to the lobby.
func (h *LobbyHandler) Join(c echo.Context) error {
	ctx := c.Request().Context()

	p, err := h.participants.Register(ctx, c.FormValue("name"))
	if err != nil {
		view.SetFlashError(c, joinFailure(ctx, err))
		return c.Redirect(http.StatusSeeOther, "/")
	}

	if err := middleware.Remember(c, p.Name); err != nil {
		middleware.FromContext(ctx).Warn("Session not saved", "error", err)
	}
	view.SetFlashSuccess(c, "Bem-vindo, "+h.display(p.Name)+"!")
	return c.Redirect(http.StatusSeeOther, "/")
}

func joinFailure(ctx context.Context, err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, domain.ErrAlreadyTaken):
		return "Esse nome já está em uso."
	}
	middleware.FromContext(ctx).Error("Lobby join failed", "error", err)
	return "Não foi possível entrar agora."
}

// Participants handles GET /lobby/participants.
func (h *LobbyHandler) Participants(c echo.Context) error {
	ps, err := h.participants.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.Render(http.StatusOK, "", view.ParticipantList(ps, h.display))
}

// Messages handles GET /lobby/messages.
func (h *LobbyHandler) Messages(c echo.Context) error {
	msgs, err := h.messages.ListVisibleTo(c.Request().Context(), middleware.User(c), lobbyHistory)
	if err != nil {
		return respondError(c, err)
	}
	return c.Render(http.StatusOK, "", view.MessageList(msgs))
}

// Send handles POST /lobby/messages. Failures are rendered into the form
// instead of turned into error statuses, so htmx swaps them in.
func (h *LobbyHandler) Send(c echo.Context) error {
	ctx := c.Request().Context()

	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return c.Render(http.StatusOK, "", view.SendResult([]string{"Formulário inválido."}))
	}

	_, err := h.messages.Append(ctx, middleware.User(c), req.Input())
	var verr *domain.ValidationError
	switch {
	case err == nil:
		return c.Render(http.StatusOK, "", view.SendResult(nil))
	case errors.As(err, &verr):
		return c.Render(http.StatusOK, "", view.SendResult(verr.Messages()))
	case errors.Is(err, domain.ErrUnknownSender):
		return c.Render(http.StatusOK, "", view.SendResult([]string{"Entre na sala antes de enviar mensagens."}))
	}

	middleware.FromContext(ctx).Error("Lobby send failed", "error", err)
	return c.Render(http.StatusOK, "", view.SendResult([]string{"Não foi possível enviar agora."}))
}
