package server

import (
	"github.com/nfrund/batepapo/internal/handlers"
	"github.com/nfrund/batepapo/internal/middleware"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	deps := s.deps
	display := deps.Sanitizer.Title

	participantHandler := handlers.NewParticipantHandler(deps.Tracker, display)
	messageHandler := handlers.NewMessageHandler(deps.Log)
	lobbyHandler := handlers.NewLobbyHandler(deps.Tracker, deps.Log, display)
	healthHandler := handlers.NewHealthHandler(deps.Store)
	rateLimiter := middleware.RateLimiter(deps.Config.RateLimitPerMinute)

	s.E.POST("/participants", participantHandler.Register, rateLimiter)
	s.E.GET("/participants", participantHandler.List)
	s.E.POST("/status", participantHandler.Status)

	s.E.POST("/messages", messageHandler.Create)
	s.E.GET("/messages", messageHandler.List)
	s.E.PUT("/messages/:id", messageHandler.Update)
	s.E.DELETE("/messages/:id", messageHandler.Delete)
	s.E.GET("/messages/stream", deps.Stream.Handler())

	s.E.GET("/", lobbyHandler.Page)
	lobby := s.E.Group("/lobby")
	lobby.POST("/join", lobbyHandler.Join, rateLimiter)
	lobby.GET("/participants", lobbyHandler.Participants)
	lobby.GET("/messages", lobbyHandler.Messages)
	lobby.POST("/messages", lobbyHandler.Send)

	s.E.GET("/health", healthHandler.Check)
}
