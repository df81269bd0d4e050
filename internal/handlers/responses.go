package handlers

import (
	"github.com/nfrund/batepapo/internal/domain"
)

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResponse lists every violated field of a rejected request.
type ValidationResponse struct {
	Errors []string `json:"errors"`
}

// ParticipantResponse is the DTO for a single participant.
type ParticipantResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	LastStatus  int64  `json:"lastStatus"`
}

// NewParticipantResponse creates a ParticipantResponse from a domain
// participant. display produces the human-facing form of the name.
func NewParticipantResponse(p *domain.Participant, display func(string) string) ParticipantResponse {
	return ParticipantResponse{
		ID:          p.ID,
		Name:        p.Name,
		DisplayName: display(p.Name),
		LastStatus:  p.LastStatus(),
	}
}
