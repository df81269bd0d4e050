package domain

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a registered chat user. The name is the identity token.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name" validate:"required,max=64"`
	NameKey  string    `json:"-"`
	LastSeen time.Time `json:"-"`
}

// Validate checks the participant's fields against their tag rules.
func (p *Participant) Validate() error {
	return validateStruct(p)
}

// IsStale reports whether the participant has been silent for longer than
// threshold as of now.
func (p *Participant) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(p.LastSeen) > threshold
}

// LastStatus returns LastSeen as Unix milliseconds.
func (p *Participant) LastStatus() int64 {
	return p.LastSeen.UnixMilli()
}

// NewID returns a new time-ordered opaque identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
