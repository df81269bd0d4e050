package presence

import (
	"time"

	"github.com/nfrund/batepapo/internal/pubsub"
)

// ParticipantEvent is the payload of presence events.
type ParticipantEvent struct {
	Name   string    `json:"name"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// Reasons attached to EventLeft.
const (
	ReasonInactive = "inactive"
)

var (
	// EventJoined is published after a participant registers.
	EventJoined = pubsub.NewEvent[ParticipantEvent]("presence.joined", "Published when a participant enters the room")

	// EventLeft is published after a participant is removed from the room.
	EventLeft = pubsub.NewEvent[ParticipantEvent]("presence.left", "Published when a participant leaves the room")
)
