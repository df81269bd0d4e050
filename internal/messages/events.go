package messages

import (
	"github.com/nfrund/batepapo/internal/domain"
	"github.com/nfrund/batepapo/internal/pubsub"
)

var (
	// EventCreated carries every message appended to the log, status
	// messages included.
	EventCreated = pubsub.NewEvent[domain.Message]("chat.message.created", "Published when a message is appended to the room log")

	// EventUpdated carries the message as it reads after an edit.
	EventUpdated = pubsub.NewEvent[domain.Message]("chat.message.updated", "Published when an author edits a message")

	// EventDeleted carries the message as it read before removal.
	EventDeleted = pubsub.NewEvent[domain.Message]("chat.message.deleted", "Published when an author deletes a message")
)

// Topics lists the message event topics, for subscribers that follow all of them.
func Topics() []pubsub.Event[domain.Message] {
	return []pubsub.Event[domain.Message]{EventCreated, EventUpdated, EventDeleted}
}
