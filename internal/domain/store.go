package domain

import (
	"context"
	"time"
)

// ParticipantRepository defines the contract for participant storage.
// It lives in the domain because it's a requirement OF the domain, not
// of the database implementation.
type ParticipantRepository interface {
	// Create inserts p. It returns ErrAlreadyTaken when another participant
	// holds the same NameKey. An empty ID is filled in.
	Create(ctx context.Context, p *Participant) (*Participant, error)

	// FindByName looks up a participant by exact name. It returns (nil, nil)
	// when none exists.
	FindByName(ctx context.Context, name string) (*Participant, error)

	// FindByNameKey looks up a participant by folded name key. It returns
	// (nil, nil) when none exists.
	FindByNameKey(ctx context.Context, key string) (*Participant, error)

	// Touch sets LastSeen of the participant with the given ID.
	// It returns ErrNotFound when the participant is gone.
	Touch(ctx context.Context, id string, at time.Time) error

	// Delete removes the participant. Deleting a missing participant is a no-op.
	Delete(ctx context.Context, id string) error

	// List returns every participant.
	List(ctx context.Context) ([]*Participant, error)
}

// MessageRepository defines the contract for the message log storage.
type MessageRepository interface {
	// Append stores m, assigning its Seq (and ID when empty).
	Append(ctx context.Context, m *Message) (*Message, error)

	// FindByID returns (nil, nil) when the message does not exist.
	FindByID(ctx context.Context, id string) (*Message, error)

	// List returns every message in append order.
	List(ctx context.Context) ([]*Message, error)

	// Update replaces the mutable fields of the message with m.ID.
	// It returns ErrNotFound when the message is gone.
	Update(ctx context.Context, m *Message) (*Message, error)

	// Delete removes the message. Deleting a missing message is a no-op.
	Delete(ctx context.Context, id string) error
}

// Store bundles the repositories over a single backing database.
type Store interface {
	Participants() ParticipantRepository
	Messages() MessageRepository

	// WithTransaction runs fn against a Store bound to one transaction.
	// Stores without transactions run fn directly and report
	// Transactional() == false.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Transactional() bool

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
