// Package pubsub is the in-process event bus used to fan room activity out to
// live subscribers such as websocket streams.
package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "chat.message.created").
	Topic string
	// UserID names the participant that caused the event, if any.
	UserID string
	// Payload contains the JSON encoded event.
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context.
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the bus.
type Subscriber interface {
	// Subscribe starts delivering messages of topic to handler in the
	// background until ctx is canceled or the subscriber is closed.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// PubSub is implemented by buses that both publish and subscribe.
type PubSub interface {
	Publisher
	Subscriber
}

// Nop is a Publisher that drops every message.
type Nop struct{}

func (Nop) Publish(context.Context, Message) error { return nil }
func (Nop) Close() error                           { return nil }
