package domain

import (
	"time"
)

// MessageType is the kind of a message on the wire.
type MessageType string

const (
	TypePublic  MessageType = "message"
	TypePrivate MessageType = "private_message"
	TypeStatus  MessageType = "status"
)

// Broadcast is the recipient marker for messages addressed to the whole room.
const Broadcast = "Todos"

// Status texts recorded when a participant joins or leaves the room.
const (
	StatusJoined = "entra na sala..."
	StatusLeft   = "sai da sala..."
)

// TimeLayout is the wall-clock format stamped on every message.
const TimeLayout = "15:04:05"

// Message is an entry of the room's message log.
type Message struct {
	ID        string      `json:"id"`
	Seq       int64       `json:"-"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Text      string      `json:"text"`
	Type      MessageType `json:"type"`
	Time      string      `json:"time"`
	CreatedAt time.Time   `json:"-"`
}

// MessageInput is the client-supplied part of a message.
type MessageInput struct {
	To   string      `json:"to" validate:"required"`
	Text string      `json:"text" validate:"required"`
	Type MessageType `json:"type" validate:"required,oneof=message private_message"`
}

// Validate reports every violated field of the input at once.
func (in *MessageInput) Validate() error {
	return validateStruct(in)
}

// VisibleTo reports whether viewer may read m. Private messages are only
// visible to their sender and recipient.
func (m *Message) VisibleTo(viewer string) bool {
	return m.From == viewer || m.To == viewer || m.Type != TypePrivate
}

// CanModify reports whether actor may edit or delete m.
func CanModify(actor string, m *Message) bool {
	return m != nil && actor != "" && m.From == actor
}

// FormatTime renders t as local wall-clock time in the message layout.
func FormatTime(t time.Time) string {
	return t.Local().Format(TimeLayout)
}

// NewStatusMessage builds a room status event from a participant.
func NewStatusMessage(from, text string, at time.Time) *Message {
	return &Message{
		From:      from,
		To:        Broadcast,
		Text:      text,
		Type:      TypeStatus,
		Time:      FormatTime(at),
		CreatedAt: at,
	}
}
