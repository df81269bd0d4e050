package database

import (
	"fmt"

	"github.com/nfrund/batepapo/internal/domain"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const (
	participantTable = "participant"
	messageTable     = "message"
)

// participantRecord is the stored shape of a domain.Participant.
type participantRecord struct {
	ID       *surrealmodels.RecordID      `json:"id,omitempty"`
	Name     string                       `json:"name"`
	NameKey  string                       `json:"name_key"`
	LastSeen surrealmodels.CustomDateTime `json:"last_seen"`
}

func (r *participantRecord) toDomain() *domain.Participant {
	return &domain.Participant{
		ID:       recordKey(r.ID),
		Name:     r.Name,
		NameKey:  r.NameKey,
		LastSeen: r.LastSeen.Time,
	}
}

// messageRecord is the stored shape of a domain.Message.
type messageRecord struct {
	ID        *surrealmodels.RecordID      `json:"id,omitempty"`
	Seq       int64                        `json:"seq"`
	From      string                       `json:"from"`
	To        string                       `json:"to"`
	Text      string                       `json:"text"`
	Type      string                       `json:"type"`
	Time      string                       `json:"time"`
	CreatedAt surrealmodels.CustomDateTime `json:"created_at"`
}

func (r *messageRecord) toDomain() *domain.Message {
	return &domain.Message{
		ID:        recordKey(r.ID),
		Seq:       r.Seq,
		From:      r.From,
		To:        r.To,
		Text:      r.Text,
		Type:      domain.MessageType(r.Type),
		Time:      r.Time,
		CreatedAt: r.CreatedAt.Time,
	}
}

func messageContent(m *domain.Message) map[string]any {
	return map[string]any{
		"seq":        m.Seq,
		"from":       m.From,
		"to":         m.To,
		"text":       m.Text,
		"type":       string(m.Type),
		"time":       m.Time,
		"created_at": surrealmodels.CustomDateTime{Time: m.CreatedAt},
	}
}

// recordID builds the full record id for an opaque domain id.
func recordID(table, id string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(table, id)
}

// recordKey extracts the opaque domain id from a record id.
func recordKey(id *surrealmodels.RecordID) string {
	if id == nil {
		return ""
	}
	return fmt.Sprint(id.ID)
}
