package database

import (
	"context"
	"errors"

	"github.com/nfrund/batepapo/internal/domain"
)

var _ domain.MessageRepository = (*MessageStore)(nil)

// MessageStore persists the message log in SurrealDB. SurrealDB has no
// sequences, so Seq is taken from the creation timestamp in nanoseconds and
// ties are broken by the time-ordered record id.
type MessageStore struct {
	conn *Connection
}

// NewMessageStore creates a MessageStore over conn.
func NewMessageStore(conn *Connection) *MessageStore {
	return &MessageStore{conn: conn}
}

// Append stores m.
func (s *MessageStore) Append(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	if m == nil {
		return nil, errors.New("message to append cannot be nil")
	}
	if m.ID == "" {
		m.ID = domain.NewID()
	}
	if m.Seq == 0 {
		m.Seq = m.CreatedAt.UnixNano()
	}

	query := "CREATE $rid CONTENT $data"
	params := map[string]any{
		"rid":  recordID(messageTable, m.ID),
		"data": messageContent(m),
	}

	rows, err := writeRows[messageRecord](ctx, s.conn, query, params)
	if err != nil {
		return nil, WrapError(err, "failed to append message")
	}
	if len(rows) == 0 {
		return nil, NewDBError(ErrQueryFailed, "create returned no message")
	}
	return rows[0].toDomain(), nil
}

// FindByID returns the message or nil when it does not exist.
func (s *MessageStore) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	rec, err := queryRow[messageRecord](ctx, s.conn, "SELECT * FROM $rid", map[string]any{"rid": recordID(messageTable, id)})
	if err != nil {
		return nil, WrapError(err, "failed to find message")
	}
	if rec == nil {
		return nil, nil
	}
	return rec.toDomain(), nil
}

// List returns the whole log in append order.
func (s *MessageStore) List(ctx context.Context) ([]*domain.Message, error) {
	rows, err := queryRows[messageRecord](ctx, s.conn, "SELECT * FROM message ORDER BY seq ASC, id ASC", nil)
	if err != nil {
		return nil, WrapError(err, "failed to list messages")
	}

	out := make([]*domain.Message, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// Update merges the mutable fields of m into the stored message.
func (s *MessageStore) Update(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	if m == nil || m.ID == "" {
		return nil, NewDBError(ErrInvalidID, "message and message ID are required for update")
	}

	query := "UPDATE message MERGE $data WHERE id = $rid RETURN AFTER"
	params := map[string]any{
		"rid": recordID(messageTable, m.ID),
		"data": map[string]any{
			"to":   m.To,
			"text": m.Text,
			"type": string(m.Type),
			"time": m.Time,
		},
	}

	rows, err := writeRows[messageRecord](ctx, s.conn, query, params)
	if err != nil {
		return nil, WrapError(err, "failed to update message")
	}
	if len(rows) == 0 {
		return nil, NewDBError(domain.ErrNotFound, "message not found")
	}
	return rows[0].toDomain(), nil
}

// Delete removes the message; a missing record is not an error.
func (s *MessageStore) Delete(ctx context.Context, id string) error {
	err := execute(ctx, s.conn, "DELETE $rid", map[string]any{"rid": recordID(messageTable, id)})
	return WrapError(err, "failed to delete message")
}
