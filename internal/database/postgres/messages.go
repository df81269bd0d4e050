package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nfrund/batepapo/internal/database"
	"github.com/nfrund/batepapo/internal/domain"
)

const messageColumns = `seq, id, sender, recipient, body, kind, time_label, created_at`

type messages struct {
	s *Store
}

func (r messages) Append(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	if m == nil {
		return nil, errors.New("message to append cannot be nil")
	}
	out := *m
	if out.ID == "" {
		out.ID = domain.NewID()
	}

	ctx, cancel := r.s.writeCtx(ctx)
	defer cancel()

	query := `INSERT INTO messages (id, sender, recipient, body, kind, time_label, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq`

	err := r.s.q.QueryRowContext(ctx, query,
		out.ID, out.From, out.To, out.Text, string(out.Type), out.Time, out.CreatedAt.UTC()).Scan(&out.Seq)
	if err != nil {
		return nil, database.NewDBError(err, "failed to append message").WithQuery(query)
	}
	return &out, nil
}

func (r messages) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	ctx, cancel := r.s.readCtx(ctx)
	defer cancel()

	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	m, err := scanMessage(r.s.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.NewDBError(err, "failed to find message").WithQuery(query)
	}
	return m, nil
}

func (r messages) List(ctx context.Context) ([]*domain.Message, error) {
	ctx, cancel := r.s.readCtx(ctx)
	defer cancel()

	query := `SELECT ` + messageColumns + ` FROM messages ORDER BY seq`
	rows, err := r.s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, database.NewDBError(err, "failed to list messages").WithQuery(query)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, database.NewDBError(err, "failed to list messages")
	}
	return out, nil
}

func (r messages) Update(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	if m == nil || m.ID == "" {
		return nil, database.NewDBError(database.ErrInvalidID, "message and message ID are required for update")
	}

	ctx, cancel := r.s.writeCtx(ctx)
	defer cancel()

	query := `UPDATE messages SET recipient = $2, body = $3, kind = $4, time_label = $5
		WHERE id = $1
		RETURNING ` + messageColumns

	updated, err := scanMessage(r.s.q.QueryRowContext(ctx, query, m.ID, m.To, m.Text, string(m.Type), m.Time))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.NewDBError(domain.ErrNotFound, "message not found")
	}
	if err != nil {
		return nil, database.NewDBError(err, "failed to update message").WithQuery(query)
	}
	return updated, nil
}

func (r messages) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.s.writeCtx(ctx)
	defer cancel()

	query := `DELETE FROM messages WHERE id = $1`
	if _, err := r.s.q.ExecContext(ctx, query, id); err != nil {
		return database.NewDBError(err, "failed to delete message").WithQuery(query)
	}
	return nil
}

func scanMessage(row scanner) (*domain.Message, error) {
	m := &domain.Message{}
	var kind string
	if err := row.Scan(&m.Seq, &m.ID, &m.From, &m.To, &m.Text, &kind, &m.Time, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Type = domain.MessageType(kind)
	return m, nil
}
