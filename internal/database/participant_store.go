package database

import (
	"context"
	"errors"
	"time"

	"github.com/nfrund/batepapo/internal/domain"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

var _ domain.ParticipantRepository = (*ParticipantStore)(nil)

// ParticipantStore persists participants in SurrealDB. Name key uniqueness is
// enforced by a unique index defined in ensureSchema.
type ParticipantStore struct {
	conn *Connection
}

// NewParticipantStore creates a ParticipantStore over conn.
func NewParticipantStore(conn *Connection) *ParticipantStore {
	return &ParticipantStore{conn: conn}
}

// Create inserts a participant under a record id derived from p.ID.
func (s *ParticipantStore) Create(ctx context.Context, p *domain.Participant) (*domain.Participant, error) {
	if p == nil {
		return nil, errors.New("participant to create cannot be nil")
	}
	if p.ID == "" {
		p.ID = domain.NewID()
	}

	query := "CREATE $rid CONTENT $data"
	params := map[string]any{
		"rid": recordID(participantTable, p.ID),
		"data": map[string]any{
			"name":      p.Name,
			"name_key":  p.NameKey,
			"last_seen": surrealmodels.CustomDateTime{Time: p.LastSeen},
		},
	}

	rows, err := writeRows[participantRecord](ctx, s.conn, query, params)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, NewDBError(domain.ErrAlreadyTaken, "failed to create participant")
		}
		return nil, WrapError(err, "failed to create participant")
	}
	if len(rows) == 0 {
		return nil, NewDBError(ErrQueryFailed, "create returned no participant")
	}
	return rows[0].toDomain(), nil
}

// FindByName returns the participant with exactly this name, or nil.
func (s *ParticipantStore) FindByName(ctx context.Context, name string) (*domain.Participant, error) {
	return s.findOne(ctx, "SELECT * FROM participant WHERE name = $value", name)
}

// FindByNameKey returns the participant holding this folded key, or nil.
func (s *ParticipantStore) FindByNameKey(ctx context.Context, key string) (*domain.Participant, error) {
	return s.findOne(ctx, "SELECT * FROM participant WHERE name_key = $value", key)
}

func (s *ParticipantStore) findOne(ctx context.Context, query, value string) (*domain.Participant, error) {
	rec, err := queryRow[participantRecord](ctx, s.conn, query, map[string]any{"value": value})
	if err != nil {
		return nil, WrapError(err, "failed to find participant")
	}
	if rec == nil {
		return nil, nil
	}
	return rec.toDomain(), nil
}

// Touch refreshes last_seen. The WHERE form never creates a missing record.
func (s *ParticipantStore) Touch(ctx context.Context, id string, at time.Time) error {
	query := "UPDATE participant SET last_seen = $at WHERE id = $rid RETURN AFTER"
	params := map[string]any{
		"rid": recordID(participantTable, id),
		"at":  surrealmodels.CustomDateTime{Time: at},
	}

	rows, err := writeRows[participantRecord](ctx, s.conn, query, params)
	if err != nil {
		return WrapError(err, "failed to touch participant")
	}
	if len(rows) == 0 {
		return NewDBError(domain.ErrNotFound, "participant not found")
	}
	return nil
}

// Delete removes the participant; a missing record is not an error.
func (s *ParticipantStore) Delete(ctx context.Context, id string) error {
	err := execute(ctx, s.conn, "DELETE $rid", map[string]any{"rid": recordID(participantTable, id)})
	return WrapError(err, "failed to delete participant")
}

// List returns all participants ordered by name.
func (s *ParticipantStore) List(ctx context.Context) ([]*domain.Participant, error) {
	rows, err := queryRows[participantRecord](ctx, s.conn, "SELECT * FROM participant ORDER BY name ASC", nil)
	if err != nil {
		return nil, WrapError(err, "failed to list participants")
	}

	out := make([]*domain.Participant, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}
