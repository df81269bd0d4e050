package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nfrund/batepapo/internal/database"
	"github.com/nfrund/batepapo/internal/domain"
)

const participantColumns = `id, name, name_key, last_seen`

type participants struct {
	s *Store
}

func (r participants) Create(ctx context.Context, p *domain.Participant) (*domain.Participant, error) {
	if p == nil {
		return nil, errors.New("participant to create cannot be nil")
	}
	out := *p
	if out.ID == "" {
		out.ID = domain.NewID()
	}

	ctx, cancel := r.s.writeCtx(ctx)
	defer cancel()

	query := `INSERT INTO participants (id, name, name_key, last_seen)
		VALUES ($1, $2, $3, $4)`

	if _, err := r.s.q.ExecContext(ctx, query, out.ID, out.Name, out.NameKey, out.LastSeen.UTC()); err != nil {
		if isUniqueViolation(err) {
			return nil, database.NewDBError(domain.ErrAlreadyTaken, "failed to create participant")
		}
		return nil, database.NewDBError(err, "failed to create participant").WithQuery(query)
	}
	return &out, nil
}

func (r participants) FindByName(ctx context.Context, name string) (*domain.Participant, error) {
	return r.findOne(ctx, `SELECT `+participantColumns+` FROM participants WHERE name = $1`, name)
}

func (r participants) FindByNameKey(ctx context.Context, key string) (*domain.Participant, error) {
	return r.findOne(ctx, `SELECT `+participantColumns+` FROM participants WHERE name_key = $1`, key)
}

// findOne locks the matched row when called inside a transaction, so a
// concurrent Touch or Delete of that participant waits for the transaction
// to finish and a re-read sees the latest committed last_seen.
func (r participants) findOne(ctx context.Context, query, arg string) (*domain.Participant, error) {
	if r.s.inTx {
		query += ` FOR UPDATE`
	}

	ctx, cancel := r.s.readCtx(ctx)
	defer cancel()

	p, err := scanParticipant(r.s.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.NewDBError(err, "failed to find participant").WithQuery(query)
	}
	return p, nil
}

func (r participants) Touch(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := r.s.writeCtx(ctx)
	defer cancel()

	query := `UPDATE participants SET last_seen = $2 WHERE id = $1`
	res, err := r.s.q.ExecContext(ctx, query, id, at.UTC())
	if err != nil {
		return database.NewDBError(err, "failed to touch participant").WithQuery(query)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return database.NewDBError(domain.ErrNotFound, "participant not found")
	}
	return nil
}

func (r participants) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.s.writeCtx(ctx)
	defer cancel()

	query := `DELETE FROM participants WHERE id = $1`
	if _, err := r.s.q.ExecContext(ctx, query, id); err != nil {
		return database.NewDBError(err, "failed to delete participant").WithQuery(query)
	}
	return nil
}

func (r participants) List(ctx context.Context) ([]*domain.Participant, error) {
	ctx, cancel := r.s.readCtx(ctx)
	defer cancel()

	query := `SELECT ` + participantColumns + ` FROM participants ORDER BY name, id`
	rows, err := r.s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, database.NewDBError(err, "failed to list participants").WithQuery(query)
	}
	defer rows.Close()

	var out []*domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, database.NewDBError(err, "failed to list participants")
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row scanner) (*domain.Participant, error) {
	p := &domain.Participant{}
	if err := row.Scan(&p.ID, &p.Name, &p.NameKey, &p.LastSeen); err != nil {
		return nil, err
	}
	return p, nil
}
