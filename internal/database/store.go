package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nfrund/batepapo/internal/config"
	"github.com/nfrund/batepapo/internal/domain"
	"github.com/surrealdb/surrealdb.go"
)

var _ domain.Store = (*Store)(nil)

const schema = `
DEFINE TABLE IF NOT EXISTS participant SCHEMALESS;
DEFINE INDEX IF NOT EXISTS participant_name_key ON TABLE participant FIELDS name_key UNIQUE;
DEFINE INDEX IF NOT EXISTS participant_name ON TABLE participant FIELDS name;
DEFINE TABLE IF NOT EXISTS message SCHEMALESS;
DEFINE INDEX IF NOT EXISTS message_seq ON TABLE message FIELDS seq;
`

// Store is the SurrealDB implementation of domain.Store. It does not support
// multi-statement transactions across calls.
type Store struct {
	conn         *Connection
	participants *ParticipantStore
	messages     *MessageStore
}

// Open connects to SurrealDB, defines the schema and starts health monitoring.
func Open(ctx context.Context, cfg *config.Config, opts ...RetryOption) (*Store, error) {
	conn := NewConnection(cfg, opts...)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}

	s := NewStore(conn)
	if err := s.ensureSchema(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	conn.StartMonitoring()
	slog.InfoContext(ctx, "SurrealDB store ready", "namespace", cfg.DBNs, "database", cfg.DBDb)
	return s, nil
}

// NewStore wraps an established connection.
func NewStore(conn *Connection) *Store {
	return &Store{
		conn:         conn,
		participants: NewParticipantStore(conn),
		messages:     NewMessageStore(conn),
	}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if err := execute(ctx, s.conn, schema, nil); err != nil {
		return fmt.Errorf("failed to define schema: %w", err)
	}
	return nil
}

func (s *Store) Participants() domain.ParticipantRepository { return s.participants }

func (s *Store) Messages() domain.MessageRepository { return s.messages }

// WithTransaction runs fn directly against s.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	return fn(ctx, s)
}

func (s *Store) Transactional() bool { return false }

// Ping asks the server for its version.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := TimeoutFromContext(ctx, s.conn.QueryTimeout(), ContextKeyQueryTimeout)
	defer cancel()

	return s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		_, err := db.Version(ctx)
		return err
	})
}

func (s *Store) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
