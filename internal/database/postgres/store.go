// Package postgres implements domain.Store on PostgreSQL through the pgx
// database/sql driver. The schema is managed by goose migrations embedded in
// the binary.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nfrund/batepapo/internal/database"
	"github.com/nfrund/batepapo/internal/domain"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ domain.Store = (*Store)(nil)

// uniqueViolation is the SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// Options tunes a Store.
type Options struct {
	QueryTimeout   time.Duration
	ExecuteTimeout time.Duration
	Logger         *slog.Logger
}

// Store is a domain.Store backed by PostgreSQL.
type Store struct {
	db   *sql.DB
	q    DBTX
	inTx bool
	opts Options
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Open connects to dsn, waits for the server with backoff and applies
// pending migrations.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	retryer := database.NewExponentialBackoffRetryer()
	if err := retryer.Retry(ctx, func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, database.Unavailable(fmt.Errorf("postgres not reachable: %w", err))
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := New(db, opts)
	s.opts.Logger.InfoContext(ctx, "Postgres store ready")
	return s, nil
}

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// New wraps an already migrated database.
func New(db *sql.DB, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With("service", "postgres")
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Second
	}
	if opts.ExecuteTimeout <= 0 {
		opts.ExecuteTimeout = 5 * time.Second
	}
	return &Store{db: db, q: db, opts: opts}
}

func (s *Store) Participants() domain.ParticipantRepository { return participants{s: s} }

func (s *Store) Messages() domain.MessageRepository { return messages{s: s} }

// WithTransaction runs fn inside one SQL transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return withTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		return fn(ctx, &Store{db: s.db, q: tx, inTx: true, opts: s.opts})
	})
}

func (s *Store) Transactional() bool { return true }

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := database.TimeoutFromContext(ctx, s.opts.QueryTimeout, database.ContextKeyQueryTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return database.Unavailable(err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.inTx {
		return errors.New("cannot close a transaction-bound store")
	}
	return s.db.Close()
}

func (s *Store) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return database.TimeoutFromContext(ctx, s.opts.QueryTimeout, database.ContextKeyQueryTimeout)
}

func (s *Store) writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return database.TimeoutFromContext(ctx, s.opts.ExecuteTimeout, database.ContextKeyExecuteTimeout)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
