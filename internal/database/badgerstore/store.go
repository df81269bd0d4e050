// Package badgerstore implements domain.Store on an embedded BadgerDB.
// Every write runs in a Badger transaction; conflicting transactions are
// retried so uniqueness checks stay race free.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/nfrund/batepapo/internal/database"
	"github.com/nfrund/batepapo/internal/domain"
)

var _ domain.Store = (*Store)(nil)

const (
	sequenceKey       = "seq:message"
	sequenceBandwidth = 128
)

// Store is a domain.Store backed by BadgerDB.
type Store struct {
	db      *badger.DB
	seq     *badger.Sequence
	txn     *badger.Txn
	retryer *database.ExponentialBackoffRetryer
	log     *slog.Logger
}

// Open opens (or creates) a Badger database at path. An empty path keeps
// everything in memory.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", "badgerstore")

	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{log: logger})
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, database.Unavailable(fmt.Errorf("failed to open badger at %q: %w", path, err))
	}

	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to lease message sequence: %w", err)
	}

	logger.Info("Badger store ready", "path", path, "in_memory", path == "")
	return &Store{
		db:  db,
		seq: seq,
		retryer: database.NewExponentialBackoffRetryer(
			database.WithMaxRetries(16),
			database.WithBaseDelay(time.Millisecond),
			database.WithMaxDelay(20*time.Millisecond),
		),
		log: logger,
	}, nil
}

func (s *Store) Participants() domain.ParticipantRepository { return participants{s: s} }

func (s *Store) Messages() domain.MessageRepository { return messages{s: s} }

// WithTransaction runs fn inside one Badger read-write transaction. fn may be
// invoked again when the commit conflicts with a concurrent writer.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	if s.txn != nil {
		return fn(ctx, s)
	}
	return s.retryer.RetryIf(ctx, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			return fn(ctx, s.bound(txn))
		})
	}, isConflict)
}

func (s *Store) Transactional() bool { return true }

// Ping reports whether the database is still open.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return database.Unavailable(errors.New("badger database is closed"))
	}
	return nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close(ctx context.Context) error {
	if s.txn != nil {
		return errors.New("cannot close a transaction-bound store")
	}
	if s.db.IsClosed() {
		return nil
	}
	var errs []error
	if err := s.seq.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release sequence: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close badger: %w", err))
	}
	return errors.Join(errs...)
}

// bound returns a copy of s whose repositories share txn.
func (s *Store) bound(txn *badger.Txn) *Store {
	cp := *s
	cp.txn = txn
	return &cp
}

// update runs fn in the bound transaction or in a fresh retried one.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.txn != nil {
		return fn(s.txn)
	}
	return s.retryer.RetryIf(ctx, func() error {
		return s.db.Update(fn)
	}, isConflict)
}

// view runs fn in the bound transaction or in a read-only one.
func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.txn != nil {
		return fn(s.txn)
	}
	return s.db.View(fn)
}

// nextSeq returns the next message sequence number, starting at 1.
func (s *Store) nextSeq() (int64, error) {
	n, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("failed to advance message sequence: %w", err)
	}
	return int64(n) + 1, nil
}

func isConflict(err error) bool {
	return errors.Is(err, badger.ErrConflict)
}

// badgerLogger routes Badger's internal logging through slog. Badger is chatty
// at info level, so info is demoted to debug.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
