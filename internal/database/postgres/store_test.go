package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nfrund/batepapo/internal/database/storetest"
	"github.com/nfrund/batepapo/internal/domain"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, Options{}), mock
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

func TestParticipants_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectExec(q("INSERT INTO participants (id, name, name_key, last_seen)")).
			WithArgs("p1", "Ana", "ana", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		got, err := store.Participants().Create(ctx, &domain.Participant{ID: "p1", Name: "Ana", NameKey: "ana", LastSeen: time.Now()})
		require.NoError(t, err)
		assert.Equal(t, "p1", got.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("generates id", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectExec(q("INSERT INTO participants")).
			WithArgs(sqlmock.AnyArg(), "Bia", "bia", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		got, err := store.Participants().Create(ctx, &domain.Participant{Name: "Bia", NameKey: "bia"})
		require.NoError(t, err)
		assert.NotEmpty(t, got.ID)
	})

	t.Run("unique violation means taken", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectExec(q("INSERT INTO participants")).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "participants_name_key_unique"})

		_, err := store.Participants().Create(ctx, &domain.Participant{Name: "Ana", NameKey: "ana"})
		assert.ErrorIs(t, err, domain.ErrAlreadyTaken)
	})

	t.Run("other failures are wrapped", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		cause := errors.New("db down")
		mock.ExpectExec(q("INSERT INTO participants")).WillReturnError(cause)

		_, err := store.Participants().Create(ctx, &domain.Participant{Name: "Ana", NameKey: "ana"})
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, domain.ErrAlreadyTaken)
	})
}

func TestParticipants_Find(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectQuery(q("FROM participants WHERE name = $1")).
			WithArgs("Ana").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "name_key", "last_seen"}).AddRow("p1", "Ana", "ana", now))

		got, err := store.Participants().FindByName(ctx, "Ana")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "p1", got.ID)
		assert.Equal(t, now, got.LastSeen)
	})

	t.Run("plain read does not lock", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectQuery(q("FROM participants WHERE name = $1") + "$").
			WithArgs("Ana").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "name_key", "last_seen"}).AddRow("p1", "Ana", "ana", now))

		_, err := store.Participants().FindByName(ctx, "Ana")
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("read inside a transaction locks the row", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("FROM participants WHERE name = $1 FOR UPDATE")).
			WithArgs("Ana").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "name_key", "last_seen"}).AddRow("p1", "Ana", "ana", now))
		mock.ExpectExec(q("DELETE FROM participants WHERE id = $1")).WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithTransaction(ctx, func(ctx context.Context, tx domain.Store) error {
			p, err := tx.Participants().FindByName(ctx, "Ana")
			if err != nil {
				return err
			}
			return tx.Participants().Delete(ctx, p.ID)
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent is nil", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectQuery(q("FROM participants WHERE name_key = $1")).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		got, err := store.Participants().FindByNameKey(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestParticipants_Touch(t *testing.T) {
	ctx := context.Background()

	t.Run("updates by id", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectExec(q("UPDATE participants SET last_seen = $2 WHERE id = $1")).
			WithArgs("p1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Participants().Touch(ctx, "p1", time.Now()))
	})

	t.Run("missing participant", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectExec(q("UPDATE participants")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.Participants().Touch(ctx, "gone", time.Now())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestParticipants_List(t *testing.T) {
	store, mock := newStoreWithMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(q("FROM participants ORDER BY name, id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "name_key", "last_seen"}).
			AddRow("p1", "Ana", "ana", now).
			AddRow("p2", "Bia", "bia", now))

	all, err := store.Participants().List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Bia", all[1].Name)
}

func messageRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"seq", "id", "sender", "recipient", "body", "kind", "time_label", "created_at"})
}

func TestMessages_Append(t *testing.T) {
	store, mock := newStoreWithMock(t)
	mock.ExpectQuery(q("INSERT INTO messages")).
		WithArgs("m1", "Ana", domain.Broadcast, "oi", "message", "10:00:00", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(42)))

	got, err := store.Messages().Append(context.Background(), &domain.Message{
		ID: "m1", From: "Ana", To: domain.Broadcast, Text: "oi", Type: domain.TypePublic, Time: "10:00:00",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessages_Update(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("returns stored row", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectQuery(q("UPDATE messages SET recipient = $2, body = $3, kind = $4, time_label = $5")).
			WithArgs("m1", "Bia", "novo", "private_message", "11:00:00").
			WillReturnRows(messageRows().AddRow(int64(7), "m1", "Ana", "Bia", "novo", "private_message", "11:00:00", now))

		got, err := store.Messages().Update(ctx, &domain.Message{ID: "m1", To: "Bia", Text: "novo", Type: domain.TypePrivate, Time: "11:00:00"})
		require.NoError(t, err)
		assert.Equal(t, int64(7), got.Seq)
		assert.Equal(t, "Ana", got.From)
		assert.Equal(t, domain.TypePrivate, got.Type)
	})

	t.Run("missing message", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectQuery(q("UPDATE messages")).WillReturnError(sql.ErrNoRows)

		_, err := store.Messages().Update(ctx, &domain.Message{ID: "gone"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestMessages_ListAndFind(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(q("FROM messages ORDER BY seq")).
		WillReturnRows(messageRows().
			AddRow(int64(1), "m1", "Ana", domain.Broadcast, "entra na sala...", "status", "10:00:00", now).
			AddRow(int64(2), "m2", "Ana", domain.Broadcast, "oi", "message", "10:00:01", now))
	mock.ExpectQuery(q("FROM messages WHERE id = $1")).
		WithArgs("m9").
		WillReturnError(sql.ErrNoRows)

	all, err := store.Messages().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.TypeStatus, all[0].Type)

	missing, err := store.Messages().FindByID(ctx, "m9")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_WithTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(q("DELETE FROM messages WHERE id = $1")).WithArgs("m1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithTransaction(ctx, func(ctx context.Context, tx domain.Store) error {
			return tx.Messages().Delete(ctx, "m1")
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectExec(q("DELETE FROM participants WHERE id = $1")).WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		err := store.WithTransaction(ctx, func(ctx context.Context, tx domain.Store) error {
			if err := tx.Participants().Delete(ctx, "p1"); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested call joins the outer transaction", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := store.WithTransaction(ctx, func(ctx context.Context, tx domain.Store) error {
			return tx.WithTransaction(ctx, func(context.Context, domain.Store) error { return nil })
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRunMigrations_UsesEmbeddedDir(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, RunMigrations(context.Background(), nil))
	assert.Equal(t, "migrations", gotDir)

	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestStore_Contract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	storetest.Run(t, func(t *testing.T) domain.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := Open(ctx, dsn, Options{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close(context.Background()) })
		return store
	})
}
