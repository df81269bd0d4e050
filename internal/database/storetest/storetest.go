// Package storetest holds the behavior every domain.Store implementation must
// share. Driver packages run it from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nfrund/batepapo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a ready store. It must register its own cleanup.
type Factory func(t *testing.T) domain.Store

// Run executes the full store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("participants", func(t *testing.T) { testParticipants(t, newStore(t)) })
	t.Run("messages", func(t *testing.T) { testMessages(t, newStore(t)) })
	t.Run("concurrent registration", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
}

func uniqueName(prefix string) string {
	return prefix + "-" + domain.NewID()
}

func newParticipant(name string, at time.Time) *domain.Participant {
	return &domain.Participant{Name: name, NameKey: "key:" + name, LastSeen: at}
}

func testParticipants(t *testing.T, store domain.Store) {
	ctx := context.Background()
	repo := store.Participants()
	now := time.Now().UTC().Truncate(time.Millisecond)

	name := uniqueName("ana")
	created, err := repo.Create(ctx, newParticipant(name, now))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, name, created.Name)

	t.Run("find by exact name", func(t *testing.T) {
		got, err := repo.FindByName(ctx, name)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.ID, got.ID)
		assert.WithinDuration(t, now, got.LastSeen, time.Millisecond)
	})

	t.Run("find by key", func(t *testing.T) {
		got, err := repo.FindByNameKey(ctx, "key:"+name)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("absent lookups return nil", func(t *testing.T) {
		got, err := repo.FindByName(ctx, uniqueName("ghost"))
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = repo.FindByNameKey(ctx, uniqueName("ghost"))
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("duplicate key is rejected", func(t *testing.T) {
		dup := &domain.Participant{Name: name + "-other", NameKey: "key:" + name, LastSeen: now}
		_, err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, domain.ErrAlreadyTaken)
	})

	t.Run("touch updates last seen", func(t *testing.T) {
		later := now.Add(5 * time.Second)
		require.NoError(t, repo.Touch(ctx, created.ID, later))

		got, err := repo.FindByName(ctx, name)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.WithinDuration(t, later, got.LastSeen, time.Millisecond)
	})

	t.Run("touch of missing participant", func(t *testing.T) {
		err := repo.Touch(ctx, domain.NewID(), now)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list contains participant", func(t *testing.T) {
		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.True(t, containsParticipant(all, created.ID))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, created.ID))
		require.NoError(t, repo.Delete(ctx, created.ID))

		got, err := repo.FindByName(ctx, name)
		require.NoError(t, err)
		assert.Nil(t, got)

		// The key is free again after deletion.
		_, err = repo.Create(ctx, newParticipant(name, now))
		require.NoError(t, err)
	})
}

func testMessages(t *testing.T, store domain.Store) {
	ctx := context.Background()
	repo := store.Messages()
	sender := uniqueName("bia")
	base := time.Now().UTC().Truncate(time.Millisecond)

	var appended []*domain.Message
	for i, text := range []string{"um", "dois", "tres"} {
		at := base.Add(time.Duration(i) * time.Millisecond)
		m, err := repo.Append(ctx, &domain.Message{
			From: sender, To: domain.Broadcast, Text: text, Type: domain.TypePublic,
			Time: domain.FormatTime(at), CreatedAt: at,
		})
		require.NoError(t, err)
		require.NotEmpty(t, m.ID)
		appended = append(appended, m)
	}

	t.Run("list keeps append order", func(t *testing.T) {
		all, err := repo.List(ctx)
		require.NoError(t, err)

		var mine []*domain.Message
		for _, m := range all {
			if m.From == sender {
				mine = append(mine, m)
			}
		}
		require.Len(t, mine, 3)
		assert.Equal(t, []string{"um", "dois", "tres"}, []string{mine[0].Text, mine[1].Text, mine[2].Text})
		assert.Less(t, mine[0].Seq, mine[1].Seq)
		assert.Less(t, mine[1].Seq, mine[2].Seq)
	})

	t.Run("find by id", func(t *testing.T) {
		got, err := repo.FindByID(ctx, appended[1].ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "dois", got.Text)
		assert.Equal(t, domain.TypePublic, got.Type)

		missing, err := repo.FindByID(ctx, domain.NewID())
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("update keeps identity", func(t *testing.T) {
		orig := appended[0]
		edit := *orig
		edit.Text = "editado"
		edit.To = "carla"
		edit.Type = domain.TypePrivate
		edit.Time = "23:59:59"

		updated, err := repo.Update(ctx, &edit)
		require.NoError(t, err)
		assert.Equal(t, orig.ID, updated.ID)
		assert.Equal(t, orig.From, updated.From)
		assert.Equal(t, orig.Seq, updated.Seq)
		assert.Equal(t, "editado", updated.Text)
		assert.Equal(t, domain.TypePrivate, updated.Type)

		got, err := repo.FindByID(ctx, orig.ID)
		require.NoError(t, err)
		assert.Equal(t, "carla", got.To)
		assert.Equal(t, "23:59:59", got.Time)
	})

	t.Run("update of missing message", func(t *testing.T) {
		_, err := repo.Update(ctx, &domain.Message{ID: domain.NewID(), Text: "x", To: domain.Broadcast, Type: domain.TypePublic})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		id := appended[2].ID
		require.NoError(t, repo.Delete(ctx, id))
		require.NoError(t, repo.Delete(ctx, id))

		got, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func testConcurrentCreate(t *testing.T, store domain.Store) {
	ctx := context.Background()
	repo := store.Participants()
	name := uniqueName("duda")
	now := time.Now().UTC()

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx, newParticipant(name, now))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, domain.ErrAlreadyTaken):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created, "exactly one registration wins")
	assert.Equal(t, workers-1, rejected)
}

func testTransactions(t *testing.T, store domain.Store) {
	if !store.Transactional() {
		t.Skip("store does not support transactions")
	}
	ctx := context.Background()
	name := uniqueName("eva")
	boom := errors.New("boom")

	err := store.WithTransaction(ctx, func(ctx context.Context, tx domain.Store) error {
		if _, err := tx.Participants().Create(ctx, newParticipant(name, time.Now())); err != nil {
			return err
		}
		_, err := tx.Messages().Append(ctx, domain.NewStatusMessage(name, domain.StatusJoined, time.Now()))
		if err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Participants().FindByName(ctx, name)
	require.NoError(t, err)
	assert.Nil(t, got, "rolled back participant must not be visible")

	all, err := store.Messages().List(ctx)
	require.NoError(t, err)
	for _, m := range all {
		assert.NotEqual(t, name, m.From, "rolled back message must not be visible")
	}

	err = store.WithTransaction(ctx, func(ctx context.Context, tx domain.Store) error {
		_, err := tx.Participants().Create(ctx, newParticipant(name, time.Now()))
		return err
	})
	require.NoError(t, err)

	got, err = store.Participants().FindByName(ctx, name)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func containsParticipant(all []*domain.Participant, id string) bool {
	for _, p := range all {
		if p.ID == id {
			return true
		}
	}
	return false
}
