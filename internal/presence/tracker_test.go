package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nfrund/batepapo/internal/domain"
	"github.com/nfrund/batepapo/internal/messages"
	"github.com/nfrund/batepapo/internal/sanitize"
	"github.com/nfrund/batepapo/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     domain.Store
	tracker   *Tracker
	log       *messages.Log
	clock     *testutils.Clock
	publisher *testutils.Publisher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	store := testutils.NewMemoryStore(t)
	clock := testutils.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	publisher := &testutils.Publisher{}
	san := sanitize.NewForLocale("pt-BR")
	log := messages.NewLog(store, san, messages.WithClock(clock.Now), messages.WithPublisher(publisher))

	opts = append([]Option{WithClock(clock.Now), WithPublisher(publisher)}, opts...)
	return &fixture{
		store:     store,
		tracker:   NewTracker(store, log, san, opts...),
		log:       log,
		clock:     clock,
		publisher: publisher,
	}
}

func (f *fixture) statusMessages(t *testing.T) []*domain.Message {
	t.Helper()
	all, err := f.store.Messages().List(context.Background())
	require.NoError(t, err)
	var out []*domain.Message
	for _, m := range all {
		if m.Type == domain.TypeStatus {
			out = append(out, m)
		}
	}
	return out
}

func TestTracker_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates participant and join message", func(t *testing.T) {
		f := newFixture(t)

		p, err := f.tracker.Register(ctx, "  ana <script>x</script>")
		require.NoError(t, err)
		assert.Equal(t, "ana", p.Name)
		assert.Equal(t, f.clock.Now(), p.LastSeen)

		all, err := f.tracker.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "ana", all[0].Name)

		status := f.statusMessages(t)
		require.Len(t, status, 1)
		assert.Equal(t, "ana", status[0].From)
		assert.Equal(t, domain.Broadcast, status[0].To)
		assert.Equal(t, domain.StatusJoined, status[0].Text)

		assert.Equal(t, []string{messages.EventCreated.Name(), EventJoined.Name()}, f.publisher.Topics())
	})

	t.Run("names differing only by case collide", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.tracker.Register(ctx, "maria")
		require.NoError(t, err)

		_, err = f.tracker.Register(ctx, "MARIA")
		assert.ErrorIs(t, err, domain.ErrAlreadyTaken)

		all, err := f.tracker.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		assert.Len(t, f.statusMessages(t), 1)
	})

	t.Run("empty name is a validation error", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.tracker.Register(ctx, "  <b></b> ")
		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "name", verr.Fields[0].Field)
	})

	t.Run("concurrent registrations of one name", func(t *testing.T) {
		f := newFixture(t)

		names := []string{"joão", "JOÃO", "João", "joÃo"}
		var wg sync.WaitGroup
		errs := make([]error, len(names))
		for i, name := range names {
			wg.Add(1)
			go func(i int, name string) {
				defer wg.Done()
				_, errs[i] = f.tracker.Register(ctx, name)
			}(i, name)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrAlreadyTaken)
		}
		assert.Equal(t, 1, wins)
		assert.Len(t, f.statusMessages(t), 1)
	})
}

func TestTracker_Touch(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes last seen", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.tracker.Register(ctx, "ana")
		require.NoError(t, err)

		f.clock.Advance(7 * time.Second)
		require.NoError(t, f.tracker.Touch(ctx, "ana"))

		p, err := f.tracker.Lookup(ctx, "ana")
		require.NoError(t, err)
		assert.True(t, p.LastSeen.Equal(f.clock.Now()))
	})

	t.Run("unknown name is not found and writes nothing", func(t *testing.T) {
		f := newFixture(t)

		err := f.tracker.Touch(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		all, err := f.tracker.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
		assert.Empty(t, f.statusMessages(t))
	})

	t.Run("lookup is exact", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.tracker.Register(ctx, "ana")
		require.NoError(t, err)

		assert.ErrorIs(t, f.tracker.Touch(ctx, "Ana"), domain.ErrNotFound)
	})
}

func TestTracker_EvictStale(t *testing.T) {
	ctx := context.Background()

	t.Run("evicts only stale participants with one departure each", func(t *testing.T) {
		f := newFixture(t, WithStaleThreshold(10*time.Second))

		for _, name := range []string{"carol", "ana", "bob"} {
			_, err := f.tracker.Register(ctx, name)
			require.NoError(t, err)
		}
		f.clock.Advance(8 * time.Second)
		require.NoError(t, f.tracker.Touch(ctx, "bob"))
		f.clock.Advance(3 * time.Second)

		report, err := f.tracker.EvictStale(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Checked)
		assert.Equal(t, []string{"ana", "carol"}, report.Evicted)
		assert.Empty(t, report.Failed)
		assert.NoError(t, report.Err())

		remaining, err := f.tracker.List(ctx)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, "bob", remaining[0].Name)

		var departures []string
		for _, m := range f.statusMessages(t) {
			if m.Text == domain.StatusLeft {
				departures = append(departures, m.From)
				assert.Equal(t, domain.Broadcast, m.To)
			}
		}
		assert.Equal(t, []string{"ana", "carol"}, departures)
	})

	t.Run("exactly at the threshold is not stale", func(t *testing.T) {
		f := newFixture(t, WithStaleThreshold(10*time.Second))
		_, err := f.tracker.Register(ctx, "ana")
		require.NoError(t, err)

		f.clock.Advance(10 * time.Second)
		report, err := f.tracker.EvictStale(ctx)
		require.NoError(t, err)
		assert.Empty(t, report.Evicted)
	})

	t.Run("second pass finds nothing to do", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.tracker.Register(ctx, "ana")
		require.NoError(t, err)
		f.clock.Advance(time.Minute)

		_, err = f.tracker.EvictStale(ctx)
		require.NoError(t, err)
		report, err := f.tracker.EvictStale(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Checked)

		left := 0
		for _, m := range f.statusMessages(t) {
			if m.Text == domain.StatusLeft {
				left++
			}
		}
		assert.Equal(t, 1, left)
	})

	t.Run("one failure does not stop the pass", func(t *testing.T) {
		store := testutils.NewMemoryStore(t)
		clock := testutils.NewClock(time.Now().UTC())
		san := sanitize.NewForLocale("pt-BR")
		log := &flakyLog{Log: messages.NewLog(store, san), failFor: "bob"}
		tracker := NewTracker(store, log, san, WithClock(clock.Now))

		for _, name := range []string{"ana", "bob", "carol"} {
			_, err := tracker.Register(ctx, name)
			require.NoError(t, err)
		}
		clock.Advance(time.Minute)

		report, err := tracker.EvictStale(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"ana", "carol"}, report.Evicted)
		require.Contains(t, report.Failed, "bob")
		assert.Error(t, report.Err())

		remaining, err := tracker.List(ctx)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, "bob", remaining[0].Name, "failed eviction rolls back")
	})

	races := []struct {
		name   string
		after  func(t *testing.T, f *fixture, p *domain.Participant)
		remain []string
	}{
		{"participant left after the snapshot", func(t *testing.T, f *fixture, p *domain.Participant) {
			require.NoError(t, f.store.Participants().Delete(ctx, p.ID))
		}, nil},
		{"participant touched after the snapshot", func(t *testing.T, f *fixture, p *domain.Participant) {
			require.NoError(t, f.store.Participants().Touch(ctx, p.ID, f.clock.Now()))
		}, []string{"ana"}},
		{"name taken by someone else after the snapshot", func(t *testing.T, f *fixture, p *domain.Participant) {
			require.NoError(t, f.store.Participants().Delete(ctx, p.ID))
			_, err := f.store.Participants().Create(ctx, &domain.Participant{Name: p.Name, NameKey: p.NameKey, LastSeen: f.clock.Now().Add(-time.Hour)})
			require.NoError(t, err)
		}, []string{"ana"}},
	}
	for _, tt := range races {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p, err := f.tracker.Register(ctx, "ana")
			require.NoError(t, err)
			f.clock.Advance(time.Minute)

			store := &racingStore{Store: f.store, afterList: func() { tt.after(t, f, p) }}
			tracker := NewTracker(store, f.log, sanitize.NewForLocale("pt-BR"),
				WithClock(f.clock.Now), WithPublisher(f.publisher))

			report, err := tracker.EvictStale(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, report.Checked)
			assert.Empty(t, report.Evicted)
			assert.Empty(t, report.Failed)
			assert.Equal(t, 1, store.listCalls())

			for _, m := range f.statusMessages(t) {
				assert.NotEqual(t, domain.StatusLeft, m.Text, "no departure for %s", m.From)
			}
			assert.NotContains(t, f.publisher.Topics(), EventLeft.Name())

			remaining, err := f.tracker.List(ctx)
			require.NoError(t, err)
			var names []string
			for _, r := range remaining {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.remain, names)
		})
	}

	t.Run("canceled context fails the remaining participants", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.tracker.Register(ctx, "ana")
		require.NoError(t, err)
		f.clock.Advance(time.Minute)

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		report, _ := f.tracker.EvictStale(canceled)
		assert.Empty(t, report.Evicted)
	})
}

func TestEndToEnd_RoomFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.tracker.Register(ctx, "ana")
	require.NoError(t, err)
	_, err = f.tracker.Register(ctx, "bob")
	require.NoError(t, err)

	all, err := f.tracker.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.log.Append(ctx, "ana", domain.MessageInput{To: domain.Broadcast, Text: "hi", Type: domain.TypePublic})
	require.NoError(t, err)
	_, err = f.log.Append(ctx, "bob", domain.MessageInput{To: "ana", Text: "secret", Type: domain.TypePrivate})
	require.NoError(t, err)

	contains := func(viewer, text string) bool {
		msgs, err := f.log.ListVisibleTo(ctx, viewer, 0)
		require.NoError(t, err)
		for _, m := range msgs {
			if m.Text == text {
				return true
			}
		}
		return false
	}

	assert.True(t, contains("bob", "hi"))
	assert.False(t, contains("carol", "secret"))
	assert.True(t, contains("ana", "secret"))
	assert.True(t, contains("bob", "secret"))
	assert.True(t, contains("carol", domain.StatusJoined))
}

// flakyLog fails to append the departure of one participant.
type flakyLog struct {
	*messages.Log
	failFor string
}

func (l *flakyLog) AppendStatus(ctx context.Context, tx domain.Store, from, text string, at time.Time) (*domain.Message, error) {
	if from == l.failFor && text == domain.StatusLeft {
		return nil, errors.New("disk full")
	}
	return l.Log.AppendStatus(ctx, tx, from, text, at)
}

// racingStore runs afterList once, right after the participant list has been
// read, to change the room between a sweep's snapshot and its evictions.
type racingStore struct {
	domain.Store
	afterList func()

	mu    sync.Mutex
	calls int
}

func (s *racingStore) Participants() domain.ParticipantRepository {
	return racingParticipants{ParticipantRepository: s.Store.Participants(), s: s}
}

func (s *racingStore) listed() {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()
	if first && s.afterList != nil {
		s.afterList()
	}
}

func (s *racingStore) listCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type racingParticipants struct {
	domain.ParticipantRepository
	s *racingStore
}

func (r racingParticipants) List(ctx context.Context) ([]*domain.Participant, error) {
	out, err := r.ParticipantRepository.List(ctx)
	if err == nil {
		r.s.listed()
	}
	return out, err
}
