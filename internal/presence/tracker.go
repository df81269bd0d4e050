// Package presence tracks which participants are in the room and evicts the
// ones that stopped reporting activity.
package presence

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nfrund/batepapo/internal/domain"
	"github.com/nfrund/batepapo/internal/pubsub"
	"github.com/nfrund/batepapo/internal/sanitize"
)

const (
	// DefaultStaleThreshold is how long a participant may stay silent before
	// the sweeper evicts it.
	DefaultStaleThreshold = 10 * time.Second

	// DefaultSweepInterval is how often the sweeper looks for stale participants.
	DefaultSweepInterval = 15 * time.Second
)

// StatusLog records room status events on behalf of the tracker.
type StatusLog interface {
	// AppendStatus writes a status message through tx without notifying
	// anyone.
	AppendStatus(ctx context.Context, tx domain.Store, from, text string, at time.Time) (*domain.Message, error)

	// Announce tells live subscribers about a committed message.
	Announce(ctx context.Context, m *domain.Message)
}

// Tracker owns participant liveness. All state lives in the store.
type Tracker struct {
	store          domain.Store
	log            StatusLog
	sanitizer      *sanitize.Sanitizer
	publisher      pubsub.Publisher
	logger         *slog.Logger
	now            func() time.Time
	staleThreshold time.Duration
}

// Option is a function that configures a Tracker.
type Option func(*Tracker)

// WithStaleThreshold sets a custom stale threshold for the tracker.
func WithStaleThreshold(d time.Duration) Option {
	return func(t *Tracker) {
		t.staleThreshold = d
	}
}

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithPublisher sets where presence events are published.
func WithPublisher(p pubsub.Publisher) Option {
	return func(t *Tracker) {
		t.publisher = p
	}
}

// WithLogger sets the tracker's logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// NewTracker creates a presence tracker over store.
func NewTracker(store domain.Store, log StatusLog, san *sanitize.Sanitizer, opts ...Option) *Tracker {
	t := &Tracker{
		store:          store,
		log:            log,
		sanitizer:      san,
		publisher:      pubsub.Nop{},
		logger:         slog.Default(),
		now:            Now,
		staleThreshold: DefaultStaleThreshold,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("service", "presence")
	return t
}

// StaleThreshold returns the configured inactivity limit.
func (t *Tracker) StaleThreshold() time.Duration {
	return t.staleThreshold
}

// Register adds a participant to the room and records its join message.
// Names are compared by their folded key, so "maria" and "Maria" collide.
func (t *Tracker) Register(ctx context.Context, rawName string) (*domain.Participant, error) {
	p := &domain.Participant{Name: t.sanitizer.Text(rawName)}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.NameKey = t.sanitizer.Key(p.Name)

	var joined *domain.Message
	err := t.store.WithTransaction(ctx, func(ctx context.Context, tx domain.Store) error {
		existing, err := tx.Participants().FindByNameKey(ctx, p.NameKey)
		if err != nil {
			return fmt.Errorf("failed to check name: %w", err)
		}
		if existing != nil {
			return domain.ErrAlreadyTaken
		}

		now := t.now()
		p.ID = domain.NewID()
		p.LastSeen = now
		created, err := tx.Participants().Create(ctx, p)
		if err != nil {
			return err
		}
		p = created

		joined, err = t.log.AppendStatus(ctx, tx, p.Name, domain.StatusJoined, now)
		if err != nil {
			return fmt.Errorf("failed to record join: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyTaken) {
			t.logger.InfoContext(ctx, "Name already taken", "name", p.Name)
		}
		return nil, err
	}

	t.logger.InfoContext(ctx, "Participant joined", "name", p.Name, "id", p.ID)
	t.log.Announce(ctx, joined)
	t.publish(ctx, EventJoined, ParticipantEvent{Name: p.Name, At: p.LastSeen})
	return p, nil
}

// Touch marks the participant with the given name as active. It returns
// domain.ErrNotFound without writing anything when the name is unknown.
func (t *Tracker) Touch(ctx context.Context, name string) error {
	name = t.sanitizer.Text(name)
	p, err := t.store.Participants().FindByName(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to find participant: %w", err)
	}
	if p == nil {
		t.logger.DebugContext(ctx, "Touch for unknown participant", "name", name)
		return domain.ErrNotFound
	}
	return t.store.Participants().Touch(ctx, p.ID, t.now())
}

// List returns every registered participant.
func (t *Tracker) List(ctx context.Context) ([]*domain.Participant, error) {
	return t.store.Participants().List(ctx)
}

// Lookup returns the participant registered under the exact name, or
// domain.ErrNotFound.
func (t *Tracker) Lookup(ctx context.Context, name string) (*domain.Participant, error) {
	p, err := t.store.Participants().FindByName(ctx, t.sanitizer.Text(name))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// EvictionReport summarizes one eviction pass.
type EvictionReport struct {
	Checked int
	Evicted []string
	Failed  map[string]error
}

// Err joins every per-participant failure.
func (r EvictionReport) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for name, err := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return errors.Join(errs...)
}

// EvictStale removes every participant silent for longer than the stale
// threshold. Each one gets a departure message before it is deleted. A
// failure on one participant is recorded in the report and the pass goes on.
// The returned error is only set when the participant list cannot be read.
func (t *Tracker) EvictStale(ctx context.Context) (EvictionReport, error) {
	report := EvictionReport{Failed: map[string]error{}}

	snapshot, err := t.store.Participants().List(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list participants: %w", err)
	}
	report.Checked = len(snapshot)

	now := t.now()
	stale := make([]*domain.Participant, 0, len(snapshot))
	for _, p := range snapshot {
		if p.IsStale(now, t.staleThreshold) {
			stale = append(stale, p)
		}
	}
	slices.SortStableFunc(stale, func(a, b *domain.Participant) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})

	for _, p := range stale {
		if err := ctx.Err(); err != nil {
			report.Failed[p.Name] = err
			continue
		}
		left, err := t.evict(ctx, p, now)
		if err != nil {
			t.logger.ErrorContext(ctx, "Failed to evict participant", "name", p.Name, "id", p.ID, "error", err)
			report.Failed[p.Name] = err
			continue
		}
		if left == nil {
			continue
		}
		report.Evicted = append(report.Evicted, p.Name)
		t.logger.InfoContext(ctx, "Participant evicted", "name", p.Name, "last_seen", p.LastSeen)
		t.log.Announce(ctx, left)
		t.publish(ctx, EventLeft, ParticipantEvent{Name: p.Name, At: now, Reason: ReasonInactive})
	}

	return report, nil
}

// evict writes the departure message and deletes p. It re-reads p first and
// returns a nil message when p is gone, replaced or active again.
func (t *Tracker) evict(ctx context.Context, p *domain.Participant, now time.Time) (*domain.Message, error) {
	var left *domain.Message
	err := t.store.WithTransaction(ctx, func(ctx context.Context, tx domain.Store) error {
		current, err := tx.Participants().FindByName(ctx, p.Name)
		if err != nil {
			return err
		}
		if current == nil || current.ID != p.ID || !current.IsStale(now, t.staleThreshold) {
			return nil
		}

		left, err = t.log.AppendStatus(ctx, tx, p.Name, domain.StatusLeft, now)
		if err != nil {
			return fmt.Errorf("failed to record departure: %w", err)
		}
		return tx.Participants().Delete(ctx, p.ID)
	})
	if err != nil {
		return nil, err
	}
	return left, nil
}

func (t *Tracker) publish(ctx context.Context, event pubsub.Event[ParticipantEvent], payload ParticipantEvent) {
	if err := pubsub.Publish(ctx, t.publisher, event, payload.Name, payload); err != nil {
		t.logger.WarnContext(ctx, "Failed to publish presence event", "topic", event.Name(), "error", err)
	}
}
