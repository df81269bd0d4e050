// Package messages implements the room's message log: an append-ordered
// sequence of public, private and status messages.
package messages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nfrund/batepapo/internal/domain"
	"github.com/nfrund/batepapo/internal/pubsub"
	"github.com/nfrund/batepapo/internal/sanitize"
	"github.com/samber/lo"
)

// Log is the message log. It keeps no state of its own; ordering comes from
// the sequence the store assigns on append.
type Log struct {
	store     domain.Store
	sanitizer *sanitize.Sanitizer
	publisher pubsub.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock sets the time source used to stamp messages. Defaults to UTC now.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithPublisher sets where created, updated and deleted events are published.
// Without one, events are dropped.
func WithPublisher(p pubsub.Publisher) Option {
	return func(l *Log) { l.publisher = p }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// NewLog creates a message log over store.
func NewLog(store domain.Store, san *sanitize.Sanitizer, opts ...Option) *Log {
	l := &Log{
		store:     store,
		sanitizer: san,
		publisher: pubsub.Nop{},
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("service", "messages")
	return l
}

// clean sanitizes the free text fields of in and validates the result.
func (l *Log) clean(in domain.MessageInput) (domain.MessageInput, error) {
	in.To = l.sanitizer.Text(in.To)
	in.Text = l.sanitizer.Text(in.Text)
	if err := in.Validate(); err != nil {
		return in, err
	}
	return in, nil
}

// Append stores a message sent by from. It fails with a
// *domain.ValidationError listing every bad field, or with
// domain.ErrUnknownSender when from is not registered right now.
func (l *Log) Append(ctx context.Context, from string, in domain.MessageInput) (*domain.Message, error) {
	in, err := l.clean(in)
	if err != nil {
		return nil, err
	}

	from = l.sanitizer.Text(from)
	if from == "" {
		return nil, domain.ErrUnknownSender
	}
	sender, err := l.store.Participants().FindByName(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to check sender: %w", err)
	}
	if sender == nil {
		return nil, domain.ErrUnknownSender
	}

	// The sender may be evicted from here on; From is a snapshot and the
	// message is kept anyway.
	now := l.now()
	m, err := l.store.Messages().Append(ctx, &domain.Message{
		ID:        domain.NewID(),
		From:      sender.Name,
		To:        in.To,
		Text:      in.Text,
		Type:      in.Type,
		Time:      domain.FormatTime(now),
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	l.Announce(ctx, m)
	return m, nil
}

// AppendStatus writes a room status message through tx. Callers announce it
// with Announce once their transaction has committed.
func (l *Log) AppendStatus(ctx context.Context, tx domain.Store, from, text string, at time.Time) (*domain.Message, error) {
	m := domain.NewStatusMessage(from, text, at)
	m.ID = domain.NewID()
	return tx.Messages().Append(ctx, m)
}

// Announce publishes m as a newly created message.
func (l *Log) Announce(ctx context.Context, m *domain.Message) {
	l.publish(ctx, EventCreated, m)
}

// ListVisibleTo returns, in append order, the messages viewer may read.
// With limit > 0 only the last limit visible messages are returned.
func (l *Log) ListVisibleTo(ctx context.Context, viewer string, limit int) ([]*domain.Message, error) {
	all, err := l.store.Messages().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	viewer = l.sanitizer.Text(viewer)
	visible := lo.Filter(all, func(m *domain.Message, _ int) bool {
		return m.VisibleTo(viewer)
	})

	if limit > 0 && len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}
	return visible, nil
}

// UpdateOwn replaces recipient, text and type of the message id and stamps a
// fresh time. Only the author may do it.
func (l *Log) UpdateOwn(ctx context.Context, id, viewer string, in domain.MessageInput) (*domain.Message, error) {
	current, err := l.authorize(ctx, id, viewer)
	if err != nil {
		return nil, err
	}

	in, err = l.clean(in)
	if err != nil {
		return nil, err
	}

	next := *current
	next.To = in.To
	next.Text = in.Text
	next.Type = in.Type
	next.Time = domain.FormatTime(l.now())

	updated, err := l.store.Messages().Update(ctx, &next)
	if err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}

	l.publish(ctx, EventUpdated, updated)
	return updated, nil
}

// DeleteOwn removes the message id. Only the author may do it.
func (l *Log) DeleteOwn(ctx context.Context, id, viewer string) error {
	current, err := l.authorize(ctx, id, viewer)
	if err != nil {
		return err
	}

	if err := l.store.Messages().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	l.publish(ctx, EventDeleted, current)
	return nil
}

// authorize loads the message id and checks that viewer wrote it.
func (l *Log) authorize(ctx context.Context, id, viewer string) (*domain.Message, error) {
	m, err := l.store.Messages().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	if !domain.CanModify(l.sanitizer.Text(viewer), m) {
		l.logger.InfoContext(ctx, "Modification denied", "message_id", id, "actor", viewer)
		return nil, domain.ErrUnauthorized
	}
	return m, nil
}

func (l *Log) publish(ctx context.Context, event pubsub.Event[domain.Message], m *domain.Message) {
	if m == nil {
		return
	}
	if err := pubsub.Publish(ctx, l.publisher, event, m.From, *m); err != nil {
		l.logger.WarnContext(ctx, "Failed to publish message event", "topic", event.Name(), "error", err)
	}
}
