package testutils

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nfrund/batepapo/internal/database/badgerstore"
	"github.com/nfrund/batepapo/internal/pubsub"
)

// NewMemoryStore opens an in-memory Badger store closed at test cleanup.
func NewMemoryStore(t *testing.T) *badgerstore.Store {
	t.Helper()

	store, err := badgerstore.Open("", slog.Default())
	if err != nil {
		t.Fatalf("failed to open memory store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})
	return store
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Publisher records every published message.
type Publisher struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (p *Publisher) Publish(ctx context.Context, msg pubsub.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *Publisher) Close() error {
	return nil
}

// Messages returns a copy of what was published so far.
func (p *Publisher) Messages() []pubsub.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]pubsub.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Topics returns the topic of every published message, in order.
func (p *Publisher) Topics() []string {
	msgs := p.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Topic
	}
	return out
}
