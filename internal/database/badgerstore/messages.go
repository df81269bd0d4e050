package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/nfrund/batepapo/internal/database"
	"github.com/nfrund/batepapo/internal/domain"
)

const (
	messagePrefix   = "message:"
	messageIDPrefix = "message-id:"
)

// messageDoc is the stored encoding of a message.
type messageDoc struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	Time      string    `json:"time"`
	CreatedAt time.Time `json:"created_at"`
}

func (d messageDoc) toDomain() *domain.Message {
	return &domain.Message{
		ID:        d.ID,
		Seq:       d.Seq,
		From:      d.From,
		To:        d.To,
		Text:      d.Text,
		Type:      domain.MessageType(d.Type),
		Time:      d.Time,
		CreatedAt: d.CreatedAt,
	}
}

// messageKey zero-pads seq so lexical key order equals append order.
func messageKey(seq int64) string {
	return fmt.Sprintf("%s%020d", messagePrefix, seq)
}

type messages struct {
	s *Store
}

func (r messages) Append(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	if m == nil {
		return nil, errors.New("message to append cannot be nil")
	}

	seq, err := r.s.nextSeq()
	if err != nil {
		return nil, err
	}

	doc := messageDoc{
		ID: m.ID, Seq: seq, From: m.From, To: m.To, Text: m.Text,
		Type: string(m.Type), Time: m.Time, CreatedAt: m.CreatedAt,
	}
	if doc.ID == "" {
		doc.ID = domain.NewID()
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal failed: %w", err)
	}

	key := messageKey(seq)
	err = r.s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), data); err != nil {
			return err
		}
		return txn.Set([]byte(messageIDPrefix+doc.ID), []byte(key))
	})
	if err != nil {
		return nil, database.WrapError(err, "failed to append message")
	}
	return doc.toDomain(), nil
}

func (r messages) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var found *messageDoc
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		var err error
		found, _, err = getMessage(txn, id)
		return err
	})
	if err != nil {
		return nil, database.WrapError(err, "failed to find message")
	}
	if found == nil {
		return nil, nil
	}
	return found.toDomain(), nil
}

// List returns the whole log in append order.
func (r messages) List(ctx context.Context) ([]*domain.Message, error) {
	var out []*domain.Message
	prefix := []byte(messagePrefix)

	err := r.s.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var doc messageDoc
				if err := json.Unmarshal(v, &doc); err != nil {
					return fmt.Errorf("failed to unmarshal message: %w", err)
				}
				out = append(out, doc.toDomain())
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, database.WrapError(err, "failed to list messages")
	}
	return out, nil
}

// Update rewrites the message in place; ID, Seq, From and CreatedAt are kept.
func (r messages) Update(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	if m == nil || m.ID == "" {
		return nil, database.NewDBError(database.ErrInvalidID, "message and message ID are required for update")
	}

	var updated messageDoc
	err := r.s.update(ctx, func(txn *badger.Txn) error {
		doc, key, err := getMessage(txn, m.ID)
		if err != nil {
			return err
		}
		if doc == nil {
			return domain.ErrNotFound
		}

		doc.To = m.To
		doc.Text = m.Text
		doc.Type = string(m.Type)
		doc.Time = m.Time
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		updated = *doc
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return nil, database.WrapError(err, "failed to update message")
	}
	return updated.toDomain(), nil
}

func (r messages) Delete(ctx context.Context, id string) error {
	err := r.s.update(ctx, func(txn *badger.Txn) error {
		doc, key, err := getMessage(txn, id)
		if err != nil || doc == nil {
			return err
		}
		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}
		return txn.Delete([]byte(messageIDPrefix + id))
	})
	if err != nil {
		return database.WrapError(err, "failed to delete message")
	}
	return nil
}

// getMessage resolves id through the id index. It returns a nil doc when the
// message does not exist.
func getMessage(txn *badger.Txn, id string) (*messageDoc, string, error) {
	key, err := getString(txn, messageIDPrefix+id)
	if err != nil || key == "" {
		return nil, "", err
	}

	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	var doc messageDoc
	if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &doc) }); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &doc, key, nil
}
