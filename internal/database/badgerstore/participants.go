package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/nfrund/batepapo/internal/database"
	"github.com/nfrund/batepapo/internal/domain"
)

const (
	participantPrefix     = "participant:"
	participantKeyPrefix  = "participant-key:"
	participantNamePrefix = "participant-name:"
)

// participantDoc is the stored encoding of a participant.
type participantDoc struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	NameKey  string    `json:"name_key"`
	LastSeen time.Time `json:"last_seen"`
}

func (d participantDoc) toDomain() *domain.Participant {
	return &domain.Participant{ID: d.ID, Name: d.Name, NameKey: d.NameKey, LastSeen: d.LastSeen}
}

type participants struct {
	s *Store
}

// Create stores p and its lookup indexes. The name key index is read inside
// the same transaction, so concurrent registrations of one key conflict and
// the loser observes ErrAlreadyTaken on retry.
func (r participants) Create(ctx context.Context, p *domain.Participant) (*domain.Participant, error) {
	if p == nil {
		return nil, errors.New("participant to create cannot be nil")
	}

	doc := participantDoc{ID: p.ID, Name: p.Name, NameKey: p.NameKey, LastSeen: p.LastSeen}
	if doc.ID == "" {
		doc.ID = domain.NewID()
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal failed: %w", err)
	}

	err = r.s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(participantKeyPrefix + doc.NameKey)); err == nil {
			return domain.ErrAlreadyTaken
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set([]byte(participantPrefix+doc.ID), data); err != nil {
			return err
		}
		if err := txn.Set([]byte(participantKeyPrefix+doc.NameKey), []byte(doc.ID)); err != nil {
			return err
		}
		return txn.Set([]byte(participantNamePrefix+doc.Name), []byte(doc.ID))
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyTaken) {
			return nil, database.NewDBError(err, "failed to create participant")
		}
		return nil, database.WrapError(err, "failed to create participant")
	}

	return doc.toDomain(), nil
}

func (r participants) FindByName(ctx context.Context, name string) (*domain.Participant, error) {
	return r.findByIndex(ctx, participantNamePrefix+name)
}

func (r participants) FindByNameKey(ctx context.Context, key string) (*domain.Participant, error) {
	return r.findByIndex(ctx, participantKeyPrefix+key)
}

func (r participants) findByIndex(ctx context.Context, indexKey string) (*domain.Participant, error) {
	var found *participantDoc
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		id, err := getString(txn, indexKey)
		if err != nil || id == "" {
			return err
		}
		found, err = getParticipant(txn, id)
		return err
	})
	if err != nil {
		return nil, database.WrapError(err, "failed to find participant")
	}
	if found == nil {
		return nil, nil
	}
	return found.toDomain(), nil
}

func (r participants) Touch(ctx context.Context, id string, at time.Time) error {
	err := r.s.update(ctx, func(txn *badger.Txn) error {
		doc, err := getParticipant(txn, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return domain.ErrNotFound
		}
		doc.LastSeen = at
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		return txn.Set([]byte(participantPrefix+id), data)
	})
	if err != nil {
		return database.WrapError(err, "failed to touch participant")
	}
	return nil
}

func (r participants) Delete(ctx context.Context, id string) error {
	err := r.s.update(ctx, func(txn *badger.Txn) error {
		doc, err := getParticipant(txn, id)
		if err != nil || doc == nil {
			return err
		}

		for _, indexKey := range []string{participantKeyPrefix + doc.NameKey, participantNamePrefix + doc.Name} {
			owner, err := getString(txn, indexKey)
			if err != nil {
				return err
			}
			if owner == id {
				if err := txn.Delete([]byte(indexKey)); err != nil {
					return err
				}
			}
		}
		return txn.Delete([]byte(participantPrefix + id))
	})
	if err != nil {
		return database.WrapError(err, "failed to delete participant")
	}
	return nil
}

// List returns all participants ordered by name.
func (r participants) List(ctx context.Context) ([]*domain.Participant, error) {
	var out []*domain.Participant
	prefix := []byte(participantPrefix)

	err := r.s.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var doc participantDoc
				if err := json.Unmarshal(v, &doc); err != nil {
					return fmt.Errorf("failed to unmarshal participant: %w", err)
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
		return nil, database.WrapError(err, "failed to list participants")
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func getParticipant(txn *badger.Txn, id string) (*participantDoc, error) {
	item, err := txn.Get([]byte(participantPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc participantDoc
	err = item.Value(func(v []byte) error {
		return json.Unmarshal(v, &doc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal participant: %w", err)
	}
	return &doc, nil
}

// getString returns the value at key, or "" when the key is absent.
func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(v), nil
}
