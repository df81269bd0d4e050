package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Event[T] names a topic whose payload is always a JSON encoded T.
type Event[T any] struct {
	topicName string
}

// EventInfo describes a registered event for documentation and tooling.
type EventInfo struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	TypeName      string   `json:"type_name"`
	PayloadFields []string `json:"payload_fields"`
}

var (
	registryMu sync.RWMutex
	registry   = map[string]EventInfo{}
)

// NewEvent creates a typed event and records it in the event registry.
// Events are declared at package level, so registering a name twice panics.
func NewEvent[T any](name, description string) Event[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	var fields []string
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			tag := t.Field(i).Tag.Get("json")
			if field, _, _ := strings.Cut(tag, ","); field != "" && field != "-" {
				fields = append(fields, field)
			}
		}
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("pubsub: event %q registered twice", name))
	}
	registry[name] = EventInfo{
		Name:          name,
		Description:   description,
		TypeName:      t.Name(),
		PayloadFields: fields,
	}

	return Event[T]{topicName: name}
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.topicName
}

// Decode unmarshals the payload of msg into a T.
func (e Event[T]) Decode(msg Message) (T, error) {
	var payload T
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("decode %s: %w", e.topicName, err)
	}
	return payload, nil
}

// Events lists every registered event sorted by name.
func Events() []EventInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]EventInfo, 0, len(registry))
	for _, info := range registry {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Publish sends a typed event. userID names the participant behind it.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], userID string, payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.Publish(ctx, Message{
		Topic:   event.Name(),
		UserID:  userID,
		Payload: data,
	})
}
