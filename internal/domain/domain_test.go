package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageInput_Validate(t *testing.T) {
	t.Run("valid public message", func(t *testing.T) {
		in := MessageInput{To: Broadcast, Text: "oi", Type: TypePublic}
		assert.NoError(t, in.Validate())
	})

	t.Run("reports every violated field", func(t *testing.T) {
		in := MessageInput{Type: "shout"}
		err := in.Validate()
		require.Error(t, err)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		require.Len(t, verr.Fields, 3)
		assert.Equal(t, "to", verr.Fields[0].Field)
		assert.Equal(t, `"to" is required`, verr.Fields[0].Message)
		assert.Equal(t, "text", verr.Fields[1].Field)
		assert.Equal(t, "type", verr.Fields[2].Field)
		assert.Equal(t, `"type" must be one of [message, private_message]`, verr.Fields[2].Message)
	})

	t.Run("status is not a client type", func(t *testing.T) {
		in := MessageInput{To: Broadcast, Text: "oi", Type: TypeStatus}
		assert.Error(t, in.Validate())
	})
}

func TestParticipant_Validate(t *testing.T) {
	p := &Participant{}
	err := p.Validate()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{`"name" is required`}, verr.Messages())
}

func TestValidationError_Err(t *testing.T) {
	var verr ValidationError
	assert.NoError(t, verr.Err())

	verr.Add("name", "bad")
	assert.EqualError(t, verr.Err(), "validation failed: bad")
}

func TestMessage_VisibleTo(t *testing.T) {
	tests := []struct {
		name   string
		msg    Message
		viewer string
		want   bool
	}{
		{"public to anyone", Message{From: "a", To: Broadcast, Type: TypePublic}, "c", true},
		{"status to anyone", Message{From: "a", To: Broadcast, Type: TypeStatus}, "c", true},
		{"private to sender", Message{From: "a", To: "b", Type: TypePrivate}, "a", true},
		{"private to recipient", Message{From: "a", To: "b", Type: TypePrivate}, "b", true},
		{"private hidden from others", Message{From: "a", To: "b", Type: TypePrivate}, "c", false},
		{"public addressed to someone else", Message{From: "a", To: "b", Type: TypePublic}, "c", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.VisibleTo(tt.viewer))
		})
	}
}

func TestCanModify(t *testing.T) {
	msg := &Message{From: "ana"}
	assert.True(t, CanModify("ana", msg))
	assert.False(t, CanModify("bia", msg))
	assert.False(t, CanModify("", &Message{}))
	assert.False(t, CanModify("ana", nil))
}

func TestParticipant_IsStale(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &Participant{LastSeen: now.Add(-10 * time.Second)}

	assert.False(t, p.IsStale(now, 10*time.Second), "exactly at threshold is not stale")
	assert.True(t, p.IsStale(now.Add(time.Millisecond), 10*time.Second))
	assert.Equal(t, p.LastSeen.UnixMilli(), p.LastStatus())
}

func TestNewStatusMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 5, 3, 0, time.Local)
	m := NewStatusMessage("ana", StatusJoined, at)

	assert.Equal(t, Broadcast, m.To)
	assert.Equal(t, TypeStatus, m.Type)
	assert.Equal(t, "09:05:03", m.Time)
	assert.Equal(t, at, m.CreatedAt)
}

func TestNewID_IsTimeOrdered(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b)
}
