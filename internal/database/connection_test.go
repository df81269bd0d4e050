package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nfrund/batepapo/internal/config"
	"github.com/nfrund/batepapo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"
)

func TestConnection_NotConnected(t *testing.T) {
	conn := NewConnection(&config.Config{DBUrl: "ws://localhost:1/rpc"})

	called := false
	err := conn.WithConnection(context.Background(), func(*surrealdb.DB) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.False(t, conn.IsHealthy())
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	conn := NewConnection(&config.Config{})
	require.NoError(t, conn.Close(context.Background()))
	require.NoError(t, conn.Close(context.Background()))
}

func TestConnection_ConnectFailsFast(t *testing.T) {
	conn := NewConnection(&config.Config{DBUrl: "ws://127.0.0.1:1/rpc"}, WithMaxRetries(1), WithBaseDelay(time.Millisecond), WithoutJitter())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := conn.Connect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"eof", errors.New("read: unexpected EOF"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"not connected", NewDBError(ErrNotConnected, "x"), true},
		{"application", errors.New("record not found"), false},
		{"canceled by caller", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isConnectionError(tt.err))
		})
	}
}

func TestRedactDBURL(t *testing.T) {
	assert.Equal(t, "ws://root:xxxxx@localhost:8000/rpc", redactDBURL("ws://root:secret@localhost:8000/rpc"))
	assert.Equal(t, "ws://localhost:8000/rpc", redactDBURL("ws://localhost:8000/rpc"))
	assert.Equal(t, "invalid-url", redactDBURL("://bad"))
}
