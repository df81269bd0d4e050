package database

import (
	"context"
	"time"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// ContextKeyQueryTimeout allows overriding the default timeout for read queries.
	ContextKeyQueryTimeout ContextKey = "db_query_timeout"
	// ContextKeyExecuteTimeout allows overriding the default timeout for write operations.
	ContextKeyExecuteTimeout ContextKey = "db_execute_timeout"
)

// WithQueryTimeout returns a context that overrides the read timeout of
// store calls made with it.
func WithQueryTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, ContextKeyQueryTimeout, d)
}

// WithExecuteTimeout returns a context that overrides the write timeout of
// store calls made with it.
func WithExecuteTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, ContextKeyExecuteTimeout, d)
}

// TimeoutFromContext retrieves a timeout duration from the context or uses
// defaultTimeout, and returns a derived context with that timeout applied.
func TimeoutFromContext(ctx context.Context, defaultTimeout time.Duration, key ContextKey) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := defaultTimeout
	if v, ok := ctx.Value(key).(time.Duration); ok && v > 0 {
		timeout = v
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
