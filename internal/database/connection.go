package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nfrund/batepapo/internal/config"
	"github.com/surrealdb/surrealdb.go"
)

const healthCheckInterval = 30 * time.Second

// Connection manages a SurrealDB connection, reconnecting with backoff when
// the link drops.
type Connection struct {
	cfg     *config.Config
	conn    *surrealdb.DB
	retryer *ExponentialBackoffRetryer
	mu      sync.RWMutex
	healthy bool
	done    chan struct{}
	closed  bool
}

// NewConnection creates a new managed database connection
func NewConnection(cfg *config.Config, opts ...RetryOption) *Connection {
	return &Connection{
		cfg:     cfg,
		retryer: NewExponentialBackoffRetryer(opts...),
		done:    make(chan struct{}),
	}
}

// Connect establishes the initial database connection, retrying with backoff.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	if connected {
		return nil
	}

	if err := c.retryer.Retry(ctx, func() error { return c.forceReconnect(ctx) }); err != nil {
		return Unavailable(NewDBError(err, "failed to connect to database"))
	}
	return nil
}

// WithConnection executes a function with a database connection, handling reconnections
func (c *Connection) WithConnection(ctx context.Context, fn func(*surrealdb.DB) error) error {
	conn := c.getConnection()
	if conn == nil {
		return Unavailable(NewDBError(ErrNotConnected, "database not connected"))
	}

	err := fn(conn)
	if err == nil {
		return nil
	}

	if !isConnectionError(err) {
		return err
	}

	slog.WarnContext(ctx, "Database operation failed, attempting to reconnect with backoff",
		"event", "db_reconnect_triggered", "error", err, "db_url", redactDBURL(c.cfg.DBUrl))

	retryErr := c.retryer.Retry(ctx, func() error {
		if reconnectErr := c.forceReconnect(ctx); reconnectErr != nil {
			return fmt.Errorf("reconnection failed: %w (original error: %v)", reconnectErr, err)
		}
		return fn(c.getConnection())
	})
	if retryErr != nil && isConnectionError(retryErr) {
		return Unavailable(retryErr)
	}
	return retryErr
}

// StartMonitoring begins health checks and automatic reconnection
func (c *Connection) StartMonitoring() {
	go c.monitorConnection()
}

// Close shuts down the connection and monitoring
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	c.healthy = false
	if c.conn != nil {
		err := c.conn.Close(ctx)
		c.conn = nil
		return err
	}
	return nil
}

// IsHealthy returns the current connection status
func (c *Connection) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

// QueryTimeout is the default deadline for reads.
func (c *Connection) QueryTimeout() time.Duration {
	return c.cfg.DBQueryTimeout
}

// ExecuteTimeout is the default deadline for writes.
func (c *Connection) ExecuteTimeout() time.Duration {
	return c.cfg.DBExecuteTimeout
}

func (c *Connection) getConnection() *surrealdb.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// reconnect must be called with c.mu held.
func (c *Connection) reconnect(ctx context.Context) error {
	if c.closed {
		return NewDBError(ErrNotConnected, "connection closed")
	}
	if c.conn != nil {
		_ = c.conn.Close(ctx)
		c.conn = nil
	}

	dbURL := c.cfg.DBUrl
	slog.DebugContext(ctx, "Attempting to connect to database", "event", "db_connect_attempt", "db_url", redactDBURL(dbURL))

	conn, err := surrealdb.FromEndpointURLString(ctx, dbURL)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to create database connection", "event", "db_connect_failure",
			"db_url", redactDBURL(dbURL),
			"error", err,
		)
		c.healthy = false
		return fmt.Errorf("failed to connect to database at %s: %w", redactDBURL(dbURL), err)
	}

	authData := &surrealdb.Auth{
		Username: c.cfg.DBUser,
		Password: c.cfg.DBPass,
	}

	if _, err = conn.SignIn(ctx, authData); err != nil {
		_ = conn.Close(ctx)
		slog.ErrorContext(ctx, "Failed to sign in to database", "event", "db_auth_failure",
			"db_url", redactDBURL(dbURL),
			"user", c.cfg.DBUser,
			"error", err,
		)
		c.healthy = false
		return fmt.Errorf("failed to sign in: %w", err)
	}

	if err = conn.Use(ctx, c.cfg.DBNs, c.cfg.DBDb); err != nil {
		_ = conn.Close(ctx)
		slog.ErrorContext(ctx, "Failed to use namespace/database", "event", "db_namespace_failure",
			"db_url", redactDBURL(dbURL),
			"namespace", c.cfg.DBNs,
			"database", c.cfg.DBDb,
			"error", err,
		)
		c.healthy = false
		return fmt.Errorf("failed to use namespace/db: %w", err)
	}

	c.conn = conn
	c.healthy = true
	slog.DebugContext(ctx, "Database connection established", "event", "db_connect_success",
		"db_url", redactDBURL(dbURL),
		"namespace", c.cfg.DBNs,
		"database", c.cfg.DBDb,
	)
	return nil
}

func (c *Connection) forceReconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnect(ctx)
}

func (c *Connection) monitorConnection() {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.checkHealth(ctx); err != nil {
				slog.WarnContext(ctx, "Database health check failed, attempting reconnection with backoff",
					"event", "db_health_check_failure", "error", err, "db_url", redactDBURL(c.cfg.DBUrl))
				if reconnectErr := c.retryer.Retry(ctx, func() error {
					return c.forceReconnect(ctx)
				}); reconnectErr != nil {
					slog.ErrorContext(ctx, "Failed to reconnect to database after health check failure",
						"event", "db_reconnect_failure", "error", reconnectErr, "db_url", redactDBURL(c.cfg.DBUrl))
				}
			}
			cancel()
		case <-c.done:
			return
		}
	}
}

func (c *Connection) checkHealth(ctx context.Context) error {
	conn := c.getConnection()
	if conn == nil {
		c.setHealthy(false)
		return errors.New("no active database connection")
	}

	if _, err := conn.Version(ctx); err != nil {
		c.setHealthy(false)
		return fmt.Errorf("database health check failed for %s: %w", redactDBURL(c.cfg.DBUrl), err)
	}

	// Sample successful checks to keep the log quiet.
	if rand.Float32() < 0.1 {
		slog.DebugContext(ctx, "Database health check successful", "event", "db_health_check_success", "db_url", redactDBURL(c.cfg.DBUrl))
	}
	c.setHealthy(true)
	return nil
}

func (c *Connection) setHealthy(v bool) {
	c.mu.Lock()
	c.healthy = v
	c.mu.Unlock()
}

// isConnectionError checks if an error is likely due to a lost or failed connection.
// Application-level failures are not retried.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNotConnected) {
		return true
	}

	// Deadline errors often wrap network stalls.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "broken pipe") ||
		strings.Contains(errMsg, "use of closed network connection") ||
		strings.Contains(errMsg, "unexpected eof")
}

// redactDBURL parses a database URL and returns it with the password redacted.
func redactDBURL(dbURL string) string {
	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	return parsedURL.Redacted()
}
