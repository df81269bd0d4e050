package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Query executes a raw SurrealQL query with parameters and returns the rows
// of its first statement.
//
// Example:
//
//	query := "SELECT * FROM participant WHERE name = $name"
//	rows, err := Query[participantRecord](ctx, db, query, map[string]any{"name": "ana"})
func Query[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) ([]T, error) {
	queryResults, err := surrealdb.Query[[]T](ctx, db, query, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	if queryResults == nil || len(*queryResults) == 0 {
		return nil, nil
	}
	return (*queryResults)[0].Result, nil
}

// QueryOne executes a query and returns a single result.
// If no results are found, it returns nil, nil.
func QueryOne[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) (*T, error) {
	// CREATE/UPDATE/DELETE statements don't support LIMIT.
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") && !hasLimitClause(query) {
		query += " LIMIT 1"
	}

	results, err := Query[T](ctx, db, query, params)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	if len(results) > 1 {
		return nil, ErrMultipleResults
	}
	return &results[0], nil
}

// Execute runs a query whose rows are not needed.
func Execute(ctx context.Context, db *surrealdb.DB, query string, params map[string]any) error {
	if _, err := surrealdb.Query[any](ctx, db, query, params); err != nil {
		return fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return nil
}

// hasLimitClause checks if the query already has a LIMIT clause
func hasLimitClause(query string) bool {
	query = " " + strings.ToUpper(query) + " "
	return strings.Contains(query, " LIMIT ")
}

// queryRows runs Query over the managed connection under the read timeout.
func queryRows[T any](ctx context.Context, c *Connection, query string, params map[string]any) ([]T, error) {
	ctx, cancel := TimeoutFromContext(ctx, c.QueryTimeout(), ContextKeyQueryTimeout)
	defer cancel()

	var rows []T
	err := c.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		rows, err = Query[T](ctx, db, query, params)
		return err
	})
	if err != nil {
		return nil, NewDBError(err, "query failed").WithQuery(query)
	}
	return rows, nil
}

// queryRow runs QueryOne over the managed connection under the read timeout.
func queryRow[T any](ctx context.Context, c *Connection, query string, params map[string]any) (*T, error) {
	ctx, cancel := TimeoutFromContext(ctx, c.QueryTimeout(), ContextKeyQueryTimeout)
	defer cancel()

	var row *T
	err := c.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		row, err = QueryOne[T](ctx, db, query, params)
		return err
	})
	if err != nil {
		return nil, NewDBError(err, "query failed").WithQuery(query)
	}
	return row, nil
}

// writeRows runs a mutating statement under the write timeout and returns the
// rows it reports.
func writeRows[T any](ctx context.Context, c *Connection, query string, params map[string]any) ([]T, error) {
	ctx, cancel := TimeoutFromContext(ctx, c.ExecuteTimeout(), ContextKeyExecuteTimeout)
	defer cancel()

	var rows []T
	err := c.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		rows, err = Query[T](ctx, db, query, params)
		return err
	})
	if err != nil {
		return nil, NewDBError(err, "write failed").WithQuery(query)
	}
	return rows, nil
}

// execute runs Execute over the managed connection under the write timeout.
func execute(ctx context.Context, c *Connection, query string, params map[string]any) error {
	ctx, cancel := TimeoutFromContext(ctx, c.ExecuteTimeout(), ContextKeyExecuteTimeout)
	defer cancel()

	err := c.WithConnection(ctx, func(db *surrealdb.DB) error {
		return Execute(ctx, db, query, params)
	})
	if err != nil {
		return NewDBError(err, "execute failed").WithQuery(query)
	}
	return nil
}
