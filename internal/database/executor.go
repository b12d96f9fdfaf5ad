package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Query executes a raw SurrealQL query with parameters and returns the rows of
// the first statement, unmarshalled into T.
//
// Example:
//
//	query := "SELECT * FROM message WHERE channel_id = $channel"
//	rows, err := Query[messageRecord](ctx, db, query, map[string]any{"channel": ref})
func Query[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) ([]T, error) {
	queryResults, err := surrealdb.Query[[]T](ctx, db, query, params)
	if err != nil {
		return nil, NewDBError(err, "query execution failed").WithQuery(query)
	}
	if queryResults == nil || len(*queryResults) == 0 {
		return nil, nil
	}
	first := (*queryResults)[0]
	if first.Status != "" && first.Status != "OK" {
		return nil, NewDBError(ErrQueryFailed, "statement status "+first.Status).WithQuery(query)
	}
	return first.Result, nil
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
	return &results[0], nil
}

// Execute runs a query whose rows are not needed.
func Execute(ctx context.Context, db *surrealdb.DB, query string, params map[string]any) error {
	queryResults, err := surrealdb.Query[any](ctx, db, query, params)
	if err != nil {
		return NewDBError(err, "query execution failed").WithQuery(query)
	}
	if queryResults != nil {
		for _, r := range *queryResults {
			if r.Status != "" && r.Status != "OK" {
				return NewDBError(ErrQueryFailed, "statement status "+r.Status).WithQuery(query)
			}
		}
	}
	return nil
}

// hasLimitClause checks if the query already has a LIMIT clause
func hasLimitClause(query string) bool {
	query = " " + strings.ToUpper(strings.Join(strings.Fields(query), " ")) + " "
	return strings.Contains(query, " LIMIT ")
}

// The helpers below run the generic functions through a managed connection so
// stores get per-call timeouts and reconnect-on-connection-error for free.

func readAll[T any](ctx context.Context, c DBConnection, query string, params map[string]any) ([]T, error) {
	ctx, cancel := getTimeoutFromContext(ctx, c.GetDBQueryTimeout(), ContextKeyQueryTimeout)
	defer cancel()

	var rows []T
	err := c.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		rows, err = Query[T](ctx, db, query, params)
		return err
	})
	return rows, err
}

func readOne[T any](ctx context.Context, c DBConnection, query string, params map[string]any) (*T, error) {
	ctx, cancel := getTimeoutFromContext(ctx, c.GetDBQueryTimeout(), ContextKeyQueryTimeout)
	defer cancel()

	var row *T
	err := c.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		row, err = QueryOne[T](ctx, db, query, params)
		return err
	})
	return row, err
}

// write runs a mutating statement and returns its rows.
// Writes bypass WithConnection and are never replayed after a reconnect.
func write[T any](ctx context.Context, c DBConnection, query string, params map[string]any) ([]T, error) {
	ctx, cancel := getTimeoutFromContext(ctx, c.GetDBExecuteTimeout(), ContextKeyExecuteTimeout)
	defer cancel()

	db, err := c.DB()
	if err != nil {
		return nil, err
	}
	return Query[T](ctx, db, query, params)
}

func exec(ctx context.Context, c DBConnection, query string, params map[string]any) error {
	ctx, cancel := getTimeoutFromContext(ctx, c.GetDBExecuteTimeout(), ContextKeyExecuteTimeout)
	defer cancel()

	db, err := c.DB()
	if err != nil {
		return err
	}
	if err := Execute(ctx, db, query, params); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	return nil
}
