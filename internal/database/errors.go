package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nfrund/chorus/internal/domain"
)

// Common database errors that can be checked using errors.Is()
var (
	// ErrNotFound is returned when a record is not found in the database.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput is returned when invalid input is provided to a method.
	ErrInvalidInput = errors.New("invalid input data")

	// ErrNotConnected is returned when no healthy connection is available.
	ErrNotConnected = errors.New("database not connected")

	// ErrQueryFailed is returned when a statement reports a non-OK status.
	ErrQueryFailed = errors.New("query execution failed")
)

// DBError represents a database error with additional context.
type DBError struct {
	// The underlying error that was returned by the database driver.
	err error

	// Additional context about where the error occurred.
	context string

	// The query that was being executed when the error occurred.
	query string
}

// NewDBError creates a new DBError with the given error and context.
// The context should describe what operation was being performed when the error occurred.
func NewDBError(err error, context string) *DBError {
	return &DBError{
		err:     err,
		context: context,
	}
}

// WithQuery adds query information to the error.
func (e *DBError) WithQuery(query string) *DBError {
	e.query = query
	return e
}

// Error returns the error message.
func (e *DBError) Error() string {
	msg := e.context
	if e.query != "" {
		msg = fmt.Sprintf("%s (query: %s)", msg, compactQuery(e.query))
	}
	if e.err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DBError) Unwrap() error {
	return e.err
}

// Is matches the package sentinels, and domain.ErrNotFound for ErrNotFound.
func (e *DBError) Is(target error) bool {
	if target == nil {
		return e == nil
	}

	switch target {
	case ErrNotFound, ErrInvalidInput, ErrNotConnected, ErrQueryFailed:
		return errors.Is(e.err, target)
	case domain.ErrNotFound:
		return errors.Is(e.err, ErrNotFound)
	}

	return false
}

// WrapError wraps an error with additional context.
// If the error is already a DBError, it adds the context to the existing error.
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return &DBError{
			err:     dbErr.err,
			context: fmt.Sprintf("%s: %s", context, dbErr.context),
			query:   dbErr.query,
		}
	}

	return NewDBError(err, context)
}

// ClassifyWriteError maps a rejected write to the backend-reported cause.
// SurrealDB reports failures as text, so this matches on the messages its
// permission checks and field assertions produce.
func ClassifyWriteError(err error) domain.WriteCause {
	if err == nil {
		return domain.CauseUnknown
	}
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return domain.CausePermissionDenied
	case errors.Is(err, domain.ErrReferentialIntegrity):
		return domain.CauseReferentialIntegrity
	case errors.Is(err, ErrNotFound), errors.Is(err, domain.ErrNotFound):
		return domain.CauseNotFound
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "record::exists"),
		strings.Contains(msg, "foreign key"),
		strings.Contains(msg, "references a record that does not exist"):
		return domain.CauseReferentialIntegrity
	case strings.Contains(msg, "not enough permissions"),
		strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "iam error"),
		strings.Contains(msg, "not allowed"):
		return domain.CausePermissionDenied
	case strings.Contains(msg, "does not exist"),
		strings.Contains(msg, "not found"):
		return domain.CauseNotFound
	default:
		return domain.CauseUnknown
	}
}

// writeError converts a failed write into the domain taxonomy.
func writeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var we *domain.WriteError
	if errors.As(err, &we) {
		return err
	}
	return &domain.WriteError{Op: op, Cause: ClassifyWriteError(err), Err: err}
}

// compactQuery collapses whitespace so multi-line queries log on one line.
func compactQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
