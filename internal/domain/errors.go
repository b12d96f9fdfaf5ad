package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer. Every typed error below matches one
// of these through errors.Is, so callers can branch without type assertions.
var (
	ErrValidation           = errors.New("validation failed")
	ErrUnauthenticated      = errors.New("not authenticated")
	ErrFetch                = errors.New("fetch failed")
	ErrWrite                = errors.New("write rejected")
	ErrStaleResult          = errors.New("stale result discarded")
	ErrNotFound             = errors.New("requested resource not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrReferentialIntegrity = errors.New("referenced record does not exist")
	ErrInvalidCredentials   = errors.New("invalid credentials")
)

// WriteCause is the backend-reported reason a write was rejected.
type WriteCause string

const (
	CauseUnknown              WriteCause = "unknown"
	CausePermissionDenied     WriteCause = "permission_denied"
	CauseReferentialIntegrity WriteCause = "referential_integrity"
	CauseNotFound             WriteCause = "not_found"
)

// Sentinel returns the sentinel error that corresponds to the cause, or nil
// for CauseUnknown.
func (c WriteCause) Sentinel() error {
	switch c {
	case CausePermissionDenied:
		return ErrPermissionDenied
	case CauseReferentialIntegrity:
		return ErrReferentialIntegrity
	case CauseNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// ValidationError is raised before any network call for malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// AuthError reports a mutating operation attempted with nobody signed in.
type AuthError struct {
	Op string
}

func (e *AuthError) Error() string {
	if e.Op == "" {
		return ErrUnauthenticated.Error()
	}
	return fmt.Sprintf("%s: %s", e.Op, ErrUnauthenticated)
}

func (e *AuthError) Is(target error) bool { return target == ErrUnauthenticated }

// FetchError wraps a failed read against the backend.
type FetchError struct {
	Resource string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// WriteError wraps a rejected insert, update or delete.
type WriteError struct {
	Op    string
	Cause WriteCause
	Err   error
}

func (e *WriteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s rejected (%s)", e.Op, e.Cause)
	}
	return fmt.Sprintf("%s rejected (%s): %v", e.Op, e.Cause, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Is matches ErrWrite and the sentinel of the cause.
func (e *WriteError) Is(target error) bool {
	if target == ErrWrite {
		return true
	}
	if s := e.Cause.Sentinel(); s != nil && target == s {
		return true
	}
	return false
}

// StaleResultError marks a result computed for a scope that is no longer bound.
// Current is nil when nothing is bound anymore.
type StaleResultError struct {
	Requested Scope
	Current   *Scope
}

func (e *StaleResultError) Error() string {
	current := "none"
	if e.Current != nil {
		current = e.Current.String()
	}
	return fmt.Sprintf("stale result for %s (bound: %s)", e.Requested, current)
}

func (e *StaleResultError) Is(target error) bool { return target == ErrStaleResult }

// NewWriteError builds a WriteError, inferring the cause from err when it
// already matches one of the cause sentinels.
func NewWriteError(op string, err error) *WriteError {
	cause := CauseUnknown
	switch {
	case errors.Is(err, ErrPermissionDenied):
		cause = CausePermissionDenied
	case errors.Is(err, ErrReferentialIntegrity):
		cause = CauseReferentialIntegrity
	case errors.Is(err, ErrNotFound):
		cause = CauseNotFound
	}
	return &WriteError{Op: op, Cause: cause, Err: err}
}

// Code returns a stable machine-readable name for err. Transports send it
// next to the message so clients can branch without parsing text. Errors
// outside the domain map to "internal".
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrReferentialIntegrity):
		return "referential_integrity"
	case errors.Is(err, ErrStaleResult):
		return "stale_result"
	case errors.Is(err, ErrFetch):
		return "fetch_failed"
	case errors.Is(err, ErrWrite):
		return "write_rejected"
	default:
		return "internal"
	}
}
