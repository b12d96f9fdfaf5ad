// Package community serves the server, channel, conversation and profile
// data around the message timelines. Reads are fetched on demand and cached
// per user or server; every mutation publishes an invalidation on the bus so
// caches in other sessions drop what they hold.
package community

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/pubsub"
)

// Option configures a service.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(service string, opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("service", service)
	return o
}

// base carries what every service needs to identify the caller and talk to
// the bus.
type base struct {
	session domain.Session
	bus     pubsub.Bus
	logger  *slog.Logger
}

func (b base) currentUser(ctx context.Context, op string) (string, error) {
	userID, err := b.session.CurrentUserID(ctx)
	switch {
	case errors.Is(err, domain.ErrUnauthenticated) || (err == nil && userID == ""):
		return "", &domain.AuthError{Op: op}
	case err != nil:
		return "", &domain.FetchError{Resource: "session", Err: err}
	}
	return userID, nil
}

func requireID(field, id string) error {
	if id == "" {
		return &domain.ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}

func fetchError(resource string, err error) error {
	var fe *domain.FetchError
	if errors.As(err, &fe) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	return &domain.FetchError{Resource: resource, Err: err}
}

func writeError(op string, err error) error {
	var we *domain.WriteError
	if errors.As(err, &we) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	return domain.NewWriteError(op, err)
}
