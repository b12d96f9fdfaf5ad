package database

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/nfrund/chorus/internal/config"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// AuthStore implements domain.AuthRepository with record access. Each call
// uses its own short-lived anonymous connection so that no root credentials
// are needed.
type AuthStore struct {
	cfg    config.Provider
	logger *slog.Logger
}

var _ domain.AuthRepository = (*AuthStore)(nil)

// NewAuthStore creates a new AuthStore.
func NewAuthStore(cfg config.Provider) *AuthStore {
	return &AuthStore{cfg: cfg, logger: slog.Default().With("service", "auth")}
}

// SignUp creates the account and returns its session token.
func (s *AuthStore) SignUp(ctx context.Context, creds domain.Credentials) (string, error) {
	creds.Normalize()
	if err := creds.ValidateSignUp(); err != nil {
		return "", err
	}

	var token string
	err := s.anonymous(ctx, func(db *surrealdb.DB) error {
		var err error
		token, err = db.SignUp(ctx, s.accessVars(creds))
		return err
	})
	if err != nil {
		if isDuplicateAccount(err) {
			return "", &domain.ValidationError{Field: "email", Reason: "is already registered"}
		}
		s.logger.WarnContext(ctx, "Sign up failed", "event", "auth_signup_failure", "error", err)
		return "", WrapError(err, "sign up failed")
	}
	s.logger.InfoContext(ctx, "Account created", "event", "auth_signup_success")
	return token, nil
}

// SignIn exchanges credentials for a session token.
func (s *AuthStore) SignIn(ctx context.Context, creds domain.Credentials) (string, error) {
	creds.Normalize()
	if err := creds.Validate(); err != nil {
		return "", err
	}

	var token string
	err := s.anonymous(ctx, func(db *surrealdb.DB) error {
		var err error
		token, err = db.SignIn(ctx, s.accessVars(creds))
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			return "", err
		}
		s.logger.InfoContext(ctx, "Sign in rejected", "event", "auth_signin_failure", "error", err)
		return "", domain.ErrInvalidCredentials
	}
	return token, nil
}

type identityRecord struct {
	ID    *models.RecordID `json:"id,omitempty"`
	Email string           `json:"email"`
}

// Authenticate checks a token and returns whom it belongs to.
func (s *AuthStore) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	conn := NewConnection(s.cfg, WithToken(token))
	if err := conn.Connect(ctx); err != nil {
		if strings.Contains(err.Error(), "authenticate") {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	defer conn.Close(context.WithoutCancel(ctx))

	return currentIdentity(ctx, conn)
}

func currentIdentity(ctx context.Context, conn DBConnection) (*domain.Identity, error) {
	row, err := readOne[identityRecord](ctx, conn, "SELECT id, email FROM $auth", nil)
	if err != nil {
		return nil, WrapError(err, "failed to read session identity")
	}
	if row == nil || row.ID == nil {
		return nil, domain.ErrUnauthenticated
	}
	return &domain.Identity{UserID: keyOf(row.ID), Email: row.Email}, nil
}

func (s *AuthStore) anonymous(ctx context.Context, fn func(*surrealdb.DB) error) error {
	conn := NewConnection(s.cfg, WithAnonymous())
	if err := conn.Connect(ctx); err != nil {
		return NewDBError(ErrNotConnected, err.Error())
	}
	defer conn.Close(context.WithoutCancel(ctx))

	db, err := conn.DB()
	if err != nil {
		return err
	}
	return fn(db)
}

func (s *AuthStore) accessVars(creds domain.Credentials) map[string]any {
	return map[string]any{
		"NS":       s.cfg.GetDBNs(),
		"DB":       s.cfg.GetDBDb(),
		"AC":       s.cfg.GetDBAccess(),
		"email":    creds.Email,
		"password": creds.Password,
	}
}

func isDuplicateAccount(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user_email") || strings.Contains(msg, "already contains")
}
