package database

import (
	"context"
	"sync"

	"github.com/nfrund/chorus/internal/domain"
)

// RecordSession implements domain.Session for a token-authenticated
// connection. The identity is looked up once and cached.
type RecordSession struct {
	conn DBConnection

	mu       sync.Mutex
	identity *domain.Identity
}

var _ domain.Session = (*RecordSession)(nil)

// NewRecordSession creates a session bound to conn.
func NewRecordSession(conn DBConnection) *RecordSession {
	return &RecordSession{conn: conn}
}

// CurrentUserID returns the signed-in user's key.
func (s *RecordSession) CurrentUserID(ctx context.Context) (string, error) {
	id, err := s.Identity(ctx)
	if err != nil {
		return "", err
	}
	return id.UserID, nil
}

// Identity returns the signed-in account.
func (s *RecordSession) Identity(ctx context.Context) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity != nil {
		return s.identity, nil
	}
	id, err := currentIdentity(ctx, s.conn)
	if err != nil {
		return nil, err
	}
	s.identity = id
	return id, nil
}
