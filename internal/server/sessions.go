package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nfrund/chorus/internal/app"
)

// sessionCache keeps one set of services per access token so a user's
// connection, caches and live feeds are shared across requests.
type sessionCache struct {
	open    Opener
	logger  *slog.Logger
	mu      sync.Mutex
	byToken map[string]*app.Services
}

func newSessionCache(open Opener) *sessionCache {
	return &sessionCache{open: open, logger: slog.Default(), byToken: make(map[string]*app.Services)}
}

// Resolve implements middleware.SessionResolver.
func (c *sessionCache) Resolve(ctx context.Context, token string) (*app.Services, error) {
	c.mu.Lock()
	services, ok := c.byToken[token]
	c.mu.Unlock()
	if ok {
		return services, nil
	}

	opened, err := c.open(ctx, token)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.byToken[token]; ok {
		// Another request opened the same token first.
		c.mu.Unlock()
		opened.Close(ctx)
		return existing, nil
	}
	c.byToken[token] = opened
	c.mu.Unlock()

	c.logger.Debug("Session cached", "user_id", opened.Identity.UserID)
	return opened, nil
}

// Drop closes and forgets the services of token.
func (c *sessionCache) Drop(ctx context.Context, token string) {
	c.mu.Lock()
	services, ok := c.byToken[token]
	delete(c.byToken, token)
	c.mu.Unlock()

	if ok {
		services.Close(ctx)
	}
}

func (c *sessionCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byToken)
}

func (c *sessionCache) closeAll(ctx context.Context) {
	c.mu.Lock()
	all := c.byToken
	c.byToken = make(map[string]*app.Services)
	c.mu.Unlock()

	for _, services := range all {
		services.Close(ctx)
	}
}
