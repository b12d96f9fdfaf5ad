package cmd

import (
	"context"
	"fmt"

	"github.com/nfrund/chorus/internal/app"
	"github.com/samber/do/v2"
)

// newRoot builds the shared scope. The returned func releases it.
func newRoot() (*do.RootScope, func()) {
	root := app.NewDefaultRoot(cfg, logger)
	return root, func() {
		if err := app.Bus(root).Close(); err != nil {
			logger.Warn("Failed to close event bus", "error", err)
		}
		root.Shutdown()
	}
}

// withServices opens the cached token's session, runs fn and closes it.
func withServices(ctx context.Context, fn func(*app.Services) error) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	token, err := tokens().Load()
	if err != nil {
		return err
	}

	root, release := newRoot()
	defer release()

	services, err := app.Open(ctx, root, token)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer services.Close(context.WithoutCancel(ctx))
	return fn(services)
}
