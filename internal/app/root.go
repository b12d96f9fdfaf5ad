// Package app wires the application's components together with a samber/do
// injector. The root scope holds what every signed-in user shares; each
// session gets a child scope with its own authenticated connection.
package app

import (
	"log/slog"

	"github.com/nfrund/chorus/internal/config"
	"github.com/nfrund/chorus/internal/database"
	"github.com/nfrund/chorus/internal/pubsub"
	"github.com/nfrund/chorus/internal/storage"
	"github.com/samber/do/v2"
	"github.com/spf13/afero"
)

// NewRoot builds the process-wide scope from the configuration, the event
// bus and the avatar bucket.
func NewRoot(cfg config.Provider, bus pubsub.Bus, bucket storage.Bucket) *do.RootScope {
	root := do.New()

	do.ProvideValue[config.Provider](root, cfg)
	do.ProvideValue[pubsub.Bus](root, bus)
	do.ProvideValue[storage.Bucket](root, bucket)

	do.Provide(root, func(i do.Injector) (*storage.AvatarUploader, error) {
		return storage.NewAvatarUploader(do.MustInvoke[storage.Bucket](i), cfg.GetAvatarMaxBytes()), nil
	})
	do.Provide(root, func(i do.Injector) (*database.AuthStore, error) {
		return database.NewAuthStore(do.MustInvoke[config.Provider](i)), nil
	})
	return root
}

// NewDefaultRoot builds the root scope with a watermill bus and an avatar
// bucket on the OS filesystem.
func NewDefaultRoot(cfg config.Provider, logger *slog.Logger) *do.RootScope {
	bus := pubsub.NewWatermillBridge(pubsub.WithBridgeLogger(logger))
	bucket := storage.NewAferoBucket(afero.NewOsFs(), cfg.GetAvatarDir(), cfg.GetAvatarBaseURL())
	return NewRoot(cfg, bus, bucket)
}

// Auth returns the shared sign-in store.
func Auth(root do.Injector) *database.AuthStore {
	return do.MustInvoke[*database.AuthStore](root)
}

// Bus returns the shared event bus.
func Bus(root do.Injector) pubsub.Bus {
	return do.MustInvoke[pubsub.Bus](root)
}

// Bucket returns the shared avatar bucket.
func Bucket(root do.Injector) storage.Bucket {
	return do.MustInvoke[storage.Bucket](root)
}
