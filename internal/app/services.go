package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nfrund/chorus/internal/community"
	"github.com/nfrund/chorus/internal/config"
	"github.com/nfrund/chorus/internal/database"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/messagesync"
	"github.com/nfrund/chorus/internal/pubsub"
	"github.com/nfrund/chorus/internal/storage"
	"github.com/samber/do/v2"
)

// Services is everything one signed-in user works with. All backend access
// goes through Conn, which is authenticated with the user's token so row
// permissions apply.
type Services struct {
	Identity domain.Identity

	Conn          *database.Connection
	Session       domain.Session
	Messages      domain.MessageRepository
	Feed          domain.MessageFeed
	Servers       *community.ServerService
	Channels      *community.ChannelService
	Conversations *community.ConversationService
	Profiles      *community.ProfileService

	cfg    config.Provider
	bus    pubsub.Bus
	stores sessionStores
	scope  *do.Scope
	cancel context.CancelFunc
	logger *slog.Logger
}

type sessionStores struct {
	profiles domain.ProfileRepository
}

// Open connects with token and builds the user's services in a child scope
// of root. Close releases them.
func Open(ctx context.Context, root do.Injector, token string) (*Services, error) {
	cfg := do.MustInvoke[config.Provider](root)
	logger := slog.Default().With("service", "app")

	conn := database.NewConnection(cfg, database.WithToken(token))
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	conn.StartMonitoring()

	session := database.NewRecordSession(conn)
	identity, err := session.Identity(ctx)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	scope := root.Scope("session-" + uuid.NewString())
	provideSession(scope, conn, session)

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Services{
		Identity:      *identity,
		Conn:          conn,
		Session:       session,
		Messages:      do.MustInvoke[*database.MessageStore](scope),
		Feed:          do.MustInvoke[*database.MessageFeed](scope),
		Servers:       do.MustInvoke[*community.ServerService](scope),
		Channels:      do.MustInvoke[*community.ChannelService](scope),
		Conversations: do.MustInvoke[*community.ConversationService](scope),
		Profiles:      do.MustInvoke[*community.ProfileService](scope),
		cfg:           cfg,
		bus:           do.MustInvoke[pubsub.Bus](scope),
		stores:        sessionStores{profiles: do.MustInvoke[*database.ProfileStore](scope)},
		scope:         scope,
		cancel:        cancel,
		logger:        logger.With("user_id", identity.UserID),
	}

	for name, start := range map[string]func(context.Context) error{
		"servers":       s.Servers.Start,
		"channels":      s.Channels.Start,
		"conversations": s.Conversations.Start,
	} {
		if err := start(runCtx); err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("start %s cache: %w", name, err)
		}
	}

	s.logger.InfoContext(ctx, "Session opened")
	return s, nil
}

// provideSession registers the per-user stores and services in scope.
func provideSession(scope do.Injector, conn *database.Connection, session *database.RecordSession) {
	do.ProvideValue(scope, conn)
	do.ProvideValue(scope, session)

	do.Provide(scope, func(i do.Injector) (*database.MessageStore, error) {
		return database.NewMessageStore(do.MustInvoke[*database.Connection](i)), nil
	})
	do.Provide(scope, func(i do.Injector) (*database.ProfileStore, error) {
		return database.NewProfileStore(do.MustInvoke[*database.Connection](i)), nil
	})
	do.Provide(scope, func(i do.Injector) (*database.ServerStore, error) {
		return database.NewServerStore(do.MustInvoke[*database.Connection](i)), nil
	})
	do.Provide(scope, func(i do.Injector) (*database.ChannelStore, error) {
		return database.NewChannelStore(do.MustInvoke[*database.Connection](i)), nil
	})
	do.Provide(scope, func(i do.Injector) (*database.ConversationStore, error) {
		return database.NewConversationStore(do.MustInvoke[*database.Connection](i)), nil
	})
	do.Provide(scope, func(i do.Injector) (*database.MessageFeed, error) {
		live := database.NewSurrealLiveQueryService(do.MustInvoke[*database.Connection](i))
		return database.NewMessageFeed(live), nil
	})

	do.Provide(scope, func(i do.Injector) (*community.ServerService, error) {
		return community.NewServerService(
			do.MustInvoke[*database.ServerStore](i),
			do.MustInvoke[*database.RecordSession](i),
			do.MustInvoke[pubsub.Bus](i),
		), nil
	})
	do.Provide(scope, func(i do.Injector) (*community.ChannelService, error) {
		return community.NewChannelService(
			do.MustInvoke[*database.ChannelStore](i),
			do.MustInvoke[*database.RecordSession](i),
			do.MustInvoke[pubsub.Bus](i),
		), nil
	})
	do.Provide(scope, func(i do.Injector) (*community.ConversationService, error) {
		return community.NewConversationService(
			do.MustInvoke[*database.ConversationStore](i),
			do.MustInvoke[*database.MessageStore](i),
			do.MustInvoke[*database.ProfileStore](i),
			do.MustInvoke[*database.RecordSession](i),
			do.MustInvoke[pubsub.Bus](i),
		), nil
	})
	do.Provide(scope, func(i do.Injector) (*community.ProfileService, error) {
		return community.NewProfileService(
			do.MustInvoke[*database.ProfileStore](i),
			do.MustInvoke[*storage.AvatarUploader](i),
			do.MustInvoke[*database.RecordSession](i),
		), nil
	})
}

// NewSynchronizer creates a message synchronizer for this user that
// publishes its views on the shared bus.
func (s *Services) NewSynchronizer(opts ...messagesync.Option) *messagesync.Synchronizer {
	opts = append([]messagesync.Option{
		messagesync.WithLimit(s.cfg.GetMessagePageSize()),
		messagesync.WithPublisher(s.bus),
		messagesync.WithLogger(s.logger),
	}, opts...)
	return messagesync.New(s.Messages, s.stores.profiles, s.Feed, s.Session, opts...)
}

// Bus returns the event bus the services publish on.
func (s *Services) Bus() pubsub.Bus { return s.bus }

// Close stops the cache subscriptions and closes the connection.
func (s *Services) Close(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	if s.Conn != nil {
		if err := s.Conn.Close(ctx); err != nil {
			s.log().WarnContext(ctx, "Failed to close session connection", "error", err)
		}
	}
	if s.scope != nil {
		s.scope.Shutdown()
	}
	s.log().InfoContext(ctx, "Session closed")
}

func (s *Services) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}
