package community

import (
	"context"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/pubsub"
)

// ChannelService manages the channels of a server.
type ChannelService struct {
	base
	channels domain.ChannelRepository
	byServer *cache[[]domain.Channel]
}

// NewChannelService creates a ChannelService.
func NewChannelService(channels domain.ChannelRepository, session domain.Session, bus pubsub.Bus, opts ...Option) *ChannelService {
	o := buildOptions("channels", opts)
	return &ChannelService{
		base:     base{session: session, bus: bus, logger: o.logger},
		channels: channels,
		byServer: newCache[[]domain.Channel](),
	}
}

// Start subscribes the channel cache to invalidations until ctx is done.
func (s *ChannelService) Start(ctx context.Context) error {
	return s.byServer.invalidateOn(ctx, s.bus, TopicChannelsStale, s.logger, func(inv Invalidation) string {
		return inv.ServerID
	})
}

// List returns the channels of a server ordered by position, then creation.
func (s *ChannelService) List(ctx context.Context, serverID string) ([]domain.Channel, error) {
	if err := requireID("server_id", serverID); err != nil {
		return nil, err
	}
	if _, err := s.currentUser(ctx, "list channels"); err != nil {
		return nil, err
	}
	return s.byServer.getOrFetch(ctx, serverID, func(ctx context.Context) ([]domain.Channel, error) {
		channels, err := s.channels.ListByServer(ctx, serverID)
		if err != nil {
			return nil, fetchError("channels of "+serverID, err)
		}
		return channels, nil
	})
}

// Create adds a channel. Type defaults to text; position defaults to one
// past the highest existing position, or 0 for the first channel.
func (s *ChannelService) Create(ctx context.Context, serverID string, in domain.CreateChannelInput) (*domain.Channel, error) {
	if err := requireID("server_id", serverID); err != nil {
		return nil, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.currentUser(ctx, "create channel"); err != nil {
		return nil, err
	}

	if in.Type == "" {
		in.Type = domain.ChannelText
	}
	if in.Position == nil {
		highest, ok, err := s.channels.MaxPosition(ctx, serverID)
		if err != nil {
			return nil, fetchError("channel positions of "+serverID, err)
		}
		next := 0
		if ok {
			next = highest + 1
		}
		in.Position = &next
	}

	channel, err := s.channels.Create(ctx, serverID, in)
	if err != nil {
		return nil, writeError("create channel", err)
	}
	s.logger.InfoContext(ctx, "Channel created", "channel_id", channel.ID, "server_id", serverID, "position", channel.Position)
	s.channelsChanged(ctx, serverID, "created")
	return channel, nil
}

// Update applies a partial patch to a channel.
func (s *ChannelService) Update(ctx context.Context, id string, in domain.UpdateChannelInput) (*domain.Channel, error) {
	if err := requireID("channel_id", id); err != nil {
		return nil, err
	}
	in.Normalize()
	if in.Empty() {
		return nil, &domain.ValidationError{Field: "patch", Reason: "must change at least one field"}
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.currentUser(ctx, "update channel"); err != nil {
		return nil, err
	}

	channel, err := s.channels.Update(ctx, id, in)
	if err != nil {
		return nil, writeError("update channel", err)
	}
	s.channelsChanged(ctx, channel.ServerID, "updated")
	return channel, nil
}

// Delete removes a channel.
func (s *ChannelService) Delete(ctx context.Context, id string) error {
	if err := requireID("channel_id", id); err != nil {
		return err
	}
	if _, err := s.currentUser(ctx, "delete channel"); err != nil {
		return err
	}

	if err := s.channels.Delete(ctx, id); err != nil {
		return writeError("delete channel", err)
	}
	// The owning server is unknown here, so every server's list goes stale.
	s.channelsChanged(ctx, "", "deleted")
	return nil
}

func (s *ChannelService) channelsChanged(ctx context.Context, serverID, reason string) {
	s.byServer.invalidate(serverID)
	notify(ctx, s.bus, s.logger, TopicChannelsStale, Invalidation{ServerID: serverID, Reason: reason})
}
