package community

import (
	"context"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/pubsub"
	"github.com/samber/lo"
)

// PublicServerLimit caps the discovery list.
const PublicServerLimit = 50

// ServerService lists, creates, joins and leaves servers.
type ServerService struct {
	base
	servers domain.ServerRepository
	mine    *cache[[]domain.UserServer] // by user ID
}

// NewServerService creates a ServerService.
func NewServerService(servers domain.ServerRepository, session domain.Session, bus pubsub.Bus, opts ...Option) *ServerService {
	o := buildOptions("servers", opts)
	return &ServerService{
		base:    base{session: session, bus: bus, logger: o.logger},
		servers: servers,
		mine:    newCache[[]domain.UserServer](),
	}
}

// Start subscribes the membership cache to invalidations until ctx is done.
func (s *ServerService) Start(ctx context.Context) error {
	return s.mine.invalidateOn(ctx, s.bus, TopicMembershipsStale, s.logger, func(inv Invalidation) string {
		return inv.UserID
	})
}

// ListPublic returns public servers, newest first, each annotated with the
// caller's membership and its member count.
func (s *ServerService) ListPublic(ctx context.Context) ([]domain.ServerWithMember, error) {
	userID, err := s.currentUser(ctx, "list servers")
	if err != nil {
		return nil, err
	}

	servers, err := s.servers.ListPublic(ctx, PublicServerLimit)
	if err != nil {
		return nil, fetchError("public servers", err)
	}
	if len(servers) == 0 {
		return []domain.ServerWithMember{}, nil
	}
	ids := lo.Map(servers, func(srv domain.Server, _ int) string { return srv.ID })

	memberships, err := s.servers.MembershipsOf(ctx, userID)
	if err != nil {
		return nil, fetchError("server memberships", err)
	}
	byServer := lo.KeyBy(memberships, func(m domain.ServerMember) string { return m.ServerID })

	counts, err := s.servers.MemberCounts(ctx, ids)
	if err != nil {
		return nil, fetchError("member counts", err)
	}

	return lo.Map(servers, func(srv domain.Server, _ int) domain.ServerWithMember {
		out := domain.ServerWithMember{Server: srv, MemberCount: counts[srv.ID]}
		if m, ok := byServer[srv.ID]; ok {
			out.Member = &m
		}
		return out
	}), nil
}

// ListMine returns the servers the caller belongs to, most recently joined
// first.
func (s *ServerService) ListMine(ctx context.Context) ([]domain.UserServer, error) {
	userID, err := s.currentUser(ctx, "list my servers")
	if err != nil {
		return nil, err
	}
	return s.mine.getOrFetch(ctx, userID, func(ctx context.Context) ([]domain.UserServer, error) {
		servers, err := s.servers.ServersOf(ctx, userID)
		if err != nil {
			return nil, fetchError("servers of "+userID, err)
		}
		return servers, nil
	})
}

// Create makes a server owned by the caller and adds the owner membership.
func (s *ServerService) Create(ctx context.Context, in domain.CreateServerInput) (*domain.Server, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	userID, err := s.currentUser(ctx, "create server")
	if err != nil {
		return nil, err
	}

	server, err := s.servers.Create(ctx, userID, in)
	if err != nil {
		return nil, writeError("create server", err)
	}
	if _, err := s.servers.AddMember(ctx, server.ID, userID, domain.RoleOwner); err != nil {
		s.logger.ErrorContext(ctx, "Server created without owner membership", "server_id", server.ID, "error", err)
		return nil, writeError("add server owner", err)
	}

	s.logger.InfoContext(ctx, "Server created", "server_id", server.ID, "owner_id", userID)
	s.membershipsChanged(ctx, userID, server.ID, "created")
	return server, nil
}

// Join adds the caller to a server as a member.
func (s *ServerService) Join(ctx context.Context, serverID string) (*domain.ServerMember, error) {
	if err := requireID("server_id", serverID); err != nil {
		return nil, err
	}
	userID, err := s.currentUser(ctx, "join server")
	if err != nil {
		return nil, err
	}

	member, err := s.servers.AddMember(ctx, serverID, userID, domain.RoleMember)
	if err != nil {
		return nil, writeError("join server", err)
	}
	s.membershipsChanged(ctx, userID, serverID, "joined")
	return member, nil
}

// Leave removes the caller from a server.
func (s *ServerService) Leave(ctx context.Context, serverID string) error {
	if err := requireID("server_id", serverID); err != nil {
		return err
	}
	userID, err := s.currentUser(ctx, "leave server")
	if err != nil {
		return err
	}

	if err := s.servers.RemoveMember(ctx, serverID, userID); err != nil {
		return writeError("leave server", err)
	}
	s.membershipsChanged(ctx, userID, serverID, "left")
	return nil
}

func (s *ServerService) membershipsChanged(ctx context.Context, userID, serverID, reason string) {
	s.mine.invalidate(userID)
	notify(ctx, s.bus, s.logger, TopicMembershipsStale, Invalidation{UserID: userID, ServerID: serverID, Reason: reason})
}
