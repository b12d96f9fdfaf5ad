package community

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/pubsub"
	"github.com/samber/lo"
)

// ConversationService manages direct and group conversations.
type ConversationService struct {
	base
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	profiles      domain.ProfileRepository
	byUser        *cache[[]domain.ConversationWithParticipants] // without last messages
}

// NewConversationService creates a ConversationService.
func NewConversationService(conversations domain.ConversationRepository, messages domain.MessageRepository, profiles domain.ProfileRepository, session domain.Session, bus pubsub.Bus, opts ...Option) *ConversationService {
	o := buildOptions("conversations", opts)
	return &ConversationService{
		base:          base{session: session, bus: bus, logger: o.logger},
		conversations: conversations,
		messages:      messages,
		profiles:      profiles,
		byUser:        newCache[[]domain.ConversationWithParticipants](),
	}
}

// Start subscribes the conversation cache to invalidations until ctx is done.
func (s *ConversationService) Start(ctx context.Context) error {
	return s.byUser.invalidateOn(ctx, s.bus, TopicConversationsStale, s.logger, func(inv Invalidation) string {
		return inv.UserID
	})
}

// List returns the caller's conversations, most recently active first,
// with participants and the last message of each. Conversations and
// participants are cached; last messages change with every send, from any
// session, so they are read on each call.
func (s *ConversationService) List(ctx context.Context) ([]domain.ConversationWithParticipants, error) {
	userID, err := s.currentUser(ctx, "list conversations")
	if err != nil {
		return nil, err
	}
	cached, err := s.byUser.getOrFetch(ctx, userID, func(ctx context.Context) ([]domain.ConversationWithParticipants, error) {
		return s.fetchList(ctx, userID)
	})
	if err != nil || len(cached) == 0 {
		return cached, err
	}

	ids := lo.Map(cached, func(c domain.ConversationWithParticipants, _ int) string { return c.ID })
	latest, err := s.messages.LatestByConversations(ctx, ids)
	if err != nil {
		return nil, fetchError("last messages", err)
	}

	list := make([]domain.ConversationWithParticipants, len(cached))
	for i, c := range cached {
		if m, ok := latest[c.ID]; ok {
			c.LastMessage = &m
		}
		list[i] = c
	}
	sort.SliceStable(list, func(i, j int) bool { return lastActive(list[i]).After(lastActive(list[j])) })
	return list, nil
}

// lastActive is when a conversation last changed or received a message.
func lastActive(c domain.ConversationWithParticipants) time.Time {
	if c.LastMessage != nil && c.LastMessage.CreatedAt.After(c.UpdatedAt) {
		return c.LastMessage.CreatedAt
	}
	return c.UpdatedAt
}

func (s *ConversationService) fetchList(ctx context.Context, userID string) ([]domain.ConversationWithParticipants, error) {
	ids, err := s.conversations.ConversationIDsOf(ctx, userID)
	if err != nil {
		return nil, fetchError("conversations of "+userID, err)
	}
	if len(ids) == 0 {
		return []domain.ConversationWithParticipants{}, nil
	}

	conversations, err := s.conversations.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fetchError("conversations", err)
	}
	participants, err := s.conversations.ParticipantsOf(ctx, ids)
	if err != nil {
		return nil, fetchError("participants", err)
	}

	userIDs := lo.Uniq(lo.Map(participants, func(p domain.Participant, _ int) string { return p.UserID }))
	profiles, err := s.profiles.FindByIDs(ctx, userIDs)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to resolve participants", "count", len(userIDs), "error", err)
	}
	profileByID := lo.KeyBy(profiles, func(p domain.Profile) string { return p.ID })
	byConversation := lo.GroupBy(participants, func(p domain.Participant) string { return p.ConversationID })

	return lo.Map(conversations, func(c domain.Conversation, _ int) domain.ConversationWithParticipants {
		return domain.ConversationWithParticipants{
			Conversation: c,
			Participants: lo.Map(byConversation[c.ID], func(p domain.Participant, _ int) domain.ParticipantWithUser {
				var profile *domain.Profile
				if found, ok := profileByID[p.UserID]; ok {
					profile = &found
				}
				return domain.ParticipantWithUser{ID: p.ID, UserID: p.UserID, User: domain.AuthorFor(p.UserID, profile)}
			}),
		}
	}), nil
}

// Create starts a conversation between the caller and the listed users.
// With exactly one other user it is direct, and an existing direct
// conversation with that user is returned instead of a new one.
func (s *ConversationService) Create(ctx context.Context, in domain.CreateConversationInput) (*domain.Conversation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	userID, err := s.currentUser(ctx, "create conversation")
	if err != nil {
		return nil, err
	}

	peers := lo.Without(lo.Uniq(in.ParticipantIDs), userID)
	if len(peers) == 0 {
		return nil, &domain.ValidationError{Field: "participant_ids", Reason: "must name someone other than yourself"}
	}
	in.ParticipantIDs = peers
	kind := in.ResolvedType()

	if kind == domain.ConversationDirect {
		if len(peers) != 1 {
			return nil, &domain.ValidationError{Field: "participant_ids", Reason: "a direct conversation has exactly one other participant"}
		}
		existing, err := s.conversations.FindDirectWith(ctx, userID, peers[0])
		if err != nil {
			return nil, fetchError("direct conversation", err)
		}
		if existing != nil {
			s.logger.DebugContext(ctx, "Reusing direct conversation", "conversation_id", existing.ID)
			return existing, nil
		}
	}

	conversation, err := s.conversations.Create(ctx, trimName(in.Name), kind, append([]string{userID}, peers...))
	if err != nil {
		return nil, writeError("create conversation", err)
	}
	s.logger.InfoContext(ctx, "Conversation created", "conversation_id", conversation.ID, "type", kind, "participants", len(peers)+1)
	for _, id := range append([]string{userID}, peers...) {
		s.conversationsChanged(ctx, id, conversation.ID, "created")
	}
	return conversation, nil
}

// Rename sets or, for a nil or blank name, clears a conversation's name.
func (s *ConversationService) Rename(ctx context.Context, id string, name *string) (*domain.Conversation, error) {
	if err := requireID("conversation_id", id); err != nil {
		return nil, err
	}
	name = trimName(name)
	if name != nil && len(*name) > 100 {
		return nil, &domain.ValidationError{Field: "name", Reason: "must be at most 100 characters"}
	}
	if _, err := s.currentUser(ctx, "rename conversation"); err != nil {
		return nil, err
	}

	conversation, err := s.conversations.Rename(ctx, id, name)
	if err != nil {
		return nil, writeError("rename conversation", err)
	}
	// Every participant's list shows the name.
	s.conversationsChanged(ctx, "", id, "renamed")
	return conversation, nil
}

// Leave removes the caller from a conversation.
func (s *ConversationService) Leave(ctx context.Context, id string) error {
	if err := requireID("conversation_id", id); err != nil {
		return err
	}
	userID, err := s.currentUser(ctx, "leave conversation")
	if err != nil {
		return err
	}

	if err := s.conversations.RemoveParticipant(ctx, id, userID); err != nil {
		return writeError("leave conversation", err)
	}
	s.conversationsChanged(ctx, "", id, "left")
	return nil
}

func (s *ConversationService) conversationsChanged(ctx context.Context, userID, conversationID, reason string) {
	s.byUser.invalidate(userID)
	notify(ctx, s.bus, s.logger, TopicConversationsStale, Invalidation{UserID: userID, ConversationID: conversationID, Reason: reason})
}

func trimName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
