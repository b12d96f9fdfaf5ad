package domain

import "context"

// The interfaces below are requirements OF the domain. internal/database
// implements them against SurrealDB; tests implement them with fakes.

// MessageRepository reads and writes message rows.
type MessageRepository interface {
	// ListRecent returns up to limit of the newest messages in scope, oldest first.
	ListRecent(ctx context.Context, scope Scope, limit int) ([]Message, error)
	Insert(ctx context.Context, msg NewMessage) (*Message, error)
	// UpdateContent only touches rows authored by authorID.
	UpdateContent(ctx context.Context, id, authorID, content string) (*Message, error)
	// Delete only removes rows authored by authorID.
	Delete(ctx context.Context, id, authorID string) error
	// LatestByConversations returns the newest message of each conversation
	// that has one.
	LatestByConversations(ctx context.Context, conversationIDs []string) (map[string]Message, error)
}

// ProfileRepository reads and writes profiles. FindByID returns ErrNotFound
// when no profile exists.
type ProfileRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]Profile, error)
	FindByID(ctx context.Context, id string) (*Profile, error)
	Create(ctx context.Context, id string) (*Profile, error)
	Update(ctx context.Context, id string, patch ProfileUpdate) (*Profile, error)
	Search(ctx context.Context, q ProfileSearch) ([]Profile, error)
}

// FeedSubscription is one live subscription. Events is closed after Close or
// when the backend drops the feed.
type FeedSubscription interface {
	Events() <-chan ChangeEvent
	Close() error
}

// MessageFeed opens live change subscriptions filtered to a scope.
type MessageFeed interface {
	Subscribe(ctx context.Context, scope Scope) (FeedSubscription, error)
}

// Session reports who is signed in. CurrentUserID returns ErrUnauthenticated
// when nobody is.
type Session interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// ServerRepository covers servers and their memberships.
type ServerRepository interface {
	ListPublic(ctx context.Context, limit int) ([]Server, error)
	FindByID(ctx context.Context, id string) (*Server, error)
	Create(ctx context.Context, ownerID string, in CreateServerInput) (*Server, error)
	MembershipsOf(ctx context.Context, userID string) ([]ServerMember, error)
	MemberCounts(ctx context.Context, serverIDs []string) (map[string]int, error)
	ServersOf(ctx context.Context, userID string) ([]UserServer, error)
	AddMember(ctx context.Context, serverID, userID string, role MemberRole) (*ServerMember, error)
	RemoveMember(ctx context.Context, serverID, userID string) error
}

// ChannelRepository covers channels of a server.
type ChannelRepository interface {
	ListByServer(ctx context.Context, serverID string) ([]Channel, error)
	// MaxPosition reports false when the server has no channels.
	MaxPosition(ctx context.Context, serverID string) (int, bool, error)
	Create(ctx context.Context, serverID string, in CreateChannelInput) (*Channel, error)
	Update(ctx context.Context, id string, in UpdateChannelInput) (*Channel, error)
	Delete(ctx context.Context, id string) error
}

// ConversationRepository covers conversations and their participants.
type ConversationRepository interface {
	ConversationIDsOf(ctx context.Context, userID string) ([]string, error)
	// FindByIDs orders by updated_at, newest first.
	FindByIDs(ctx context.Context, ids []string) ([]Conversation, error)
	ParticipantsOf(ctx context.Context, conversationIDs []string) ([]Participant, error)
	// FindDirectWith returns nil, nil when no direct conversation links the two users.
	FindDirectWith(ctx context.Context, userID, peerID string) (*Conversation, error)
	Create(ctx context.Context, name *string, kind ConversationType, participantIDs []string) (*Conversation, error)
	Rename(ctx context.Context, id string, name *string) (*Conversation, error)
	RemoveParticipant(ctx context.Context, conversationID, userID string) error
}

// AuthRepository signs users in against the backend's record access.
type AuthRepository interface {
	SignUp(ctx context.Context, creds Credentials) (string, error)
	SignIn(ctx context.Context, creds Credentials) (string, error)
	Authenticate(ctx context.Context, token string) (*Identity, error)
}
