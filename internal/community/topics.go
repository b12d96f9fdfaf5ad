package community

import "github.com/nfrund/chorus/internal/pubsub"

// Invalidation tells caches that data they hold is out of date. Empty
// fields widen the invalidation: no ServerID means every server.
type Invalidation struct {
	UserID         string `json:"user_id,omitempty"`
	ServerID       string `json:"server_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Reason         string `json:"reason"`
}

// Metadata keys set on invalidation messages.
const (
	MetaServerID = "server_id"
)

var (
	// TopicMembershipsStale is published after a user creates, joins or
	// leaves a server.
	TopicMembershipsStale = pubsub.NewEvent[Invalidation]("community.memberships.stale",
		"A user's server memberships changed")

	// TopicChannelsStale is published after a channel of a server changes.
	TopicChannelsStale = pubsub.NewEvent[Invalidation]("community.channels.stale",
		"The channel list of a server changed")

	// TopicConversationsStale is published after a conversation is created,
	// renamed or left.
	TopicConversationsStale = pubsub.NewEvent[Invalidation]("community.conversations.stale",
		"A user's conversation list changed")
)
