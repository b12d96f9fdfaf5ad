package domain

import (
	"strings"
	"time"
)

// Message is a single chat line. Exactly one of ChannelID and ConversationID
// is set.
type Message struct {
	ID             string    `json:"id"`
	ChannelID      string    `json:"channel_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	UserID         string    `json:"user_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Scope returns the channel or conversation the message belongs to.
func (m Message) Scope() (Scope, bool) {
	switch {
	case m.ChannelID != "" && m.ConversationID == "":
		return ChannelScope(m.ChannelID), true
	case m.ConversationID != "" && m.ChannelID == "":
		return ConversationScope(m.ConversationID), true
	default:
		return Scope{}, false
	}
}

// InScope reports whether the message belongs to s.
func (m Message) InScope(s Scope) bool {
	ms, ok := m.Scope()
	return ok && ms == s
}

// NewMessage is the row submitted by a send.
type NewMessage struct {
	Scope   Scope  `json:"scope"`
	UserID  string `json:"user_id" validate:"notblank"`
	Content string `json:"content" validate:"notblank"`
}

// Validate checks the scope and that author and content are present.
func (n NewMessage) Validate() error {
	if err := n.Scope.Validate(); err != nil {
		return err
	}
	return validateStruct(n)
}

// NormalizeContent trims surrounding whitespace and reports whether anything
// is left.
func NormalizeContent(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	return trimmed, trimmed != ""
}

// Author is the denormalized profile snapshot shown next to a message.
type Author struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}

// AuthorFor builds the author snapshot for userID, falling back to a bare ID
// when the profile is missing.
func AuthorFor(userID string, p *Profile) Author {
	if p == nil {
		return Author{ID: userID}
	}
	return Author{ID: userID, DisplayName: p.DisplayName, AvatarURL: p.AvatarURL}
}

// MessageWithAuthor is a Message joined with its author's snapshot.
type MessageWithAuthor struct {
	Message
	Author Author `json:"user"`
}

// ChangeKind tags a live-feed notification.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is one row-level notification from the live feed. Delete events
// may carry only the ID.
type ChangeEvent struct {
	Kind    ChangeKind `json:"kind"`
	Message Message    `json:"message"`
}
