package domain

import (
	"fmt"
	"strings"
)

// ScopeKind distinguishes channel timelines from direct conversations.
type ScopeKind string

const (
	ScopeChannel      ScopeKind = "channel"
	ScopeConversation ScopeKind = "conversation"
)

// Scope is the single channel or conversation a message view is bound to.
type Scope struct {
	Kind ScopeKind `json:"kind" validate:"required,oneof=channel conversation"`
	ID   string    `json:"id" validate:"notblank"`
}

// ChannelScope returns a Scope bound to a channel.
func ChannelScope(id string) Scope { return Scope{Kind: ScopeChannel, ID: id} }

// ConversationScope returns a Scope bound to a direct conversation.
func ConversationScope(id string) Scope { return Scope{Kind: ScopeConversation, ID: id} }

// ParseScope accepts "channel:ID" or "conversation:ID".
func ParseScope(s string) (Scope, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Scope{}, &ValidationError{Field: "scope", Reason: fmt.Sprintf("must look like kind:id, got %q", s)}
	}
	scope := Scope{Kind: ScopeKind(kind), ID: id}
	if err := scope.Validate(); err != nil {
		return Scope{}, err
	}
	return scope, nil
}

// Validate rejects an unknown kind or an empty ID.
func (s Scope) Validate() error {
	return validateStruct(s)
}

// Field is the message column that references this scope.
func (s Scope) Field() string {
	if s.Kind == ScopeConversation {
		return "conversation_id"
	}
	return "channel_id"
}

func (s Scope) String() string {
	return string(s.Kind) + ":" + s.ID
}

// SameScope reports whether a and b point at the same channel or conversation.
// Two nil scopes are equal.
func SameScope(a, b *Scope) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
