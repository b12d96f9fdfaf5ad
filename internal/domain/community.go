package domain

import (
	"strings"
	"time"
)

// MemberRole is a user's role inside a server.
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// Server is a community that owns channels.
type Server struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	IconURL     *string   `json:"icon_url"`
	OwnerID     string    `json:"owner_id"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ServerMember links a user to a server.
type ServerMember struct {
	ID       string     `json:"id"`
	ServerID string     `json:"server_id"`
	UserID   string     `json:"user_id"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
}

// ServerWithMember is a discoverable server annotated for the caller.
type ServerWithMember struct {
	Server
	Member      *ServerMember `json:"member,omitempty"`
	MemberCount int           `json:"member_count"`
}

// UserServer is a server the caller belongs to.
type UserServer struct {
	Server
	Member ServerMember `json:"member"`
}

// CreateServerInput is validated before any write.
type CreateServerInput struct {
	Name        string  `json:"name" validate:"notblank,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	IconURL     *string `json:"icon_url,omitempty" validate:"omitempty,max=2048"`
	IsPublic    *bool   `json:"is_public,omitempty"`
}

// Normalize trims the text fields and drops empty optionals.
func (in *CreateServerInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = trimOptional(in.Description)
	in.IconURL = trimOptional(in.IconURL)
}

func (in CreateServerInput) Validate() error { return validateStruct(in) }

// ChannelType is the kind of room a channel is.
type ChannelType string

const (
	ChannelText  ChannelType = "text"
	ChannelVoice ChannelType = "voice"
	ChannelVideo ChannelType = "video"
)

// Channel is a room inside a server.
type Channel struct {
	ID          string      `json:"id"`
	ServerID    string      `json:"server_id"`
	Name        string      `json:"name"`
	Description *string     `json:"description"`
	Type        ChannelType `json:"type"`
	Position    int         `json:"position"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CreateChannelInput leaves Type and Position optional; the service fills
// defaults.
type CreateChannelInput struct {
	Name        string      `json:"name" validate:"notblank,max=100"`
	Description *string     `json:"description,omitempty" validate:"omitempty,max=500"`
	Type        ChannelType `json:"type,omitempty" validate:"omitempty,oneof=text voice video"`
	Position    *int        `json:"position,omitempty" validate:"omitempty,gte=0"`
}

func (in *CreateChannelInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = trimOptional(in.Description)
}

func (in CreateChannelInput) Validate() error { return validateStruct(in) }

// UpdateChannelInput is a partial patch. A pointer to an empty description
// clears it.
type UpdateChannelInput struct {
	Name        *string      `json:"name,omitempty" validate:"omitempty,notblank,max=100"`
	Description *string      `json:"description,omitempty" validate:"omitempty,max=500"`
	Type        *ChannelType `json:"type,omitempty" validate:"omitempty,oneof=text voice video"`
	Position    *int         `json:"position,omitempty" validate:"omitempty,gte=0"`
}

func (in *UpdateChannelInput) Normalize() {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		in.Description = &desc
	}
}

func (in UpdateChannelInput) Validate() error {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	return validateStruct(in)
}

func (in UpdateChannelInput) Empty() bool {
	return in.Name == nil && in.Description == nil && in.Type == nil && in.Position == nil
}

// ConversationType separates one-to-one from group conversations.
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// Conversation is a private message thread outside any server.
type Conversation struct {
	ID        string           `json:"id"`
	Name      *string          `json:"name"`
	Type      ConversationType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Participant links a user to a conversation.
type Participant struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
}

// ParticipantWithUser carries the author snapshot for display.
type ParticipantWithUser struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	User   Author `json:"user"`
}

// ConversationWithParticipants is one row of the conversation list.
type ConversationWithParticipants struct {
	Conversation
	Participants []ParticipantWithUser `json:"participants"`
	LastMessage  *Message              `json:"last_message,omitempty"`
}

// CreateConversationInput lists the other participants; the caller is added
// implicitly.
type CreateConversationInput struct {
	ParticipantIDs []string         `json:"participant_ids" validate:"required,min=1,dive,notblank"`
	Name           *string          `json:"name,omitempty" validate:"omitempty,max=100"`
	Type           ConversationType `json:"type,omitempty" validate:"omitempty,oneof=direct group"`
}

// ResolvedType returns the explicit type, or direct for exactly one peer and
// group otherwise.
func (in CreateConversationInput) ResolvedType() ConversationType {
	if in.Type != "" {
		return in.Type
	}
	if len(in.ParticipantIDs) == 1 {
		return ConversationDirect
	}
	return ConversationGroup
}

func (in CreateConversationInput) Validate() error {
	if len(in.ParticipantIDs) == 0 {
		return &ValidationError{Field: "participant_ids", Reason: "must name at least one user"}
	}
	return validateStruct(in)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
