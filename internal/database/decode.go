package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// Table names.
const (
	tableUser          = "user"
	tableProfile       = "profile"
	tableMessage       = "message"
	tableServer        = "server"
	tableServerMember  = "server_member"
	tableChannel       = "channel"
	tableConversation  = "conversation"
	tableParticipant   = "participant"
	tableSchemaVersion = "schema_migration"
)

// ref builds a record link for a bare key such as "abc" or a full id such as
// "message:abc".
func ref(table, id string) models.RecordID {
	if tb, key, ok := strings.Cut(id, ":"); ok && tb == table {
		id = key
	}
	return models.NewRecordID(table, id)
}

func refs(table string, ids []string) []models.RecordID {
	out := make([]models.RecordID, 0, len(ids))
	for _, id := range ids {
		out = append(out, ref(table, id))
	}
	return out
}

// recordKey extracts the key part of a record link in any of the shapes the
// driver produces: RecordID values, pointers, "table:key" strings, or maps
// with tb and id entries.
func recordKey(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case models.RecordID:
		return fmt.Sprint(r.ID)
	case *models.RecordID:
		if r == nil {
			return ""
		}
		return fmt.Sprint(r.ID)
	case string:
		if _, key, ok := strings.Cut(r, ":"); ok {
			return strings.Trim(key, "⟨⟩`")
		}
		return r
	case map[string]any:
		if id, ok := r["id"]; ok {
			return fmt.Sprint(id)
		}
		return ""
	default:
		return fmt.Sprint(r)
	}
}

func keyOf(r *models.RecordID) string {
	return recordKey(r)
}

// timeOf accepts the datetime shapes the driver produces.
func timeOf(v any) time.Time {
	switch t := v.(type) {
	case models.CustomDateTime:
		return t.Time
	case *models.CustomDateTime:
		if t == nil {
			return time.Time{}
		}
		return t.Time
	case time.Time:
		return t
	case *time.Time:
		if t == nil {
			return time.Time{}
		}
		return *t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}

func dt(t *models.CustomDateTime) time.Time {
	return timeOf(t)
}

func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case *string:
		if s == nil {
			return ""
		}
		return *s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// messageFromMap decodes a live notification payload. Delete notifications
// may carry only the id.
func messageFromMap(data any) (domain.Message, error) {
	m, ok := data.(map[string]any)
	if !ok {
		if rid, isRef := data.(models.RecordID); isRef {
			return domain.Message{ID: recordKey(rid)}, nil
		}
		return domain.Message{}, fmt.Errorf("unexpected notification payload %T", data)
	}
	msg := domain.Message{
		ID:             recordKey(m["id"]),
		ChannelID:      recordKey(m["channel_id"]),
		ConversationID: recordKey(m["conversation_id"]),
		UserID:         recordKey(m["user_id"]),
		Content:        stringOf(m["content"]),
		CreatedAt:      timeOf(m["created_at"]),
		UpdatedAt:      timeOf(m["updated_at"]),
	}
	if msg.ID == "" {
		return domain.Message{}, fmt.Errorf("notification payload has no id")
	}
	return msg, nil
}

// Row shapes as stored. The driver's CBOR decoder honours json tags.

type messageRecord struct {
	ID             *models.RecordID       `json:"id,omitempty"`
	ChannelID      *models.RecordID       `json:"channel_id,omitempty"`
	ConversationID *models.RecordID       `json:"conversation_id,omitempty"`
	UserID         *models.RecordID       `json:"user_id,omitempty"`
	Content        string                 `json:"content"`
	CreatedAt      *models.CustomDateTime `json:"created_at,omitempty"`
	UpdatedAt      *models.CustomDateTime `json:"updated_at,omitempty"`
}

func (r messageRecord) toDomain() domain.Message {
	return domain.Message{
		ID:             keyOf(r.ID),
		ChannelID:      keyOf(r.ChannelID),
		ConversationID: keyOf(r.ConversationID),
		UserID:         keyOf(r.UserID),
		Content:        r.Content,
		CreatedAt:      dt(r.CreatedAt),
		UpdatedAt:      dt(r.UpdatedAt),
	}
}

type profileRecord struct {
	ID            *models.RecordID       `json:"id,omitempty"`
	DisplayName   *string                `json:"display_name,omitempty"`
	AvatarURL     *string                `json:"avatar_url,omitempty"`
	StatusMessage *string                `json:"status_message,omitempty"`
	CreatedAt     *models.CustomDateTime `json:"created_at,omitempty"`
	UpdatedAt     *models.CustomDateTime `json:"updated_at,omitempty"`
}

func (r profileRecord) toDomain() domain.Profile {
	return domain.Profile{
		ID:            keyOf(r.ID),
		DisplayName:   r.DisplayName,
		AvatarURL:     r.AvatarURL,
		StatusMessage: r.StatusMessage,
		CreatedAt:     dt(r.CreatedAt),
		UpdatedAt:     dt(r.UpdatedAt),
	}
}

type serverRecord struct {
	ID          *models.RecordID       `json:"id,omitempty"`
	Name        string                 `json:"name"`
	Description *string                `json:"description,omitempty"`
	IconURL     *string                `json:"icon_url,omitempty"`
	OwnerID     *models.RecordID       `json:"owner_id,omitempty"`
	IsPublic    bool                   `json:"is_public"`
	CreatedAt   *models.CustomDateTime `json:"created_at,omitempty"`
	UpdatedAt   *models.CustomDateTime `json:"updated_at,omitempty"`
}

func (r serverRecord) toDomain() domain.Server {
	return domain.Server{
		ID:          keyOf(r.ID),
		Name:        r.Name,
		Description: r.Description,
		IconURL:     r.IconURL,
		OwnerID:     keyOf(r.OwnerID),
		IsPublic:    r.IsPublic,
		CreatedAt:   dt(r.CreatedAt),
		UpdatedAt:   dt(r.UpdatedAt),
	}
}

type memberRecord struct {
	ID       *models.RecordID       `json:"id,omitempty"`
	ServerID *models.RecordID       `json:"server_id,omitempty"`
	UserID   *models.RecordID       `json:"user_id,omitempty"`
	Role     string                 `json:"role"`
	JoinedAt *models.CustomDateTime `json:"joined_at,omitempty"`
}

func (r memberRecord) toDomain() domain.ServerMember {
	return domain.ServerMember{
		ID:       keyOf(r.ID),
		ServerID: keyOf(r.ServerID),
		UserID:   keyOf(r.UserID),
		Role:     domain.MemberRole(r.Role),
		JoinedAt: dt(r.JoinedAt),
	}
}

// memberWithServerRecord is a membership with its server fetched through the link.
type memberWithServerRecord struct {
	memberRecord
	Server *serverRecord `json:"server,omitempty"`
}

type channelRecord struct {
	ID          *models.RecordID       `json:"id,omitempty"`
	ServerID    *models.RecordID       `json:"server_id,omitempty"`
	Name        string                 `json:"name"`
	Description *string                `json:"description,omitempty"`
	Type        string                 `json:"type"`
	Position    int                    `json:"position"`
	CreatedAt   *models.CustomDateTime `json:"created_at,omitempty"`
	UpdatedAt   *models.CustomDateTime `json:"updated_at,omitempty"`
}

func (r channelRecord) toDomain() domain.Channel {
	return domain.Channel{
		ID:          keyOf(r.ID),
		ServerID:    keyOf(r.ServerID),
		Name:        r.Name,
		Description: r.Description,
		Type:        domain.ChannelType(r.Type),
		Position:    r.Position,
		CreatedAt:   dt(r.CreatedAt),
		UpdatedAt:   dt(r.UpdatedAt),
	}
}

type conversationRecord struct {
	ID        *models.RecordID       `json:"id,omitempty"`
	Name      *string                `json:"name,omitempty"`
	Type      string                 `json:"type"`
	CreatedAt *models.CustomDateTime `json:"created_at,omitempty"`
	UpdatedAt *models.CustomDateTime `json:"updated_at,omitempty"`
}

func (r conversationRecord) toDomain() domain.Conversation {
	return domain.Conversation{
		ID:        keyOf(r.ID),
		Name:      r.Name,
		Type:      domain.ConversationType(r.Type),
		CreatedAt: dt(r.CreatedAt),
		UpdatedAt: dt(r.UpdatedAt),
	}
}

type participantRecord struct {
	ID             *models.RecordID       `json:"id,omitempty"`
	ConversationID *models.RecordID       `json:"conversation_id,omitempty"`
	UserID         *models.RecordID       `json:"user_id,omitempty"`
	JoinedAt       *models.CustomDateTime `json:"joined_at,omitempty"`
}

func (r participantRecord) toDomain() domain.Participant {
	return domain.Participant{
		ID:             keyOf(r.ID),
		ConversationID: keyOf(r.ConversationID),
		UserID:         keyOf(r.UserID),
		JoinedAt:       dt(r.JoinedAt),
	}
}
