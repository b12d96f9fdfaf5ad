package database

import (
	"context"
	"fmt"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/samber/lo"
)

// MessageStore implements domain.MessageRepository.
type MessageStore struct {
	conn DBConnection
}

var _ domain.MessageRepository = (*MessageStore)(nil)

// NewMessageStore creates a new MessageStore.
func NewMessageStore(conn DBConnection) *MessageStore {
	return &MessageStore{conn: conn}
}

// ListRecent returns the newest limit messages of scope in ascending
// created_at order.
func (s *MessageStore) ListRecent(ctx context.Context, scope domain.Scope, limit int) ([]domain.Message, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, NewDBError(ErrInvalidInput, "limit must be positive")
	}

	query := fmt.Sprintf(`SELECT * FROM (
		SELECT * FROM message WHERE %s = $scope ORDER BY created_at DESC LIMIT $limit
	) ORDER BY created_at ASC`, scope.Field())

	rows, err := readAll[messageRecord](ctx, s.conn, query, map[string]any{
		"scope": ref(string(scope.Kind), scope.ID),
		"limit": limit,
	})
	if err != nil {
		return nil, WrapError(err, "failed to list messages")
	}
	return lo.Map(rows, func(r messageRecord, _ int) domain.Message { return r.toDomain() }), nil
}

// Insert creates the message row. The author must be the signed-in user for
// row permissions to accept it.
func (s *MessageStore) Insert(ctx context.Context, msg domain.NewMessage) (*domain.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("CREATE message SET %s = $scope, user_id = $user, content = $content", msg.Scope.Field())
	rows, err := write[messageRecord](ctx, s.conn, query, map[string]any{
		"scope":   ref(string(msg.Scope.Kind), msg.Scope.ID),
		"user":    ref(tableUser, msg.UserID),
		"content": msg.Content,
	})
	if err != nil {
		return nil, writeError("insert message", err)
	}
	if len(rows) == 0 {
		// CREATE returns nothing when permissions hide the new row.
		return nil, &domain.WriteError{Op: "insert message", Cause: domain.CausePermissionDenied}
	}
	m := rows[0].toDomain()
	return &m, nil
}

// UpdateContent rewrites content of the message only if authorID wrote it.
func (s *MessageStore) UpdateContent(ctx context.Context, id, authorID, content string) (*domain.Message, error) {
	if id == "" || authorID == "" {
		return nil, NewDBError(ErrInvalidInput, "message id and author are required")
	}

	rows, err := write[messageRecord](ctx, s.conn,
		"UPDATE $id SET content = $content WHERE user_id = $user RETURN AFTER",
		map[string]any{
			"id":      ref(tableMessage, id),
			"user":    ref(tableUser, authorID),
			"content": content,
		})
	if err != nil {
		return nil, writeError("update message", err)
	}
	if len(rows) == 0 {
		return nil, s.missOrDenied(ctx, "update message", id)
	}
	m := rows[0].toDomain()
	return &m, nil
}

// Delete removes the message only if authorID wrote it.
func (s *MessageStore) Delete(ctx context.Context, id, authorID string) error {
	if id == "" || authorID == "" {
		return NewDBError(ErrInvalidInput, "message id and author are required")
	}

	rows, err := write[messageRecord](ctx, s.conn,
		"DELETE $id WHERE user_id = $user RETURN BEFORE",
		map[string]any{
			"id":   ref(tableMessage, id),
			"user": ref(tableUser, authorID),
		})
	if err != nil {
		return writeError("delete message", err)
	}
	if len(rows) == 0 {
		return s.missOrDenied(ctx, "delete message", id)
	}
	return nil
}

// missOrDenied explains an author-filtered write that matched nothing: the
// row is either gone (or invisible) or belongs to someone else.
func (s *MessageStore) missOrDenied(ctx context.Context, op, id string) error {
	existing, err := readOne[messageRecord](ctx, s.conn, "SELECT id FROM $id", map[string]any{
		"id": ref(tableMessage, id),
	})
	if err != nil {
		return writeError(op, err)
	}
	if existing == nil {
		return &domain.WriteError{Op: op, Cause: domain.CauseNotFound, Err: NewDBError(ErrNotFound, "message "+id)}
	}
	return &domain.WriteError{Op: op, Cause: domain.CausePermissionDenied, Err: fmt.Errorf("message %s belongs to another user", id)}
}

// LatestByConversations returns the newest message per conversation.
func (s *MessageStore) LatestByConversations(ctx context.Context, conversationIDs []string) (map[string]domain.Message, error) {
	latest := make(map[string]domain.Message)
	if len(conversationIDs) == 0 {
		return latest, nil
	}

	rows, err := readAll[messageRecord](ctx, s.conn,
		"SELECT * FROM message WHERE conversation_id IN $conversations ORDER BY created_at DESC",
		map[string]any{"conversations": refs(tableConversation, conversationIDs)})
	if err != nil {
		return nil, WrapError(err, "failed to load latest messages")
	}

	for _, r := range rows {
		m := r.toDomain()
		if _, seen := latest[m.ConversationID]; !seen && m.ConversationID != "" {
			latest[m.ConversationID] = m
		}
	}
	return latest, nil
}
