package database

import (
	"context"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/samber/lo"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// ConversationStore implements domain.ConversationRepository.
type ConversationStore struct {
	conn DBConnection
}

var _ domain.ConversationRepository = (*ConversationStore)(nil)

// NewConversationStore creates a new ConversationStore.
func NewConversationStore(conn DBConnection) *ConversationStore {
	return &ConversationStore{conn: conn}
}

// ConversationIDsOf lists the conversations userID participates in.
func (s *ConversationStore) ConversationIDsOf(ctx context.Context, userID string) ([]string, error) {
	rows, err := readAll[models.RecordID](ctx, s.conn,
		"SELECT VALUE conversation_id FROM participant WHERE user_id = $user",
		map[string]any{"user": ref(tableUser, userID)})
	if err != nil {
		return nil, WrapError(err, "failed to list conversations")
	}
	ids := lo.Map(rows, func(r models.RecordID, _ int) string { return recordKey(r) })
	return lo.Uniq(lo.Compact(ids)), nil
}

// FindByIDs returns the visible conversations among ids, most recently
// active first.
func (s *ConversationStore) FindByIDs(ctx context.Context, ids []string) ([]domain.Conversation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := readAll[conversationRecord](ctx, s.conn,
		"SELECT * FROM conversation WHERE id IN $ids ORDER BY updated_at DESC",
		map[string]any{"ids": refs(tableConversation, lo.Uniq(ids))})
	if err != nil {
		return nil, WrapError(err, "failed to fetch conversations")
	}
	return lo.Map(rows, func(r conversationRecord, _ int) domain.Conversation { return r.toDomain() }), nil
}

// ParticipantsOf returns every participant row of the given conversations.
func (s *ConversationStore) ParticipantsOf(ctx context.Context, conversationIDs []string) ([]domain.Participant, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	rows, err := readAll[participantRecord](ctx, s.conn,
		"SELECT * FROM participant WHERE conversation_id IN $conversations ORDER BY joined_at ASC",
		map[string]any{"conversations": refs(tableConversation, conversationIDs)})
	if err != nil {
		return nil, WrapError(err, "failed to fetch participants")
	}
	return lo.Map(rows, func(r participantRecord, _ int) domain.Participant { return r.toDomain() }), nil
}

// FindDirectWith finds the direct conversation both users take part in.
func (s *ConversationStore) FindDirectWith(ctx context.Context, userID, peerID string) (*domain.Conversation, error) {
	row, err := readOne[conversationRecord](ctx, s.conn, `SELECT * FROM conversation
		WHERE type = 'direct'
		AND id IN (SELECT VALUE conversation_id FROM participant WHERE user_id = $user)
		AND id IN (SELECT VALUE conversation_id FROM participant WHERE user_id = $peer)
		LIMIT 1`,
		map[string]any{
			"user": ref(tableUser, userID),
			"peer": ref(tableUser, peerID),
		})
	if err != nil {
		return nil, WrapError(err, "failed to look up direct conversation")
	}
	if row == nil {
		return nil, nil
	}
	conv := row.toDomain()
	return &conv, nil
}

// Create inserts the conversation and then its participants in the given
// order. The first participant must be the signed-in user.
func (s *ConversationStore) Create(ctx context.Context, name *string, kind domain.ConversationType, participantIDs []string) (*domain.Conversation, error) {
	if len(participantIDs) == 0 {
		return nil, NewDBError(ErrInvalidInput, "a conversation needs participants")
	}

	set := newSetBuilder()
	set.value("type", string(kind))
	if name != nil && *name != "" {
		set.value("name", *name)
	}
	rows, err := write[conversationRecord](ctx, s.conn, "CREATE conversation SET "+set.clause(), set.params())
	if err != nil {
		return nil, writeError("create conversation", err)
	}
	if len(rows) == 0 {
		return nil, &domain.WriteError{Op: "create conversation", Cause: domain.CausePermissionDenied}
	}
	conv := rows[0].toDomain()

	convRef := ref(tableConversation, conv.ID)
	participants := lo.Map(lo.Uniq(participantIDs), func(id string, _ int) map[string]any {
		return map[string]any{"conversation_id": convRef, "user_id": ref(tableUser, id)}
	})
	if err := exec(ctx, s.conn, "INSERT INTO participant $rows", map[string]any{"rows": participants}); err != nil {
		return nil, writeError("add participants", err)
	}
	return &conv, nil
}

// Rename sets the conversation name, or clears it when name is nil or empty.
func (s *ConversationStore) Rename(ctx context.Context, id string, name *string) (*domain.Conversation, error) {
	if name == nil {
		name = new(string)
	}
	set := newSetBuilder()
	set.optionalString("name", name)
	set.raw("updated_at = time::now()")

	params := set.params()
	params["id"] = ref(tableConversation, id)
	rows, err := write[conversationRecord](ctx, s.conn, "UPDATE $id SET "+set.clause()+" RETURN AFTER", params)
	if err != nil {
		return nil, writeError("rename conversation", err)
	}
	if len(rows) == 0 {
		return nil, &domain.WriteError{Op: "rename conversation", Cause: domain.CauseNotFound, Err: NewDBError(ErrNotFound, "conversation "+id)}
	}
	conv := rows[0].toDomain()
	return &conv, nil
}

// RemoveParticipant deletes userID from the conversation.
func (s *ConversationStore) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	rows, err := write[participantRecord](ctx, s.conn,
		"DELETE participant WHERE conversation_id = $conversation AND user_id = $user RETURN BEFORE",
		map[string]any{
			"conversation": ref(tableConversation, conversationID),
			"user":         ref(tableUser, userID),
		})
	if err != nil {
		return writeError("leave conversation", err)
	}
	if len(rows) == 0 {
		return &domain.WriteError{Op: "leave conversation", Cause: domain.CauseNotFound, Err: NewDBError(ErrNotFound, "participant in conversation "+conversationID)}
	}
	return nil
}
