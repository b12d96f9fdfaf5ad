package database

import (
	"context"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/samber/lo"
)

// ChannelStore implements domain.ChannelRepository.
type ChannelStore struct {
	conn DBConnection
}

var _ domain.ChannelRepository = (*ChannelStore)(nil)

// NewChannelStore creates a new ChannelStore.
func NewChannelStore(conn DBConnection) *ChannelStore {
	return &ChannelStore{conn: conn}
}

// ListByServer orders by position, then creation time.
func (s *ChannelStore) ListByServer(ctx context.Context, serverID string) ([]domain.Channel, error) {
	rows, err := readAll[channelRecord](ctx, s.conn,
		"SELECT * FROM channel WHERE server_id = $server ORDER BY position ASC, created_at ASC",
		map[string]any{"server": ref(tableServer, serverID)})
	if err != nil {
		return nil, WrapError(err, "failed to list channels")
	}
	return lo.Map(rows, func(r channelRecord, _ int) domain.Channel { return r.toDomain() }), nil
}

// MaxPosition returns the highest channel position of serverID.
func (s *ChannelStore) MaxPosition(ctx context.Context, serverID string) (int, bool, error) {
	row, err := readOne[channelRecord](ctx, s.conn,
		"SELECT position FROM channel WHERE server_id = $server ORDER BY position DESC LIMIT 1",
		map[string]any{"server": ref(tableServer, serverID)})
	if err != nil {
		return 0, false, WrapError(err, "failed to read channel positions")
	}
	if row == nil {
		return 0, false, nil
	}
	return row.Position, true, nil
}

// Create inserts a channel. Type and Position must already be resolved.
func (s *ChannelStore) Create(ctx context.Context, serverID string, in domain.CreateChannelInput) (*domain.Channel, error) {
	set := newSetBuilder()
	set.value("server_id", ref(tableServer, serverID))
	set.value("name", in.Name)
	set.optionalString("description", in.Description)
	if in.Type != "" {
		set.value("type", string(in.Type))
	}
	set.optionalInt("position", in.Position)

	rows, err := write[channelRecord](ctx, s.conn, "CREATE channel SET "+set.clause(), set.params())
	if err != nil {
		return nil, writeError("create channel", err)
	}
	if len(rows) == 0 {
		return nil, &domain.WriteError{Op: "create channel", Cause: domain.CausePermissionDenied}
	}
	ch := rows[0].toDomain()
	return &ch, nil
}

// Update applies a partial patch.
func (s *ChannelStore) Update(ctx context.Context, id string, in domain.UpdateChannelInput) (*domain.Channel, error) {
	set := newSetBuilder()
	if in.Name != nil {
		set.value("name", *in.Name)
	}
	set.optionalString("description", in.Description)
	if in.Type != nil {
		set.value("type", string(*in.Type))
	}
	set.optionalInt("position", in.Position)
	if set.empty() {
		return nil, NewDBError(ErrInvalidInput, "channel update is empty")
	}

	params := set.params()
	params["id"] = ref(tableChannel, id)
	rows, err := write[channelRecord](ctx, s.conn, "UPDATE $id SET "+set.clause()+" RETURN AFTER", params)
	if err != nil {
		return nil, writeError("update channel", err)
	}
	if len(rows) == 0 {
		return nil, &domain.WriteError{Op: "update channel", Cause: domain.CauseNotFound, Err: NewDBError(ErrNotFound, "channel "+id)}
	}
	ch := rows[0].toDomain()
	return &ch, nil
}

// Delete removes the channel.
func (s *ChannelStore) Delete(ctx context.Context, id string) error {
	rows, err := write[channelRecord](ctx, s.conn, "DELETE $id RETURN BEFORE", map[string]any{
		"id": ref(tableChannel, id),
	})
	if err != nil {
		return writeError("delete channel", err)
	}
	if len(rows) == 0 {
		return &domain.WriteError{Op: "delete channel", Cause: domain.CauseNotFound, Err: NewDBError(ErrNotFound, "channel "+id)}
	}
	return nil
}
