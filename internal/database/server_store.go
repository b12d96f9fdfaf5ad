package database

import (
	"context"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/samber/lo"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// ServerStore implements domain.ServerRepository.
type ServerStore struct {
	conn DBConnection
}

var _ domain.ServerRepository = (*ServerStore)(nil)

// NewServerStore creates a new ServerStore.
func NewServerStore(conn DBConnection) *ServerStore {
	return &ServerStore{conn: conn}
}

// ListPublic returns public servers, newest first.
func (s *ServerStore) ListPublic(ctx context.Context, limit int) ([]domain.Server, error) {
	rows, err := readAll[serverRecord](ctx, s.conn,
		"SELECT * FROM server WHERE is_public = true ORDER BY created_at DESC LIMIT $limit",
		map[string]any{"limit": limit})
	if err != nil {
		return nil, WrapError(err, "failed to list public servers")
	}
	return lo.Map(rows, func(r serverRecord, _ int) domain.Server { return r.toDomain() }), nil
}

// FindByID returns the server or an error matching domain.ErrNotFound.
func (s *ServerStore) FindByID(ctx context.Context, id string) (*domain.Server, error) {
	row, err := readOne[serverRecord](ctx, s.conn, "SELECT * FROM $id", map[string]any{
		"id": ref(tableServer, id),
	})
	if err != nil {
		return nil, WrapError(err, "failed to fetch server")
	}
	if row == nil {
		return nil, NewDBError(ErrNotFound, "server "+id)
	}
	srv := row.toDomain()
	return &srv, nil
}

// Create inserts a server owned by ownerID. Public defaults to true.
func (s *ServerStore) Create(ctx context.Context, ownerID string, in domain.CreateServerInput) (*domain.Server, error) {
	set := newSetBuilder()
	set.value("name", in.Name)
	set.optionalString("description", in.Description)
	set.optionalString("icon_url", in.IconURL)
	set.value("owner_id", ref(tableUser, ownerID))
	set.value("is_public", in.IsPublic == nil || *in.IsPublic)

	rows, err := write[serverRecord](ctx, s.conn, "CREATE server SET "+set.clause(), set.params())
	if err != nil {
		return nil, writeError("create server", err)
	}
	if len(rows) == 0 {
		return nil, &domain.WriteError{Op: "create server", Cause: domain.CausePermissionDenied}
	}
	srv := rows[0].toDomain()
	return &srv, nil
}

// MembershipsOf returns every membership of userID.
func (s *ServerStore) MembershipsOf(ctx context.Context, userID string) ([]domain.ServerMember, error) {
	rows, err := readAll[memberRecord](ctx, s.conn, "SELECT * FROM server_member WHERE user_id = $user", map[string]any{
		"user": ref(tableUser, userID),
	})
	if err != nil {
		return nil, WrapError(err, "failed to fetch memberships")
	}
	return lo.Map(rows, func(r memberRecord, _ int) domain.ServerMember { return r.toDomain() }), nil
}

type memberCountRecord struct {
	ServerID *models.RecordID `json:"server_id,omitempty"`
	Count    int              `json:"count"`
}

// MemberCounts counts members per server. Servers without members are absent.
func (s *ServerStore) MemberCounts(ctx context.Context, serverIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(serverIDs))
	if len(serverIDs) == 0 {
		return counts, nil
	}

	rows, err := readAll[memberCountRecord](ctx, s.conn,
		"SELECT server_id, count() AS count FROM server_member WHERE server_id IN $servers GROUP BY server_id",
		map[string]any{"servers": refs(tableServer, serverIDs)})
	if err != nil {
		return nil, WrapError(err, "failed to count members")
	}
	for _, r := range rows {
		counts[keyOf(r.ServerID)] = r.Count
	}
	return counts, nil
}

// ServersOf returns the servers userID belongs to, newest join first.
func (s *ServerStore) ServersOf(ctx context.Context, userID string) ([]domain.UserServer, error) {
	rows, err := readAll[memberWithServerRecord](ctx, s.conn,
		"SELECT *, server_id.* AS server FROM server_member WHERE user_id = $user ORDER BY joined_at DESC",
		map[string]any{"user": ref(tableUser, userID)})
	if err != nil {
		return nil, WrapError(err, "failed to fetch user servers")
	}

	out := make([]domain.UserServer, 0, len(rows))
	for _, r := range rows {
		if r.Server == nil {
			continue
		}
		out = append(out, domain.UserServer{Server: r.Server.toDomain(), Member: r.memberRecord.toDomain()})
	}
	return out, nil
}

// AddMember inserts a membership.
func (s *ServerStore) AddMember(ctx context.Context, serverID, userID string, role domain.MemberRole) (*domain.ServerMember, error) {
	rows, err := write[memberRecord](ctx, s.conn,
		"CREATE server_member SET server_id = $server, user_id = $user, role = $role",
		map[string]any{
			"server": ref(tableServer, serverID),
			"user":   ref(tableUser, userID),
			"role":   string(role),
		})
	if err != nil {
		return nil, writeError("join server", err)
	}
	if len(rows) == 0 {
		return nil, &domain.WriteError{Op: "join server", Cause: domain.CausePermissionDenied}
	}
	m := rows[0].toDomain()
	return &m, nil
}

// RemoveMember deletes the membership of userID in serverID.
func (s *ServerStore) RemoveMember(ctx context.Context, serverID, userID string) error {
	rows, err := write[memberRecord](ctx, s.conn,
		"DELETE server_member WHERE server_id = $server AND user_id = $user RETURN BEFORE",
		map[string]any{
			"server": ref(tableServer, serverID),
			"user":   ref(tableUser, userID),
		})
	if err != nil {
		return writeError("leave server", err)
	}
	if len(rows) == 0 {
		return &domain.WriteError{Op: "leave server", Cause: domain.CauseNotFound, Err: NewDBError(ErrNotFound, "membership in server "+serverID)}
	}
	return nil
}
