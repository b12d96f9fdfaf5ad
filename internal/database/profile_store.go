package database

import (
	"context"
	"strings"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/samber/lo"
)

// DefaultSearchLimit caps profile searches without an explicit limit.
const DefaultSearchLimit = 10

// ProfileStore implements domain.ProfileRepository.
type ProfileStore struct {
	conn DBConnection
}

var _ domain.ProfileRepository = (*ProfileStore)(nil)

// NewProfileStore creates a new ProfileStore.
func NewProfileStore(conn DBConnection) *ProfileStore {
	return &ProfileStore{conn: conn}
}

// FindByIDs fetches the profiles that exist among ids. Missing ones are
// simply absent from the result.
func (s *ProfileStore) FindByIDs(ctx context.Context, ids []string) ([]domain.Profile, error) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := readAll[profileRecord](ctx, s.conn, "SELECT * FROM profile WHERE id IN $ids", map[string]any{
		"ids": refs(tableProfile, ids),
	})
	if err != nil {
		return nil, WrapError(err, "failed to fetch profiles")
	}
	return lo.Map(rows, func(r profileRecord, _ int) domain.Profile { return r.toDomain() }), nil
}

// FindByID returns the profile or an error matching domain.ErrNotFound.
func (s *ProfileStore) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	if id == "" {
		return nil, NewDBError(ErrInvalidInput, "profile id is required")
	}

	row, err := readOne[profileRecord](ctx, s.conn, "SELECT * FROM $id", map[string]any{
		"id": ref(tableProfile, id),
	})
	if err != nil {
		return nil, WrapError(err, "failed to fetch profile")
	}
	if row == nil {
		return nil, NewDBError(ErrNotFound, "profile "+id)
	}
	p := row.toDomain()
	return &p, nil
}

// Create inserts an empty profile for user id.
func (s *ProfileStore) Create(ctx context.Context, id string) (*domain.Profile, error) {
	if id == "" {
		return nil, NewDBError(ErrInvalidInput, "profile id is required")
	}

	rows, err := write[profileRecord](ctx, s.conn, "CREATE $id RETURN AFTER", map[string]any{
		"id": ref(tableProfile, id),
	})
	if err != nil {
		return nil, writeError("create profile", err)
	}
	if len(rows) == 0 {
		return nil, &domain.WriteError{Op: "create profile", Cause: domain.CausePermissionDenied}
	}
	p := rows[0].toDomain()
	return &p, nil
}

// Update applies patch. A pointer to an empty string clears the field.
func (s *ProfileStore) Update(ctx context.Context, id string, patch domain.ProfileUpdate) (*domain.Profile, error) {
	if id == "" {
		return nil, NewDBError(ErrInvalidInput, "profile id is required")
	}

	set := newSetBuilder()
	set.optionalString("display_name", patch.DisplayName)
	set.optionalString("avatar_url", patch.AvatarURL)
	set.optionalString("status_message", patch.StatusMessage)
	if set.empty() {
		return s.FindByID(ctx, id)
	}

	params := set.params()
	params["id"] = ref(tableProfile, id)
	rows, err := write[profileRecord](ctx, s.conn, "UPDATE $id SET "+set.clause()+" RETURN AFTER", params)
	if err != nil {
		return nil, writeError("update profile", err)
	}
	if len(rows) == 0 {
		return nil, &domain.WriteError{Op: "update profile", Cause: domain.CauseNotFound, Err: NewDBError(ErrNotFound, "profile "+id)}
	}
	p := rows[0].toDomain()
	return &p, nil
}

// Search matches display names case-insensitively.
func (s *ProfileStore) Search(ctx context.Context, q domain.ProfileSearch) ([]domain.Profile, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	query := "SELECT * FROM profile WHERE string::contains(string::lowercase(display_name ?? ''), $q)"
	params := map[string]any{
		"q":     strings.ToLower(strings.TrimSpace(q.Query)),
		"limit": limit,
	}
	if q.ExcludeID != "" {
		query += " AND id != $exclude"
		params["exclude"] = ref(tableProfile, q.ExcludeID)
	}
	query += " ORDER BY display_name ASC LIMIT $limit"

	rows, err := readAll[profileRecord](ctx, s.conn, query, params)
	if err != nil {
		return nil, WrapError(err, "failed to search profiles")
	}
	return lo.Map(rows, func(r profileRecord, _ int) domain.Profile { return r.toDomain() }), nil
}
