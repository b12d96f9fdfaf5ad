package community

import (
	"context"
	"errors"
	"io"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/samber/lo"
)

// AvatarStore keeps uploaded profile pictures.
type AvatarStore interface {
	Upload(ctx context.Context, userID, filename, mimeType string, size int64, r io.Reader) (string, error)
	Remove(ctx context.Context, avatarURL string) error
}

// ProfileService reads and edits profiles.
type ProfileService struct {
	base
	profiles domain.ProfileRepository
	avatars  AvatarStore
}

// NewProfileService creates a ProfileService. Profiles change rarely and
// are read through the repository without a cache.
func NewProfileService(profiles domain.ProfileRepository, avatars AvatarStore, session domain.Session, opts ...Option) *ProfileService {
	o := buildOptions("profiles", opts)
	return &ProfileService{
		base:     base{session: session, logger: o.logger},
		profiles: profiles,
		avatars:  avatars,
	}
}

// Get returns the profile of id, or of the caller when id is empty. The
// caller's own profile is created empty the first time it is read.
func (s *ProfileService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	userID, err := s.currentUser(ctx, "get profile")
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = userID
	}

	profile, err := s.profiles.FindByID(ctx, id)
	switch {
	case err == nil:
		return profile, nil
	case errors.Is(err, domain.ErrNotFound) && id == userID:
		s.logger.InfoContext(ctx, "Creating missing profile", "user_id", id)
		created, err := s.profiles.Create(ctx, id)
		if err != nil {
			return nil, writeError("create profile", err)
		}
		return created, nil
	default:
		return nil, fetchError("profile "+id, err)
	}
}

// Update applies a partial patch to the caller's profile.
func (s *ProfileService) Update(ctx context.Context, patch domain.ProfileUpdate) (*domain.Profile, error) {
	if patch.Empty() {
		return nil, &domain.ValidationError{Field: "patch", Reason: "must change at least one field"}
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	userID, err := s.currentUser(ctx, "update profile")
	if err != nil {
		return nil, err
	}

	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	profile, err := s.profiles.Update(ctx, userID, patch)
	if err != nil {
		return nil, writeError("update profile", err)
	}
	return profile, nil
}

// Search finds other users by display name.
func (s *ProfileService) Search(ctx context.Context, q domain.ProfileSearch) ([]domain.Profile, error) {
	userID, err := s.currentUser(ctx, "search profiles")
	if err != nil {
		return nil, err
	}
	if q.ExcludeID == "" {
		q.ExcludeID = userID
	}
	profiles, err := s.profiles.Search(ctx, q)
	if err != nil {
		return nil, fetchError("profiles", err)
	}
	return profiles, nil
}

// UploadAvatar stores a new picture and points the caller's profile at it.
// The previous picture is removed once the profile is updated.
func (s *ProfileService) UploadAvatar(ctx context.Context, filename, mimeType string, size int64, r io.Reader) (*domain.Profile, error) {
	userID, err := s.currentUser(ctx, "upload avatar")
	if err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, err := s.avatars.Upload(ctx, userID, filename, mimeType, size, r)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, writeError("upload avatar", err)
	}

	profile, err := s.profiles.Update(ctx, userID, domain.ProfileUpdate{AvatarURL: &url})
	if err != nil {
		if rerr := s.avatars.Remove(ctx, url); rerr != nil {
			s.logger.WarnContext(ctx, "Failed to remove orphaned avatar", "url", url, "error", rerr)
		}
		return nil, writeError("set avatar", err)
	}

	s.removeAvatar(ctx, lo.FromPtr(current.AvatarURL))
	return profile, nil
}

// RemoveAvatar clears the caller's profile picture.
func (s *ProfileService) RemoveAvatar(ctx context.Context) (*domain.Profile, error) {
	userID, err := s.currentUser(ctx, "remove avatar")
	if err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if lo.FromPtr(current.AvatarURL) == "" {
		return current, nil
	}

	profile, err := s.profiles.Update(ctx, userID, domain.ProfileUpdate{AvatarURL: lo.ToPtr("")})
	if err != nil {
		return nil, writeError("clear avatar", err)
	}
	s.removeAvatar(ctx, *current.AvatarURL)
	return profile, nil
}

func (s *ProfileService) removeAvatar(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.avatars.Remove(ctx, url); err != nil {
		s.logger.WarnContext(ctx, "Failed to remove previous avatar", "url", url, "error", err)
	}
}
