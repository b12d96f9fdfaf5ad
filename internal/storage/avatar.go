package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/nfrund/chorus/internal/domain"
)

// DefaultAvatarMaxBytes is the upload limit when none is configured.
const DefaultAvatarMaxBytes = 5 * 1024 * 1024

// avatarTypes maps the accepted content types to their default extension.
var avatarTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// AvatarUploader stores profile pictures in a Bucket.
type AvatarUploader struct {
	bucket   Bucket
	maxBytes int64
	now      func() time.Time
	logger   *slog.Logger
}

// NewAvatarUploader creates an uploader that rejects files over maxBytes.
func NewAvatarUploader(bucket Bucket, maxBytes int64) *AvatarUploader {
	if maxBytes <= 0 {
		maxBytes = DefaultAvatarMaxBytes
	}
	return &AvatarUploader{
		bucket:   bucket,
		maxBytes: maxBytes,
		now:      time.Now,
		logger:   slog.Default().With("service", "avatars"),
	}
}

// Upload stores an avatar for userID as {userID}-{unixMillis}.{ext} and
// returns its public URL. The declared size is checked up front; the bytes
// actually read are checked again while copying.
func (u *AvatarUploader) Upload(ctx context.Context, userID, filename, mimeType string, size int64, r io.Reader) (string, error) {
	defaultExt, ok := avatarTypes[strings.ToLower(mimeType)]
	if !ok {
		return "", &domain.ValidationError{Field: "file", Reason: "must be a JPEG, PNG, WebP or GIF image"}
	}
	if size > u.maxBytes {
		return "", &domain.ValidationError{Field: "file", Reason: fmt.Sprintf("must be at most %d bytes", u.maxBytes)}
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		ext = defaultExt
	}
	name := fmt.Sprintf("%s-%d.%s", userID, u.now().UnixMilli(), ext)

	n, err := u.bucket.Save(ctx, name, io.LimitReader(r, u.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("save avatar: %w", err)
	}
	if n > u.maxBytes {
		if err := u.bucket.Delete(ctx, name); err != nil {
			u.logger.WarnContext(ctx, "Failed to remove oversized avatar", "name", name, "error", err)
		}
		return "", &domain.ValidationError{Field: "file", Reason: fmt.Sprintf("must be at most %d bytes", u.maxBytes)}
	}

	u.logger.InfoContext(ctx, "Avatar stored", "user_id", userID, "name", name, "bytes", n)
	return u.bucket.PublicURL(name), nil
}

// Remove deletes the avatar an URL previously returned by Upload points at.
func (u *AvatarUploader) Remove(ctx context.Context, avatarURL string) error {
	if avatarURL == "" {
		return nil
	}
	return u.bucket.Delete(ctx, NameFromURL(avatarURL))
}
