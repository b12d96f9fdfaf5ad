package storage

import (
	"context"
	"io"
)

// Bucket defines the interface for a flat object store whose objects are
// served under a public base URL.
type Bucket interface {
	Save(ctx context.Context, name string, reader io.Reader) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	PublicURL(name string) string
}
