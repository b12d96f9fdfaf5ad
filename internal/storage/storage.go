package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrInvalidName is returned for object names that are empty or try to leave
// the bucket root.
var ErrInvalidName = errors.New("invalid object name")

// AferoBucket stores objects as files under root on an afero filesystem.
// Production uses the OS filesystem; tests use an in-memory one.
type AferoBucket struct {
	fs      afero.Fs
	root    string
	baseURL string
}

// NewAferoBucket creates a bucket rooted at root whose objects are served
// under baseURL.
func NewAferoBucket(fs afero.Fs, root, baseURL string) *AferoBucket {
	return &AferoBucket{fs: fs, root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

func (b *AferoBucket) pathOf(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(b.root, name), nil
}

// Save writes the content of the reader to the named object, replacing any
// previous content. A failed write leaves no partial object behind.
func (b *AferoBucket) Save(ctx context.Context, name string, reader io.Reader) (int64, error) {
	p, err := b.pathOf(name)
	if err != nil {
		return 0, err
	}
	if err := b.fs.MkdirAll(b.root, 0o755); err != nil {
		return 0, fmt.Errorf("create bucket root: %w", err)
	}
	f, err := b.fs.Create(p)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, reader)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = b.fs.Remove(p)
		return 0, err
	}
	return n, nil
}

// Open opens the named object for reading.
func (b *AferoBucket) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	p, err := b.pathOf(name)
	if err != nil {
		return nil, err
	}
	return b.fs.OpenFile(p, os.O_RDONLY, 0)
}

// Delete removes the named object. Deleting a missing object is not an error.
func (b *AferoBucket) Delete(ctx context.Context, name string) error {
	p, err := b.pathOf(name)
	if err != nil {
		return err
	}
	if err := b.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PublicURL returns the URL the object is served under.
func (b *AferoBucket) PublicURL(name string) string {
	return b.baseURL + "/" + name
}

// NameFromURL returns the last path segment of an object URL.
func NameFromURL(rawURL string) string {
	rawURL, _, _ = strings.Cut(rawURL, "?")
	return path.Base(rawURL)
}
