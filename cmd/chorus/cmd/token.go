package cmd

import (
	"errors"
	iofs "io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var errNotSignedIn = errors.New(`not signed in, run "chorus login" first`)

// tokenStore caches the signed-in user's token in the chorus home directory.
type tokenStore struct {
	fs   afero.Fs
	path string
}

func newTokenStore(fs afero.Fs, home string) *tokenStore {
	return &tokenStore{fs: fs, path: filepath.Join(home, "token")}
}

func (s *tokenStore) Load() (string, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, iofs.ErrNotExist) {
		return "", errNotSignedIn
	}
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errNotSignedIn
	}
	return token, nil
}

func (s *tokenStore) Save(token string) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.path, []byte(token+"\n"), 0o600)
}

// Clear removes the cached token. It is not an error if none is cached.
func (s *tokenStore) Clear() error {
	err := s.fs.Remove(s.path)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil
	}
	return err
}

func tokens() *tokenStore {
	return newTokenStore(fs, cfg.GetHomeDir())
}
