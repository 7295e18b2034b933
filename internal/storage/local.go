package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes under a directory that the HTTP server also serves.
type LocalStore struct {
	dir        string
	publicPath string
}

func NewLocalStore(dir, publicPath string) *LocalStore {
	return &LocalStore{dir: dir, publicPath: "/" + strings.Trim(publicPath, "/")}
}

// Dir is the root the server should expose at PublicPath.
func (s *LocalStore) Dir() string { return s.dir }

// PublicPath is the URL prefix for stored files.
func (s *LocalStore) PublicPath() string { return s.publicPath }

func (s *LocalStore) Put(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(full)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return s.publicPath + "/" + key, nil
}
