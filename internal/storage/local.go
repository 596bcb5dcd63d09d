package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes objects below a directory on disk. Links point at the
// HTTP server's document route.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("local export directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the root directory of the store.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("empty object key")
	}
	return filepath.Join(s.dir, clean), nil
}

// Put implements domain.BlobStore.
func (s *LocalStore) Put(_ context.Context, key string, body []byte, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("create dir for %s: %w", key, err)
	}
	if err := os.WriteFile(p, body, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// URL implements domain.BlobStore. The `media/` prefix is served under
// `/document/`.
func (s *LocalStore) URL(_ context.Context, key string) (string, error) {
	rel := strings.TrimPrefix(key, "media/")
	segments := strings.Split(rel, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/document/" + strings.Join(segments, "/"), nil
}
