package sd

import (
	"os"
	"path/filepath"
)

// Blob store layout under the export root:
//
//	token.json
//	activities.json
//	activities/{id}/detail.json
//	activities/{id}/photos.json
//	activities/{id}/{uniqueId}{ext}
const (
	tokenKey   = "token.json"
	catalogKey = "activities.json"
)

// OSStore is a concrete implementation of Store backed by the OS
// filesystem, rooted at the export directory.
type OSStore struct {
	root string
}

// NewOSStore creates a store rooted at dir, creating it if needed.
func NewOSStore(dir string) (*OSStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &OSStore{root: dir}, nil
}

func (s *OSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Read returns the blob stored under key. An absent key yields an
// error satisfying errors.Is(err, os.ErrNotExist).
func (s *OSStore) Read(key string) ([]byte, error) {
	return os.ReadFile(s.path(key))
}

// Write stores data under key, creating parent directories as needed.
func (s *OSStore) Write(key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Exists reports whether key is present.
func (s *OSStore) Exists(key string) bool {
	_, err := os.Stat(s.path(key))
	return err == nil
}

// List returns the file names directly under dir. An absent directory
// is an empty listing, not an error.
func (s *OSStore) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(s.path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
