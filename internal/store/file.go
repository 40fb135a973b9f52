package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

// DefaultCacheFile is used when no path is configured.
const DefaultCacheFile = "solcast.json"

// FileStore keeps the last snapshot in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultCacheFile
	}
	return &FileStore{path: path}
}

// Path returns the cache file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot from disk.
func (s *FileStore) Load(_ context.Context) (solar.CacheSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return solar.CacheSnapshot{}, solar.ErrCacheMiss
		}
		return solar.CacheSnapshot{}, fmt.Errorf("%w: %v", solar.ErrCacheCorrupt, err)
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		return solar.CacheSnapshot{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return snap, nil
}

// Save writes the snapshot to a temporary file next to the target and
// renames it into place.
func (s *FileStore) Save(_ context.Context, snap solar.CacheSnapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Invalidate deletes the cache file. A missing file is not an error.
func (s *FileStore) Invalidate(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
