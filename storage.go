package eventdesk

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage keys used by the offline layer.
const (
	storageKeyEvents = "events"
	storageKeyQueue  = "offlineQueue"
)

// Storage is the key-value persistence backend for the offline layer,
// the Go analog of a browser's local storage. Values are JSON blobs.
type Storage interface {
	// Get returns the value for the key, or nil if the key is absent.
	Get(key string) ([]byte, error)
	// Set stores the value under the key, replacing any previous value.
	Set(key string, value []byte) error
}

// ============================================================================
// MemoryStorage
// ============================================================================

// MemoryStorage is a goroutine-safe in-memory storage backend, useful
// for tests and ephemeral clients.
type MemoryStorage struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: make(map[string][]byte)}
}

func (s *MemoryStorage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[key], nil
}

func (s *MemoryStorage) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

// ============================================================================
// FileStorage
// ============================================================================

// FileStorage persists each key as a JSON file under a directory, so the
// mirror and queue survive process restarts.
type FileStorage struct {
	mu  sync.Mutex
	dir string
}

// NewFileStorage creates a file-backed storage rooted at dir, creating
// the directory if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cannot create storage directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStorage) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage error reading %s: %w", key, err)
	}
	return data, nil
}

// Set writes atomically: temp file then rename.
func (s *FileStorage) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.path(key)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, value, 0o600); err != nil {
		return fmt.Errorf("storage error writing %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming %s: %w", key, err)
	}
	return nil
}
