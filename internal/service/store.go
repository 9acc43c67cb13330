package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Change is the outcome of a store write.
type Change struct {
	Previous string
	Revision uint64
	Changed  bool
}

// Store persists the selection values. Writing an empty value clears the key.
type Store interface {
	Load(ctx context.Context) (map[Key]string, uint64, error)
	Put(ctx context.Context, key Key, value string) (Change, error)
	Close() error
}

// Watcher is implemented by stores that can observe writes made by other
// processes.
type Watcher interface {
	Watch(ctx context.Context, fn func(Event)) error
}

// FileStore keeps the selection in memory and mirrors it to a JSON file.
type FileStore struct {
	dataDir  string
	values   map[Key]string
	revision uint64
	mu       sync.RWMutex
}

type fileState struct {
	Values   map[Key]string `json:"values"`
	Revision uint64         `json:"revision"`
}

// NewFileStore creates a file-backed store. An empty dataDir keeps the
// selection in memory only.
func NewFileStore(dataDir string) *FileStore {
	s := &FileStore{
		dataDir: dataDir,
		values:  make(map[Key]string),
	}
	s.loadFromDisk()
	return s
}

// Load returns a copy of the stored values.
func (s *FileStore) Load(ctx context.Context) (map[Key]string, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[Key]string, len(s.values))
	for k, v := range s.values {
		result[k] = v
	}
	return result, s.revision, nil
}

// Put writes one key. Writing the current value is a no-op. The change is
// kept in memory only once it is on disk.
func (s *FileStore) Put(ctx context.Context, key Key, value string) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.values[key]
	if prev == value {
		return Change{Previous: prev, Revision: s.revision}, nil
	}

	next := make(map[Key]string, len(s.values)+1)
	for k, v := range s.values {
		next[k] = v
	}
	if value == "" {
		delete(next, key)
	} else {
		next[key] = value
	}
	if err := s.saveToDisk(next, s.revision+1); err != nil {
		return Change{}, fmt.Errorf("save selection: %w", err)
	}

	s.values = next
	s.revision++
	return Change{Previous: prev, Revision: s.revision, Changed: true}, nil
}

// Close is a no-op; every write is already on disk.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) stateFile() string {
	return filepath.Join(s.dataDir, "selection.json")
}

// loadFromDisk restores the selection; a missing or corrupt file starts empty.
func (s *FileStore) loadFromDisk() {
	if s.dataDir == "" {
		return
	}
	data, err := os.ReadFile(s.stateFile())
	if err != nil {
		return
	}

	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return
	}
	if st.Values != nil {
		s.values = st.Values
	}
	s.revision = st.Revision
}

func (s *FileStore) saveToDisk(values map[Key]string, revision uint64) error {
	if s.dataDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileState{Values: values, Revision: revision}, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.stateFile() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.stateFile())
}
