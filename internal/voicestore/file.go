package voicestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the user→voice mapping as a single JSON file on local
// disk. The whole file is read on each lookup and rewritten on each save.
// A process-local mutex serializes access; there is no cross-process locking,
// so concurrent writers outside this process race with last-write-wins.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed directory at path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = "user_voices.json"
	}
	return &FileStore{path: path}
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read voice store: %w", err)
	}
	voices := map[string]string{}
	if err := json.Unmarshal(data, &voices); err != nil {
		return nil, fmt.Errorf("decode voice store: %w", err)
	}
	return voices, nil
}

// Get returns the stored voice ID for userID.
func (s *FileStore) Get(_ context.Context, userID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	voices, err := s.load()
	if err != nil {
		return "", false, err
	}
	id, ok := voices[userID]
	return id, ok && id != "", nil
}

// Set stores voiceID under userID, rewriting the whole file.
func (s *FileStore) Set(_ context.Context, userID, voiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	voices, err := s.load()
	if err != nil {
		// A corrupt or unreadable file should not brick enrollment; start over.
		voices = map[string]string{}
	}
	voices[userID] = voiceID

	data, err := json.MarshalIndent(voices, "", "  ")
	if err != nil {
		return fmt.Errorf("encode voice store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create voice store dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write voice store: %w", err)
	}
	return nil
}
