package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var cleanKeyRe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// FileStore keeps one pretty-printed JSON file per key under a data
// directory. Suitable for single-process use; all methods are mutex-guarded.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, cleanKeyRe.ReplaceAllString(key, "")+".json")
}

// Get retrieves a value by key. Returns (nil, nil) when absent.
func (f *FileStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return json.RawMessage(data), nil
}

// Set stores a value by key, pretty-printing for readability.
func (f *FileStore) Set(_ context.Context, key string, value json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}

	var parsed any
	if err := json.Unmarshal(value, &parsed); err == nil {
		if pretty, err := json.MarshalIndent(parsed, "", "  "); err == nil {
			value = pretty
		}
	}
	return os.WriteFile(f.path(key), value, 0o644)
}

// Delete removes a value by key. Absent keys are not an error.
func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
