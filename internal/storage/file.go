package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileKV keeps the whole keyspace in one JSON object on disk. Every write
// rewrites the file; the dataset is a handful of keys so this stays cheap.
type FileKV struct {
	mu    sync.Mutex
	path  string
	items map[string]string
}

func NewFileKV(path string) (*FileKV, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("missing STORAGE_FILE_PATH")
	}
	kv := &FileKV{path: strings.TrimSpace(path), items: map[string]string{}}

	raw, err := os.ReadFile(kv.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return kv, nil
		}
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &kv.items); err != nil {
			return nil, fmt.Errorf("corrupt storage file %s: %w", kv.path, err)
		}
	}
	return kv, nil
}

func (f *FileKV) GetItem(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items[key]
	return v, ok, nil
}

func (f *FileKV) SetItem(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = value
	return f.flush()
}

func (f *FileKV) RemoveItem(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, key)
	return f.flush()
}

func (f *FileKV) flush() error {
	raw, err := json.Marshal(f.items)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
