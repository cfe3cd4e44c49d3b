// Package kv is a string key/value storage with localStorage semantics:
// reads never fail, writes may.
package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrQuotaExceeded is returned by a MemoryStorage configured to reject writes.
var ErrQuotaExceeded = errors.New("kv: quota exceeded")

// Storage is the minimal storage surface the fallback tier needs.
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// MemoryStorage keeps items in memory. Writes can be made to fail, which is
// how tests exercise persistence errors.
type MemoryStorage struct {
	mu         sync.RWMutex
	items      map[string]string
	failWrites bool
}

// NewMemoryStorage creates an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return ErrQuotaExceeded
	}
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return ErrQuotaExceeded
	}
	delete(m.items, key)
	return nil
}

// FailWrites makes every subsequent SetItem and RemoveItem fail.
func (m *MemoryStorage) FailWrites(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = fail
}

// Keys returns the stored keys in sorted order.
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const fileVersion = 1

type fileState struct {
	Version   int               `json:"version"`
	UpdatedAt string            `json:"updated_at"`
	Items     map[string]string `json:"items"`
}

// FileStorage persists items as a single JSON document. Every write rewrites
// the file through a temp file and rename, so a crash leaves either the old
// or the new state.
type FileStorage struct {
	mu    sync.RWMutex
	path  string
	items map[string]string
}

// OpenFile loads storage from path. A missing file is an empty storage; an
// unreadable or corrupt file is an error, since silently discarding it would
// lose data on the next write.
func OpenFile(path string) (*FileStorage, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("kv: empty path")
	}

	fs := &FileStorage{path: trimmed, items: map[string]string{}}
	data, err := os.ReadFile(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("kv: read %s: %w", trimmed, err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("kv: decode %s: %w", trimmed, err)
	}
	if state.Items != nil {
		fs.items = state.Items
	}
	return fs, nil
}

// Path returns the backing file path.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) GetItem(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.items[key]
	return v, ok
}

func (f *FileStorage) SetItem(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.items[key]
	f.items[key] = value
	if err := f.flush(); err != nil {
		if had {
			f.items[key] = prev
		} else {
			delete(f.items, key)
		}
		return err
	}
	return nil
}

func (f *FileStorage) RemoveItem(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.items[key]
	if !had {
		return nil
	}
	delete(f.items, key)
	if err := f.flush(); err != nil {
		f.items[key] = prev
		return err
	}
	return nil
}

// flush must be called with mu held.
func (f *FileStorage) flush() error {
	state := fileState{
		Version:   fileVersion,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Items:     f.items,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("kv: encode: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("kv: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".kv-*.tmp")
	if err != nil {
		return fmt.Errorf("kv: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("kv: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("kv: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("kv: rename: %w", err)
	}
	return nil
}
