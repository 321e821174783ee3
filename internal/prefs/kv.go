// Package prefs persists dashboard view preferences: the selected sensor, the pinned
// sensors and per-sensor view mode and axis filter.
package prefs

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"
)

// KV is a string key-value store. Values are written through immediately.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// MemoryKV keeps preferences for the lifetime of the process only.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// FileKV stores preferences as a flat TOML table. Every Set rewrites the file
// atomically so a crash never leaves a truncated file behind.
type FileKV struct {
	path   string
	mu     sync.RWMutex
	values map[string]string
}

// OpenFile loads the preference file at path. A missing file is an empty store.
func OpenFile(path string) (*FileKV, error) {
	kv := &FileKV{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return kv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	if _, err := toml.Decode(string(data), &kv.values); err != nil {
		return nil, fmt.Errorf("failed to parse preferences %s: %w", path, err)
	}
	return kv, nil
}

// Path returns the backing file.
func (f *FileKV) Path() string {
	return f.path
}

func (f *FileKV) Get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *FileKV) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := maps.Clone(f.values)
	next[key] = value

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(next); err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	if err := atomic.WriteFile(f.path, &buf); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	f.values = next
	return nil
}
