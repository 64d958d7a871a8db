package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileKV stores keys in a single JSON file, the closest server-side
// analogue to the browser's local storage.
type FileKV struct {
	path string
}

// NewFileKV creates a file-backed KV at the given path. The file is
// created on first Set.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

func (f *FileKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, fmt.Errorf("failed to decode %s: %w", f.path, err)
	}

	value, ok := entries[key]
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

func (f *FileKV) Set(ctx context.Context, key string, value []byte) error {
	entries := make(map[string]json.RawMessage)
	if raw, err := os.ReadFile(f.path); err == nil {
		// best effort: an unreadable file is overwritten whole
		_ = json.Unmarshal(raw, &entries)
	}
	entries[key] = value

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode entries: %w", err)
	}

	// write-then-rename so readers never observe a torn file
	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}
