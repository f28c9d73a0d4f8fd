// Package snapshot persists the key→record "seen" state between runs as a
// human-inspectable JSON file per stream.
//
// On-disk format is a versioned envelope:
//
//	{"version": 1, "entries": {"<key>": {...}, ...}}
//
// A missing file is an empty mapping (first run). Files written by the
// original flat-map format (no envelope) are read as version 0 and upgraded
// on the next save. A version above the current one is an error rather than
// silent data loss.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const CurrentVersion = 1

// File is one snapshot file. T is the per-key record type.
type File[T any] struct {
	path string
}

func NewFile[T any](path string) *File[T] {
	return &File[T]{path: path}
}

func (f *File[T]) Path() string { return f.path }

type envelope[T any] struct {
	Version int          `json:"version"`
	Entries map[string]T `json:"entries"`
}

// Load reads the snapshot. A missing file yields an empty mapping.
func (f *File[T]) Load() (map[string]T, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]T{}, nil
		}
		return nil, err
	}
	if len(b) == 0 {
		return map[string]T{}, nil
	}

	// Probe for the envelope before committing to a shape.
	var probe struct {
		Version *int            `json:"version"`
		Entries json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", f.path, err)
	}

	if probe.Version == nil {
		// Legacy flat mapping (version 0).
		var flat map[string]T
		if err := json.Unmarshal(b, &flat); err != nil {
			return nil, fmt.Errorf("snapshot %s: legacy format: %w", f.path, err)
		}
		if flat == nil {
			flat = map[string]T{}
		}
		return flat, nil
	}

	if *probe.Version > CurrentVersion {
		return nil, fmt.Errorf("snapshot %s: version %d is newer than supported %d",
			f.path, *probe.Version, CurrentVersion)
	}

	var env envelope[T]
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", f.path, err)
	}
	if env.Entries == nil {
		env.Entries = map[string]T{}
	}
	return env.Entries, nil
}

// Save atomically replaces the snapshot file with the given mapping.
func (f *File[T]) Save(entries map[string]T) error {
	if entries == nil {
		entries = map[string]T{}
	}
	b, err := json.MarshalIndent(envelope[T]{Version: CurrentVersion, Entries: entries}, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
