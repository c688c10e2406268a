// Package state records which overlay combination researchctl last started,
// so teardown can try it first. The record is a hint: teardown still probes
// every known combination and sweeps by name, so a stale or missing file
// never prevents a clean stop.
package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Record is the persisted active-mode state.
type Record struct {
	RunID     string    `yaml:"runId"`
	Mode      string    `yaml:"mode"`
	Overlays  []string  `yaml:"overlays"`
	StartedAt time.Time `yaml:"startedAt"`
}

// NewRecord stamps a fresh run ID.
func NewRecord(mode string, overlays []string, now time.Time) Record {
	return Record{
		RunID:     uuid.New().String(),
		Mode:      mode,
		Overlays:  overlays,
		StartedAt: now.UTC(),
	}
}

// Save writes rec to path, creating the parent directory.
func Save(path string, rec Record) error {
	data, err := yaml.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads the record at path. A missing file returns (nil, nil).
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode state %s: %w", path, err)
	}
	return &rec, nil
}

// Clear removes the record. A missing file is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove state: %w", err)
	}
	return nil
}
