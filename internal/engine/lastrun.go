package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type lastRunFile struct {
	LastRun time.Time `json:"last_run"`
}

// LoadLastRun reads the previous run's start time, or nil when no run has
// happened yet.
func LoadLastRun(path string) (*time.Time, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last-run marker: %w", err)
	}
	var f lastRunFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse last-run marker: %w", err)
	}
	if f.LastRun.IsZero() {
		return nil, nil
	}
	return &f.LastRun, nil
}

// SaveLastRun records t as the start of the most recent completed run.
func SaveLastRun(path string, t time.Time) error {
	data, err := json.Marshal(lastRunFile{LastRun: t.UTC()})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create last-run directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write last-run marker: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace last-run marker: %w", err)
	}
	return nil
}
