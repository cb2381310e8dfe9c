// Package statefile persists the application record as a single JSON file
// with atomic replace semantics: write to a temp file, fsync, rename.
package statefile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vittapay/portal-gateway/internal/domain"
)

type Storage struct {
	path string
}

func New(path string) *Storage {
	return &Storage{path: path}
}

// Load reads the record. Missing files and unparseable content both report
// found=false without an error: corrupted local storage means "no session".
func (s *Storage) Load(_ context.Context) (domain.AppState, bool, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.EmptyState(), false, nil
		}
		return domain.EmptyState(), false, fmt.Errorf("read state file: %w", err)
	}
	var state domain.AppState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.EmptyState(), false, nil
	}
	return state, true, nil
}

// Save replaces the record in one rename so a crash mid-write can never
// leave a torn file behind.
func (s *Storage) Save(_ context.Context, state domain.AppState) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".appstate-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
