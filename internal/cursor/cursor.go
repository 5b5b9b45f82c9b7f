// Package cursor tracks the incremental harvest window between runs.
package cursor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultLookback bounds the first run, when no cursor file exists yet.
const DefaultLookback = 72 * time.Hour

type state struct {
	LastRunAt time.Time `json:"last_run_at"`
}

// Store reads and advances the cursor file.
type Store struct {
	path     string
	lookback time.Duration
}

// NewStore builds a store. Zero lookback falls back to DefaultLookback.
func NewStore(path string, lookback time.Duration) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("cursor path is required")
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Store{path: path, lookback: lookback}, nil
}

// Window returns the start of the incremental window for this run: the last
// committed run time, or now minus the lookback on first run.
func (s *Store) Window(now time.Time) (time.Time, error) {
	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		return now.Add(-s.lookback), nil
	case err != nil:
		return time.Time{}, fmt.Errorf("read cursor %s: %w", s.path, err)
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return time.Time{}, fmt.Errorf("decode cursor %s: %w", s.path, err)
	}
	if st.LastRunAt.IsZero() {
		return now.Add(-s.lookback), nil
	}
	return st.LastRunAt.UTC(), nil
}

// Commit advances the cursor. Callers commit only after a run with no fatal
// source error, so a failed run is re-harvested next time.
func (s *Store) Commit(runAt time.Time) error {
	payload, err := json.MarshalIndent(state{LastRunAt: runAt.UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create cursor dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace cursor: %w", err)
	}
	return nil
}
