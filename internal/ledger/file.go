package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileState is the on-disk shape of the ledger.
type fileState struct {
	Seen      []string  `json:"seen"`
	UpdatedAt time.Time `json:"updated_at"`
}

// File is a JSON-file-backed ledger. Writes go through a rename so a crash
// mid-write never corrupts the previous state.
type File struct {
	path string

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewFile loads or initializes the ledger at path.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	f := &File{path: path, seen: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", path, err)
	}
	for _, id := range state.Seen {
		f.seen[id] = struct{}{}
	}
	return f, nil
}

// Seen implements Ledger.
func (f *File) Seen(_ context.Context, identity string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[identity]
	return ok, nil
}

// MarkSeen implements Ledger, persisting immediately.
func (f *File) MarkSeen(_ context.Context, identity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[identity]; ok {
		return nil
	}
	f.seen[identity] = struct{}{}
	return f.flushLocked()
}

// Close implements Ledger.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushLocked()
}

func (f *File) flushLocked() error {
	state := fileState{
		Seen:      make([]string, 0, len(f.seen)),
		UpdatedAt: time.Now().UTC(),
	}
	for id := range f.seen {
		state.Seen = append(state.Seen, id)
	}
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
