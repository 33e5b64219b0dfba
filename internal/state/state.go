package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/types"
)

// FileStore persists portfolio state as one JSON file per portfolio under
// a data directory. Writes go through a temp file and rename so a crash
// mid-write never leaves a truncated snapshot behind.
type FileStore struct {
	dir string
}

var _ interfaces.StateStore = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) path(name string) string {
	return filepath.Join(fs.dir, name+"_portfolio.json")
}

func (fs *FileStore) Save(_ context.Context, st *types.PortfolioState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := fs.path(st.Name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path(st.Name))
}

// Load reads the state for name. Returns (nil, false, nil) if no snapshot
// exists yet.
func (fs *FileStore) Load(_ context.Context, name string) (*types.PortfolioState, bool, error) {
	data, err := os.ReadFile(fs.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var st types.PortfolioState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false, fmt.Errorf("corrupt state file for %s: %w", name, err)
	}
	return &st, true, nil
}
