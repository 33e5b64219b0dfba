package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/logger"
	"nse-paper-trader/internal/types"
)

// DirSource reads pending signal batches dropped as JSON files into a
// directory by the scanning subsystem. Files are consumed oldest-first
// and removed once read, so a batch is delivered at most once.
type DirSource struct {
	dir string
}

var _ interfaces.SignalSource = (*DirSource)(nil)

func NewDirSource(dir string) (*DirSource, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create signal dir: %w", err)
	}
	return &DirSource{dir: dir}, nil
}

// NextBatch returns the signals from the oldest pending file, or an empty
// slice when none are waiting. A malformed file is renamed aside and
// skipped rather than retried forever.
func (d *DirSource) NextBatch(ctx context.Context) ([]types.Signal, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, nil
	}
	sort.Strings(files)

	for _, name := range files {
		path := filepath.Join(d.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		var sigs []types.Signal
		if err := json.Unmarshal(data, &sigs); err != nil {
			logger.Warn(ctx, "skipping malformed signal file", "file", name, "error", err.Error())
			if renameErr := os.Rename(path, path+".bad"); renameErr != nil {
				return nil, renameErr
			}
			continue
		}
		if err := os.Remove(path); err != nil {
			return nil, err
		}
		logger.Info(ctx, "signal batch loaded", "file", name, "signals", len(sigs))
		return sigs, nil
	}
	return nil, nil
}
