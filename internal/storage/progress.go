package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Progress is a resume marker: the last position a run fully handled in a
// named source (an operation script, an event journal).
type Progress struct {
	Source    string `json:"source,omitempty"`
	Position  uint64 `json:"position"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ProgressStore loads and saves a single resume marker.
type ProgressStore interface {
	LoadProgress(ctx context.Context) (Progress, bool, error)
	SaveProgress(ctx context.Context, p Progress) error
}

// FileProgress keeps a marker in a local JSON file. An empty path disables it.
type FileProgress struct {
	Path string
}

func (f *FileProgress) LoadProgress(ctx context.Context) (Progress, bool, error) {
	if f == nil || f.Path == "" {
		return Progress{}, false, nil
	}

	stat, err := os.Stat(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Progress{}, false, nil
		}
		return Progress{}, false, fmt.Errorf("stat progress: %w", err)
	}
	if stat.IsDir() {
		return Progress{}, false, fmt.Errorf("progress path %s is a directory", f.Path)
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Progress{}, false, fmt.Errorf("read progress: %w", err)
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return Progress{}, false, fmt.Errorf("parse progress: %w", err)
	}
	return p, true, nil
}

// SaveProgress replaces the file atomically.
func (f *FileProgress) SaveProgress(ctx context.Context, p Progress) error {
	if f == nil || f.Path == "" {
		return nil
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create progress dir: %w", err)
		}
	}

	if p.UpdatedAt == "" {
		p.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write progress tmp: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("rename progress: %w", err)
	}
	return nil
}
