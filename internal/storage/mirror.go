package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"kpwatch/internal/model"
)

const mirrorFile = "state.json"

type mirrorDoc struct {
	Version   int64               `json:"version"`
	Seen      []string            `json:"seen"`
	Snapshots map[string][]string `json:"snapshots"`
}

// FileMirror keeps a local JSON copy of the latest state written by a run.
type FileMirror struct {
	dir string
}

// NewFileMirror creates the mirror directory if needed.
func NewFileMirror(dir string) (*FileMirror, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create mirror dir: %w", err)
	}
	return &FileMirror{dir: dir}, nil
}

// Path returns the location of the mirror file.
func (m *FileMirror) Path() string {
	return filepath.Join(m.dir, mirrorFile)
}

// Write replaces the mirror file atomically.
func (m *FileMirror) Write(st model.State) error {
	data, err := json.MarshalIndent(mirrorDoc{
		Version:   st.Version,
		Seen:      st.Seen,
		Snapshots: st.Snapshots,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(m.dir, mirrorFile+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.Path()); err != nil {
		return fmt.Errorf("rename mirror: %w", err)
	}
	return nil
}
