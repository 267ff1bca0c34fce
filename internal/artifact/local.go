package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps artifacts on the local filesystem. It is the dev-mode
// fallback when no object store is configured.
type LocalStore struct {
	root string
}

// NewLocalStore creates a filesystem store rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &LocalStore{root: dir}, nil
}

// Put implements Store.
func (s *LocalStore) Put(_ context.Context, runID string, iteration int, sqlText string) (string, error) {
	path := filepath.Join(s.root, objectKey(runID, iteration))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create artifact run directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sqlText), 0644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// Get implements Store.
func (s *LocalStore) Get(_ context.Context, ref string) (string, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", ref, err)
	}
	return string(data), nil
}

var _ Store = (*LocalStore)(nil)
