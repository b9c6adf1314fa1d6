package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Sentinel errors surfaced by the store. Handlers map these to HTTP statuses.
var (
	ErrGuideNotFound   = errors.New("discussion guide not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Store persists guides and sessions as one JSON document per entity under
// {dataDir}/guides and {dataDir}/sessions. All writes replace the whole file
// through a temp file + rename so readers never observe a partial document.
type Store struct {
	dataDir string
	log     *zap.Logger

	mu sync.RWMutex
}

// New creates the data directories if needed and returns a ready store.
func New(dataDir string, log *zap.Logger) (*Store, error) {
	for _, sub := range []string{"guides", "sessions"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return &Store{dataDir: dataDir, log: log}, nil
}

func (s *Store) guidePath(id string) string {
	return filepath.Join(s.dataDir, "guides", id+".json")
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.dataDir, "sessions", id+".json")
}

// writeFile writes data atomically: temp file in the same directory, fsync
// semantics left to the filesystem, then rename over the target.
func (s *Store) writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func writeJSON(s *Store, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return s.writeFile(path, data)
}

// listIDs returns the entity ids present in one of the data subdirectories.
func (s *Store) listIDs(sub string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, sub))
	if err != nil {
		return nil, fmt.Errorf("read %s dir: %w", sub, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
