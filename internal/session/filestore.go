package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"hooksmith/internal/hookerr"
	"hooksmith/internal/logging"
)

// FileStore persists session snapshots as JSON files, one per session, with
// terminated sessions moved into an archive subdirectory.
type FileStore struct {
	baseDir string
	logger  logging.Logger
}

// NewFileStore builds a FileStore rooted at baseDir, expanding a leading
// "~/".
func NewFileStore(baseDir string, logger logging.Logger) *FileStore {
	if strings.HasPrefix(baseDir, "~/") {
		home, _ := os.UserHomeDir()
		baseDir = filepath.Join(home, baseDir[2:])
	}
	_ = os.MkdirAll(baseDir, 0o755) // directory may already exist
	return &FileStore{baseDir: baseDir, logger: logging.OrNop(logger)}
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

// Save writes the snapshot via a temp file and rename so a crash mid-write
// cannot corrupt the previous checkpoint.
func (s *FileStore) Save(state SessionState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return &hookerr.PersistenceError{Op: "save", Path: s.path(state.ID), Err: err}
	}
	tmp := s.path(state.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &hookerr.PersistenceError{Op: "save", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, s.path(state.ID)); err != nil {
		return &hookerr.PersistenceError{Op: "save", Path: s.path(state.ID), Err: err}
	}
	return nil
}

// Load reads the snapshot for id. Missing and corrupted snapshots both load
// as the zero state: last-writer-wins across sessions and a bad read is
// treated as empty, not fatal.
func (s *FileStore) Load(id string) SessionState {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return SessionState{}
	}
	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("discarding corrupted session snapshot %s: %v", s.path(id), err)
		return SessionState{}
	}
	return state
}

// Archive moves the snapshot into the archive subdirectory.
func (s *FileStore) Archive(id string) error {
	archiveDir := filepath.Join(s.baseDir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return &hookerr.PersistenceError{Op: "archive", Path: archiveDir, Err: err}
	}
	target := filepath.Join(archiveDir, id+".json")
	if err := os.Rename(s.path(id), target); err != nil {
		return &hookerr.PersistenceError{Op: "archive", Path: target, Err: err}
	}
	return nil
}

// MemoryStore keeps snapshots in memory; it is the fallback after a
// persistence failure and the default in tests.
type MemoryStore struct {
	states map[string]SessionState
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: map[string]SessionState{}}
}

// Save stores the snapshot.
func (s *MemoryStore) Save(state SessionState) error {
	s.states[state.ID] = state
	return nil
}

// Load returns the stored snapshot or the zero state.
func (s *MemoryStore) Load(id string) SessionState {
	return s.states[id]
}

// Archive drops the snapshot.
func (s *MemoryStore) Archive(id string) error {
	delete(s.states, id)
	return nil
}
