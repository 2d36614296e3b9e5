// Package metadata persists the removal records of the trash can.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/babarot/smartrm/internal/utils/log"
	"github.com/google/uuid"
)

const (
	// FileName is the store file kept inside the trash can root
	FileName = ".trash_information.json"

	// TempPrefix marks temporary files written next to the store
	TempPrefix = ".smartrm-"
)

// ErrNotFound is returned when no record exists for a name
var ErrNotFound = errors.New("not found in trash can")

// Store maps entry names to their records in a single JSON file. Every write
// holds mu across load, mutation and rewrite so concurrent writers never lose
// each other's updates.
type Store struct {
	path        string
	pendingPath string
	mu          sync.Mutex
	logger      *slog.Logger
}

// NewStore returns the store of the trash can at root
func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{
		path:        filepath.Join(root, FileName),
		pendingPath: filepath.Join(root, PendingFileName),
		logger:      logger,
	}
}

// Path returns the location of the store file
func (s *Store) Path() string {
	return s.path
}

// Load returns every record. A missing or empty file is an empty store.
func (s *Store) Load() (map[string]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the record of name
func (s *Store) Get(name string) (Entry, error) {
	entries, err := s.Load()
	if err != nil {
		return Entry{}, err
	}
	entry, ok := entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return entry, nil
}

// Save inserts or replaces the record of entry.Name
func (s *Store) Save(entry Entry) error {
	return s.Update(func(entries map[string]Entry) error {
		entries[entry.Name] = entry
		return nil
	})
}

// RemoveKey deletes the record of name. It fails with ErrNotFound when there
// is none.
func (s *Store) RemoveKey(name string) error {
	return s.Update(func(entries map[string]Entry) error {
		if _, ok := entries[name]; !ok {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		delete(entries, name)
		return nil
	})
}

// Update runs fn on the current records and rewrites the store with the
// result, all under the store lock. Nothing is written if fn fails.
func (s *Store) Update(fn func(map[string]Entry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(entries); err != nil {
		return err
	}
	if err := writeJSON(s.path, entries); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	s.logger.Debug("metadata saved", "entries", len(entries))
	return nil
}

func (s *Store) load() (map[string]Entry, error) {
	entries := make(map[string]Entry)
	if err := readJSON(s.path, &entries); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return entries, nil
}

// readJSON decodes path into v, leaving v untouched when the file is absent
// or empty
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// writeJSON replaces path atomically with the encoding of v
func writeJSON(path string, v any) error {
	tmp := filepath.Join(filepath.Dir(path), TempPrefix+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(tmp)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		cleanup()
		return fmt.Errorf("encode: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
