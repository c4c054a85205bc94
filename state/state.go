// Package state remembers, per set of watched roots, the last event id a
// watch delivered so a later watch can resume from it.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grovetools/fsdispatch/internal/paths"
	"github.com/grovetools/fsdispatch/util/pathutil"
	"gopkg.in/yaml.v3"
)

// Cursor is the resume point for one set of roots.
type Cursor struct {
	Roots     []string  `yaml:"roots"`
	EventID   uint64    `yaml:"event_id"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// State maps a roots key to its cursor.
type State map[string]Cursor

// Store reads and writes State in a single YAML file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by path. The file is created on first Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStore returns the store in the user's state directory.
func DefaultStore() (*Store, error) {
	dir := paths.StateDir()
	if dir == "" {
		return nil, fmt.Errorf("no state directory: home directory unknown")
	}
	return NewStore(filepath.Join(dir, "cursors.yml")), nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Key identifies a set of roots independent of order and, where the
// filesystem folds case, of spelling. Roots are expanded first, so "~/src"
// and "$HOME/src" share a key with the resolved path.
func Key(roots []string) (string, error) {
	keys := make([]string, 0, len(roots))
	for _, r := range roots {
		expanded, err := pathutil.Expand(r)
		if err != nil {
			return "", err
		}
		k, err := pathutil.NormalizeForLookup(expanded)
		if err != nil {
			return "", err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, string(os.PathListSeparator)), nil
}

// Load returns the stored state, or an empty state if the file doesn't exist.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(State), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if st == nil {
		st = make(State)
	}
	return st, nil
}

func (s *Store) save(st State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Get returns the cursor saved for roots.
func (s *Store) Get(roots []string) (Cursor, bool, error) {
	key, err := Key(roots)
	if err != nil {
		return Cursor{}, false, err
	}
	st, err := s.Load()
	if err != nil {
		return Cursor{}, false, err
	}
	c, ok := st[key]
	return c, ok, nil
}

// Set records id as the resume point for roots. A zero id is ignored, since
// it would mean "now" to a resuming stream.
func (s *Store) Set(roots []string, id uint64) error {
	if id == 0 {
		return nil
	}
	key, err := Key(roots)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return err
	}
	st[key] = Cursor{Roots: roots, EventID: id, UpdatedAt: time.Now().UTC()}
	return s.save(st)
}

// Delete forgets the cursor for roots.
func (s *Store) Delete(roots []string) error {
	key, err := Key(roots)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return err
	}
	delete(st, key)
	return s.save(st)
}
