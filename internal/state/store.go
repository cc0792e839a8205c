// pattern: Imperative Shell

// Package state persists the set of open projects between runs.
package state

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"shellflow/internal/logging"
	"shellflow/internal/workspace"
)

// fileVersion is written to every state file.
const fileVersion = 1

type file struct {
	Version  int                 `yaml:"version"`
	Projects []workspace.Project `yaml:"projects"`
}

// Store reads and writes the project registry as YAML. Writes replace the
// file atomically, under an exclusive lock on a sibling .lock file so
// two processes never interleave.
type Store struct {
	path   string
	lock   *flock.Flock
	logger *logging.ScopedLogger
}

// NewStore returns a Store for path. Nothing is read until Load.
func NewStore(path string, logger *logging.ScopedLogger) *Store {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted projects. A missing file yields none.
func (s *Store) Load() ([]workspace.Project, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock state file: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []workspace.Project{}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	if f.Version > fileVersion {
		return nil, fmt.Errorf("state file %s has version %d, newer than supported %d", s.path, f.Version, fileVersion)
	}

	projects := f.Projects
	if projects == nil {
		projects = []workspace.Project{}
	}
	for i := range projects {
		if projects[i].Workspaces == nil {
			projects[i].Workspaces = []workspace.Workspace{}
		}
	}
	s.logger.Debug("state loaded", "path", s.path, "projects", len(projects))
	return projects, nil
}

// Save replaces the persisted projects.
func (s *Store) Save(projects []workspace.Project) error {
	if projects == nil {
		projects = []workspace.Project{}
	}
	data, err := yaml.Marshal(file{Version: fileVersion, Projects: projects})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock state file: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	s.logger.Debug("state saved", "path", s.path, "projects", len(projects))
	return nil
}
