// pattern: Imperative Shell

package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"shellflow/internal/logging"
	"shellflow/internal/names"
)

// maxNameAttempts bounds how many generated names are tried before a
// numeric suffix is used to disambiguate.
const maxNameAttempts = 32

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Layout   Layout
	Generate names.Generator
	Logger   *logging.ScopedLogger
}

// Manager creates and destroys workspaces and keeps the project model in
// step with the directories and worktrees on disk. Its methods block on
// filesystem and git I/O and mutate the given *Project without locking.
type Manager struct {
	vcs      VCS
	layout   Layout
	generate names.Generator
	logger   *logging.ScopedLogger
	now      func() time.Time
}

// NewManager returns a Manager backed by the given VCS.
func NewManager(vcs VCS, opts Options) *Manager {
	m := &Manager{
		vcs:      vcs,
		layout:   opts.Layout,
		generate: opts.Generate,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if m.generate == nil {
		m.generate = names.Generate
	}
	if m.logger == nil {
		m.logger = logging.NopLogger()
	}
	return m
}

// CreateProject verifies path is a git repository and returns a new project
// with no workspaces. Nothing is written to disk.
func (m *Manager) CreateProject(ctx context.Context, path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &IOError{Op: "resolve path", Path: path, Err: err}
	}

	if !m.vcs.IsRepository(ctx, abs) {
		return nil, fmt.Errorf("%w: %s", ErrNotARepository, abs)
	}

	p := &Project{
		ID:         uuid.NewString(),
		Name:       m.vcs.RepositoryName(ctx, abs),
		Path:       abs,
		Workspaces: []Workspace{},
	}

	m.logger.Info("project created", "project_id", p.ID, "name", p.Name, "path", p.Path)
	return p, nil
}

// CreateWorkspace creates a worktree for p under the layout root and appends
// its record to p.Workspaces. An empty name asks for a generated one.
//
// If the worktree cannot be created, directories made by this call are
// removed again so a failed create leaves nothing behind.
func (m *Manager) CreateWorkspace(ctx context.Context, p *Project, name string) (Workspace, error) {
	if name == "" {
		name = m.uniqueName(ctx, p)
	} else {
		if err := ValidateName(name); err != nil {
			return Workspace{}, err
		}
		if m.taken(p, name) {
			return Workspace{}, fmt.Errorf("%w: %s", ErrWorkspaceExists, name)
		}
	}

	projectDir := m.layout.ProjectDir(p.Name)
	wsPath := m.layout.Path(p.Name, name)

	created, err := mkdirAllTracked(projectDir)
	if err != nil {
		return Workspace{}, &IOError{Op: "create directory", Path: projectDir, Err: err}
	}

	newBranch, err := m.vcs.CreateWorktree(ctx, p.Path, wsPath, name)
	if err != nil {
		m.rollback(wsPath, created)
		return Workspace{}, &VCSError{Op: "create worktree", Err: err}
	}

	ws := Workspace{
		ID:         uuid.NewString(),
		Name:       name,
		Path:       wsPath,
		Branch:     name,
		CreatedAt:  m.now().UTC(),
		OwnsBranch: newBranch,
	}
	p.Workspaces = append(p.Workspaces, ws)

	m.logger.Info("workspace created",
		"project_id", p.ID,
		"workspace_id", ws.ID,
		"name", ws.Name,
		"path", ws.Path,
		"new_branch", ws.OwnsBranch,
	)
	return ws, nil
}

// DeleteWorkspace removes the worktree and directory of the workspace with
// the given id, then drops its record. The record is only dropped once both
// removals succeed, so a failed delete can be retried.
//
// The branch is deleted only if the workspace created it and it has no
// unmerged commits. Branches that existed before the workspace are kept.
func (m *Manager) DeleteWorkspace(ctx context.Context, p *Project, id string) error {
	idx := p.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}
	ws := p.Workspaces[idx]

	err := m.vcs.DeleteWorktree(ctx, p.Path, ws.Branch, ws.OwnsBranch)
	switch {
	case errors.Is(err, ErrBranchNotMerged):
		m.logger.Warn("branch kept: not fully merged",
			"project_id", p.ID,
			"workspace_id", ws.ID,
			"branch", ws.Branch,
		)
	case err != nil:
		return &VCSError{Op: "delete worktree", Err: err}
	}

	if _, err := os.Stat(ws.Path); err == nil {
		if err := os.RemoveAll(ws.Path); err != nil {
			return &IOError{Op: "remove directory", Path: ws.Path, Err: err}
		}
	}

	p.Workspaces = append(p.Workspaces[:idx], p.Workspaces[idx+1:]...)

	m.logger.Info("workspace deleted", "project_id", p.ID, "workspace_id", ws.ID, "name", ws.Name)
	return nil
}

// ChangedFiles returns the VCS changed-file set for a workspace.
func (m *Manager) ChangedFiles(ctx context.Context, p *Project, id string) ([]FileChange, error) {
	ws, ok := p.Workspace(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}
	files, err := m.vcs.ChangedFiles(ctx, ws.Path)
	if err != nil {
		return nil, &VCSError{Op: "status", Err: err}
	}
	return files, nil
}

// uniqueName draws generated names until one is free, then falls back to
// suffixing a generated name with a counter. A generated name never reuses
// an existing branch.
func (m *Manager) uniqueName(ctx context.Context, p *Project) string {
	free := func(name string) bool {
		return !m.taken(p, name) && !m.vcs.BranchExists(ctx, p.Path, name)
	}
	for i := 0; i < maxNameAttempts; i++ {
		if name := m.generate(); free(name) {
			return name
		}
	}
	base := m.generate()
	for n := 2; ; n++ {
		name := fmt.Sprintf("%s-%d", base, n)
		if free(name) {
			return name
		}
	}
}

// taken reports whether name is used by a record or already occupies the
// target directory.
func (m *Manager) taken(p *Project, name string) bool {
	if p.HasWorkspaceNamed(name) {
		return true
	}
	_, err := os.Lstat(m.layout.Path(p.Name, name))
	return err == nil
}

// rollback removes whatever git left at wsPath and the directories created
// for this call, deepest first. os.Remove leaves directories that other
// workspaces have populated in the meantime.
func (m *Manager) rollback(wsPath string, created []string) {
	if err := os.RemoveAll(wsPath); err != nil {
		m.logger.Warn("rollback: failed to remove workspace path", "path", wsPath, "error", err)
	}
	for i := len(created) - 1; i >= 0; i-- {
		if err := os.Remove(created[i]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.logger.Debug("rollback: directory kept", "path", created[i], "error", err)
		}
	}
}

// mkdirAllTracked is os.MkdirAll that also returns the directories it had
// to create, outermost first.
func mkdirAllTracked(dir string) ([]string, error) {
	var missing []string
	for d := filepath.Clean(dir); ; d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil {
			break
		}
		missing = append(missing, d)
		if parent := filepath.Dir(d); parent == d {
			break
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	created := make([]string, 0, len(missing))
	for i := len(missing) - 1; i >= 0; i-- {
		created = append(created, missing[i])
	}
	return created, nil
}
