// pattern: Imperative Shell

// Package service is the registry of open projects. It drives the workspace
// lifecycle, keeps one change watcher per workspace and persists the
// registry after every change.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"shellflow/internal/events"
	"shellflow/internal/logging"
	"shellflow/internal/watcher"
	"shellflow/internal/workspace"
)

// Watchers starts and stops per-workspace change watchers.
type Watchers interface {
	Start(id, path string) error
	Stop(id string) bool
	StopAll()
}

// Store persists the project registry.
type Store interface {
	Load() ([]workspace.Project, error)
	Save([]workspace.Project) error
}

// scopeCleaner is implemented by logging.Manager.
type scopeCleaner interface {
	Cleanup(scopePrefix string)
}

type Options struct {
	Manager  *workspace.Manager
	Watchers Watchers
	Emitter  events.Emitter
	Store    Store
	Logs     logging.LoggerProvider
}

// Service is safe for concurrent use. Lifecycle operations on one project
// are serialized by that project's lock; operations on different projects
// and reads of the registry proceed independently.
type Service struct {
	manager  *workspace.Manager
	watchers Watchers
	emitter  events.Emitter
	store    Store
	logs     logging.LoggerProvider
	logger   *logging.ScopedLogger

	mu       sync.RWMutex // guards projects, order and each entry's snap
	projects map[string]*entry
	order    []string
}

// entry is one open project. p is the working copy mutated by lifecycle
// operations under mu; snap is the copy readers see.
type entry struct {
	mu     sync.Mutex
	p      *workspace.Project
	closed bool

	snap workspace.Project
}

// New creates a Service. Call Open to restore persisted projects.
func New(opts Options) *Service {
	s := &Service{
		manager:  opts.Manager,
		watchers: opts.Watchers,
		emitter:  opts.Emitter,
		store:    opts.Store,
		logs:     opts.Logs,
		projects: make(map[string]*entry),
	}
	if s.emitter == nil {
		s.emitter = events.EmitterFunc(func(events.Envelope) {})
	}
	if s.logs != nil {
		s.logger = s.logs.For("service")
	} else {
		s.logger = logging.NopLogger()
	}
	return s
}

// Open restores persisted projects and starts watchers for workspaces whose
// directories still exist. Records whose directory is gone are kept so they
// can be deleted explicitly.
func (s *Service) Open(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	projects, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("load projects: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range projects {
		p := projects[i]
		if _, ok := s.projects[p.ID]; ok {
			continue
		}
		s.add(&p)
		for _, ws := range p.Workspaces {
			if _, err := os.Stat(ws.Path); err != nil {
				s.logger.Warn("workspace directory missing, not watching",
					"project_id", p.ID, "workspace_id", ws.ID, "path", ws.Path)
				continue
			}
			s.startWatcher(ws)
		}
	}
	s.logger.Info("projects restored", "count", len(projects))
	return ctx.Err()
}

// OpenProject registers the repository at path. Opening a path that is
// already open returns the existing project with created set to false.
func (s *Service) OpenProject(ctx context.Context, path string) (workspace.Project, bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return workspace.Project{}, false, &workspace.IOError{Op: "resolve path", Path: path, Err: err}
	}

	s.mu.RLock()
	existing, ok := s.byPath(abs)
	s.mu.RUnlock()
	if ok {
		return existing, false, nil
	}

	np, err := s.manager.CreateProject(ctx, abs)
	if err != nil {
		return workspace.Project{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have opened the same path meanwhile.
	if existing, ok := s.byPath(abs); ok {
		return existing, false, nil
	}
	s.add(np)
	s.persist()

	s.logger.Info("project opened", "project_id", np.ID, "name", np.Name, "path", np.Path)
	return np.Clone(), true, nil
}

// Projects returns copies of all open projects in the order they were opened.
func (s *Service) Projects() []workspace.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]workspace.Project, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.projects[id].snap.Clone())
	}
	return out
}

// Project returns a copy of the project with the given id.
func (s *Service) Project(id string) (workspace.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.projects[id]
	if !ok {
		return workspace.Project{}, notFound(id)
	}
	return e.snap.Clone(), nil
}

// CloseProject stops watching the project's workspaces and forgets the
// project. Worktrees and directories stay on disk. A lifecycle operation in
// flight on the project finishes first.
func (s *Service) CloseProject(id string) error {
	e, err := s.acquire(id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	for _, ws := range e.p.Workspaces {
		s.stopWatcher(ws.ID)
	}

	s.mu.Lock()
	e.closed = true
	delete(s.projects, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.persist()
	s.mu.Unlock()

	s.logger.Info("project closed", "project_id", id)
	return nil
}

// CreateWorkspace creates a workspace in the project and starts watching
// it. An empty name asks for a generated one.
func (s *Service) CreateWorkspace(ctx context.Context, projectID, name string) (workspace.Workspace, error) {
	e, err := s.acquire(projectID)
	if err != nil {
		return workspace.Workspace{}, err
	}
	defer e.mu.Unlock()

	ws, err := s.manager.CreateWorkspace(ctx, e.p, name)
	if err != nil {
		s.logger.Warn("create workspace failed", "project_id", projectID, "name", name, "error", err)
		return workspace.Workspace{}, err
	}
	s.publish(e)
	s.startWatcher(ws)

	s.emitter.Emit(events.WorkspaceCreated{ProjectID: projectID, Workspace: ws}.Envelope())
	return ws, nil
}

// DeleteWorkspace removes the workspace's worktree, directory and record,
// then stops its watcher.
func (s *Service) DeleteWorkspace(ctx context.Context, projectID, workspaceID string) error {
	e, err := s.acquire(projectID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := s.manager.DeleteWorkspace(ctx, e.p, workspaceID); err != nil {
		s.logger.Warn("delete workspace failed", "project_id", projectID, "workspace_id", workspaceID, "error", err)
		return err
	}
	s.stopWatcher(workspaceID)
	s.publish(e)

	s.emitter.Emit(events.WorkspaceDeleted{ProjectID: projectID, WorkspaceID: workspaceID}.Envelope())
	return nil
}

// ChangedFiles queries the current changed-file set of a workspace.
func (s *Service) ChangedFiles(ctx context.Context, projectID, workspaceID string) ([]workspace.FileChange, error) {
	snapshot, err := s.Project(projectID)
	if err != nil {
		return nil, err
	}

	files, err := s.manager.ChangedFiles(ctx, &snapshot, workspaceID)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []workspace.FileChange{}
	}
	return files, nil
}

// Close stops every watcher. Projects stay persisted for the next Open.
func (s *Service) Close() {
	if s.watchers != nil {
		s.watchers.StopAll()
	}
	s.logger.Info("service closed")
}

// add registers p. Callers hold s.mu for writing.
func (s *Service) add(p *workspace.Project) {
	if p.Workspaces == nil {
		p.Workspaces = []workspace.Workspace{}
	}
	s.projects[p.ID] = &entry{p: p, snap: p.Clone()}
	s.order = append(s.order, p.ID)
}

// byPath finds an open project by absolute path. Callers hold s.mu.
func (s *Service) byPath(abs string) (workspace.Project, bool) {
	for _, id := range s.order {
		if e := s.projects[id]; e.snap.Path == abs {
			return e.snap.Clone(), true
		}
	}
	return workspace.Project{}, false
}

// acquire returns the project's entry with its lock held.
func (s *Service) acquire(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.projects[id]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, notFound(id)
	}
	return e, nil
}

// publish makes e's working copy visible to readers and saves the registry.
// Callers hold e.mu.
func (s *Service) publish(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.snap = e.p.Clone()
	s.persist()
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", workspace.ErrProjectNotFound, id)
}

// startWatcher logs setup failures; the workspace stays usable unwatched.
func (s *Service) startWatcher(ws workspace.Workspace) {
	if s.watchers == nil {
		return
	}
	if err := s.watchers.Start(ws.ID, ws.Path); err != nil {
		s.logger.Error("start watcher failed", "workspace_id", ws.ID, "path", ws.Path, "error", err)
	}
}

func (s *Service) stopWatcher(id string) {
	if s.watchers != nil {
		s.watchers.Stop(id)
	}
	if c, ok := s.logs.(scopeCleaner); ok {
		c.Cleanup(watcher.Scope(id))
	}
}

// persist saves the registry. Save failures are logged, not returned.
// Callers hold s.mu for writing.
func (s *Service) persist() {
	if s.store == nil {
		return
	}
	projects := make([]workspace.Project, 0, len(s.order))
	for _, id := range s.order {
		projects = append(projects, s.projects[id].snap.Clone())
	}
	if err := s.store.Save(projects); err != nil {
		s.logger.Error("save projects failed", "error", err)
	}
}
