package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"shellflow/internal/events"
	"shellflow/internal/workspace"
)

type fakeVCS struct {
	mu        sync.Mutex
	repos     map[string]bool
	branches  map[string]bool
	changes   []workspace.FileChange
	createErr error
	deleteErr error
	gate      *createGate
}

// createGate parks the next CreateWorktree call until release is closed.
type createGate struct {
	entered chan struct{}
	release chan struct{}
}

func newFakeVCS(repos ...string) *fakeVCS {
	f := &fakeVCS{repos: make(map[string]bool), branches: make(map[string]bool)}
	for _, r := range repos {
		f.repos[r] = true
	}
	return f
}

func (f *fakeVCS) IsRepository(_ context.Context, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repos[path]
}

func (f *fakeVCS) RepositoryName(_ context.Context, path string) string {
	return filepath.Base(path)
}

func (f *fakeVCS) addRepo(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[path] = true
}

func (f *fakeVCS) holdNextCreate() *createGate {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = &createGate{entered: make(chan struct{}), release: make(chan struct{})}
	return f.gate
}

func (f *fakeVCS) BranchExists(_ context.Context, repo, branch string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.branches[repo+"\x00"+branch]
}

func (f *fakeVCS) CreateWorktree(_ context.Context, repo, target, branch string) (bool, error) {
	f.mu.Lock()
	gate := f.gate
	f.gate = nil
	f.mu.Unlock()
	if gate != nil {
		close(gate.entered)
		<-gate.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return false, f.createErr
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return false, err
	}
	key := repo + "\x00" + branch
	existed := f.branches[key]
	f.branches[key] = true
	return !existed, nil
}

func (f *fakeVCS) DeleteWorktree(_ context.Context, repo, branch string, deleteBranch bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if deleteBranch {
		delete(f.branches, repo+"\x00"+branch)
	}
	return nil
}

func (f *fakeVCS) ChangedFiles(_ context.Context, _ string) ([]workspace.FileChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changes, nil
}

type fakeWatchers struct {
	mu       sync.Mutex
	running  map[string]string
	started  []string
	stopped  []string
	startErr error
}

func newFakeWatchers() *fakeWatchers {
	return &fakeWatchers{running: make(map[string]string)}
}

func (w *fakeWatchers) Start(id, path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.startErr != nil {
		return w.startErr
	}
	w.running[id] = path
	w.started = append(w.started, id)
	return nil
}

func (w *fakeWatchers) Stop(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = append(w.stopped, id)
	_, ok := w.running[id]
	delete(w.running, id)
	return ok
}

func (w *fakeWatchers) StopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id := range w.running {
		w.stopped = append(w.stopped, id)
		delete(w.running, id)
	}
}

func (w *fakeWatchers) isRunning(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.running[id]
	return ok
}

type memStore struct {
	mu       sync.Mutex
	projects []workspace.Project
	saves    int
	saveErr  error
	loadErr  error
}

func (m *memStore) Load() ([]workspace.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make([]workspace.Project, len(m.projects))
	for i := range m.projects {
		out[i] = m.projects[i].Clone()
	}
	return out, nil
}

func (m *memStore) Save(projects []workspace.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.projects = projects
	return nil
}

func (m *memStore) saved() []workspace.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projects
}

type recordingEmitter struct {
	mu  sync.Mutex
	got []events.Envelope
}

func (e *recordingEmitter) Emit(env events.Envelope) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, env)
}

func (e *recordingEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, env := range e.got {
		out = append(out, env.Type)
	}
	return out
}

var errBoom = errors.New("boom")
