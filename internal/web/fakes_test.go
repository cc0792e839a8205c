package web_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"shellflow/internal/workspace"
)

// fakeProjects is an in-memory registry with the same error contract as the
// service.
type fakeProjects struct {
	mu        sync.Mutex
	projects  []workspace.Project
	changes   []workspace.FileChange
	createErr error
	deleteErr error
	nextID    int

	// racingOpen is opened alongside any reopen, as if by another client.
	racingOpen string
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{}
}

func (f *fakeProjects) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeProjects) OpenProject(_ context.Context, path string) (workspace.Project, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !strings.HasPrefix(path, "/repos/") {
		return workspace.Project{}, false, fmt.Errorf("%w: %s", workspace.ErrNotARepository, path)
	}
	for _, p := range f.projects {
		if p.Path == path {
			if f.racingOpen != "" {
				f.add(f.racingOpen)
				f.racingOpen = ""
			}
			return p, false, nil
		}
	}
	return f.add(path), true, nil
}

func (f *fakeProjects) add(path string) workspace.Project {
	p := workspace.Project{
		ID:         f.id("p"),
		Name:       strings.TrimPrefix(path, "/repos/"),
		Path:       path,
		Workspaces: []workspace.Workspace{},
	}
	f.projects = append(f.projects, p)
	return p
}

func (f *fakeProjects) Projects() []workspace.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]workspace.Project, 0, len(f.projects))
	for i := range f.projects {
		out = append(out, f.projects[i].Clone())
	}
	return out
}

func (f *fakeProjects) find(id string) (int, error) {
	for i, p := range f.projects {
		if p.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", workspace.ErrProjectNotFound, id)
}

func (f *fakeProjects) Project(id string) (workspace.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.find(id)
	if err != nil {
		return workspace.Project{}, err
	}
	return f.projects[i].Clone(), nil
}

func (f *fakeProjects) CloseProject(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.find(id)
	if err != nil {
		return err
	}
	f.projects = append(f.projects[:i], f.projects[i+1:]...)
	return nil
}

func (f *fakeProjects) CreateWorkspace(_ context.Context, projectID, name string) (workspace.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.find(projectID)
	if err != nil {
		return workspace.Workspace{}, err
	}
	if f.createErr != nil {
		return workspace.Workspace{}, f.createErr
	}
	if name == "" {
		name = "brave-otter"
	}
	if err := workspace.ValidateName(name); err != nil {
		return workspace.Workspace{}, err
	}
	if f.projects[i].HasWorkspaceNamed(name) {
		return workspace.Workspace{}, fmt.Errorf("%w: %s", workspace.ErrWorkspaceExists, name)
	}
	ws := workspace.Workspace{
		ID:        f.id("w"),
		Name:      name,
		Branch:    name,
		Path:      "/ws/" + f.projects[i].Name + "/" + name,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	f.projects[i].Workspaces = append(f.projects[i].Workspaces, ws)
	return ws, nil
}

func (f *fakeProjects) DeleteWorkspace(_ context.Context, projectID, workspaceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.find(projectID)
	if err != nil {
		return err
	}
	if f.deleteErr != nil {
		return f.deleteErr
	}
	p := &f.projects[i]
	for j, ws := range p.Workspaces {
		if ws.ID == workspaceID {
			p.Workspaces = append(p.Workspaces[:j], p.Workspaces[j+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", workspace.ErrWorkspaceNotFound, workspaceID)
}

func (f *fakeProjects) ChangedFiles(_ context.Context, projectID, workspaceID string) ([]workspace.FileChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.find(projectID)
	if err != nil {
		return nil, err
	}
	if _, ok := f.projects[i].Workspace(workspaceID); !ok {
		return nil, fmt.Errorf("%w: %s", workspace.ErrWorkspaceNotFound, workspaceID)
	}
	return f.changes, nil
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return strings.TrimSpace(string(data))
}
