package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"shellflow/internal/events"
	"shellflow/internal/instance"
	"shellflow/internal/workspace"
)

// fakeInstance is a running shellflow stand-in: an HTTP server holding the
// lock and port file in a temp data dir.
type fakeInstance struct {
	dir      string
	projects []workspace.Project
	stream   []events.Envelope

	mu       sync.Mutex
	requests []string
	bodies   []string
}

func startFakeInstance(t *testing.T, projects ...workspace.Project) *fakeInstance {
	t.Helper()
	f := &fakeInstance{dir: t.TempDir(), projects: projects}

	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	h, err := instance.Acquire(f.dir)
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	t.Cleanup(h.Release)
	if err := h.WritePort(srv.Listener.Addr().String()); err != nil {
		t.Fatalf("WritePort() failed: %v", err)
	}
	return f
}

func (f *fakeInstance) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/api/health":
		w.WriteHeader(http.StatusOK)
	case r.URL.Path == "/api/ws":
		f.serveWS(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/api/projects":
		writeTestJSON(w, http.StatusOK, f.projects)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/workspaces"):
		var req struct{ Name string }
		_ = json.Unmarshal(body, &req)
		if req.Name == "taken" {
			writeTestJSON(w, http.StatusConflict, map[string]string{"error": "workspace already exists: taken"})
			return
		}
		writeTestJSON(w, http.StatusCreated, workspace.Workspace{ID: "w-new", Name: req.Name})
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeTestJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path})
	}
}

func (f *fakeInstance) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.CloseNow() }()
	want := r.URL.Query().Get("workspace")
	for _, env := range f.stream {
		if want != "" && env.WorkspaceID() != want {
			continue
		}
		if err := wsjson.Write(r.Context(), conn, env); err != nil {
			return
		}
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (f *fakeInstance) lastRequest() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return "", ""
	}
	return f.requests[len(f.requests)-1], f.bodies[len(f.bodies)-1]
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// run executes args against an app wired to dir and reports the output
// and the exit code (-1 when ExitFunc was not called).
func run(t *testing.T, dir string, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	code = -1
	app := buildApp("1.2.3", Delegate{
		ConfigDir: dir,
		Stdout:    out,
		Stderr:    errOut,
		ExitFunc:  func(c int) { code = c },
	})
	app.Execute(args)
	return out.String(), errOut.String(), code
}

func sampleProject() workspace.Project {
	return workspace.Project{
		ID:   "p-1",
		Name: "app",
		Path: "/src/app",
		Workspaces: []workspace.Workspace{
			{ID: "w-1", Name: "brave-otter", Branch: "brave-otter"},
			{ID: "w-2", Name: "calm-heron", Branch: "calm-heron"},
		},
	}
}
