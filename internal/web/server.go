// pattern: Imperative Shell

package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"shellflow/internal/discovery"
	"shellflow/internal/events"
	"shellflow/internal/logging"
	"shellflow/internal/workspace"
)

// Projects is the project registry the API drives. *service.Service
// implements it.
type Projects interface {
	// OpenProject reports created=false when path was already open.
	OpenProject(ctx context.Context, path string) (p workspace.Project, created bool, err error)
	Projects() []workspace.Project
	Project(id string) (workspace.Project, error)
	CloseProject(id string) error
	CreateWorkspace(ctx context.Context, projectID, name string) (workspace.Workspace, error)
	DeleteWorkspace(ctx context.Context, projectID, workspaceID string) error
	ChangedFiles(ctx context.Context, projectID, workspaceID string) ([]workspace.FileChange, error)
}

// Server serves the JSON API and the event streams.
type Server struct {
	httpServer *http.Server
	projects   Projects
	bus        *events.Bus
	logStream  *events.Broker[logging.LogEntry]
	discover   func(context.Context) []discovery.Repository
	logger     *logging.ScopedLogger
	addr       string
	listener   net.Listener
}

// Config holds web server configuration.
type Config struct {
	// Addr is the host:port to listen on. Port 0 picks a free port.
	Addr string
	// Discover backs GET /api/discover. Nil disables the route.
	Discover func(ctx context.Context) []discovery.Repository
}

// New creates a web server. bus feeds /api/events and /api/ws; logStream
// feeds /api/logs and may be nil, in which case that route answers 404.
func New(cfg Config, projects Projects, bus *events.Bus, logStream *events.Broker[logging.LogEntry], logProvider logging.LoggerProvider) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		projects:  projects,
		bus:       bus,
		logStream: logStream,
		discover:  cfg.Discover,
		logger:    logProvider.For("web"),
		addr:      addr,
	}

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/discover", s.handleDiscover)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleOpenProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleCloseProject)
	mux.HandleFunc("POST /api/projects/{id}/workspaces", s.handleCreateWorkspace)
	mux.HandleFunc("DELETE /api/projects/{id}/workspaces/{wsid}", s.handleDeleteWorkspace)
	mux.HandleFunc("GET /api/projects/{id}/workspaces/{wsid}/changes", s.handleChangedFiles)

	return s
}

// Listen binds the server to its configured address and returns the listener.
// Call Serve() after Listen() to start accepting connections. Splitting the
// two lets callers learn the bound address when the port is 0.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("web server listen: %w", err)
	}
	s.listener = ln
	return ln, nil
}

// Serve accepts connections on the listener. Blocks until the server stops.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("web server started", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Start is a convenience that calls Listen() then Serve(). Blocks until the server stops.
func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Addr returns the address the server is listening on.
// Only valid after Listen() or Start() has been called.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Handler exposes the route table, for tests using httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully stops the server. Open event streams end when their
// broker closes or their client goes away.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("web server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
