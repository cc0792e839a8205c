// pattern: Imperative Shell

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"shellflow/internal/discovery"
	"shellflow/internal/events"
	"shellflow/internal/workspace"
)

// OpenProjectRequest is the JSON body for POST /api/projects.
type OpenProjectRequest struct {
	Path string `json:"path"`
}

// CreateWorkspaceRequest is the JSON body for POST /api/projects/{id}/workspaces.
// An empty body or name asks for a generated name.
type CreateWorkspaceRequest struct {
	Name string `json:"name"`
}

// ChangesResponse is the body of GET .../changes. It has the same shape as a
// files-changed event.
type ChangesResponse = events.FilesChanged

// DiscoveredRepository is one entry of GET /api/discover. ProjectID is set
// when the repository is already open.
type DiscoveredRepository struct {
	discovery.Repository
	ProjectID string `json:"project_id,omitempty"`
}

// handleDiscover handles GET /api/discover.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if s.discover == nil {
		writeError(w, http.StatusNotFound, "discovery is not configured (set scan_paths)")
		return
	}

	open := make(map[string]string)
	for _, p := range s.projects.Projects() {
		open[p.Path] = p.ID
	}

	repos := s.discover(r.Context())
	out := make([]DiscoveredRepository, 0, len(repos))
	for _, repo := range repos {
		out = append(out, DiscoveredRepository{Repository: repo, ProjectID: open[repo.Path]})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListProjects handles GET /api/projects.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.projects.Projects())
}

// handleOpenProject handles POST /api/projects.
// Returns 201 with the project, or 200 if the path was already open.
func (s *Server) handleOpenProject(w http.ResponseWriter, r *http.Request) {
	var req OpenProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	p, created, err := s.projects.OpenProject(r.Context(), req.Path)
	if err != nil {
		s.fail(w, "open project", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, p)
}

// handleGetProject handles GET /api/projects/{id}.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.projects.Project(r.PathValue("id"))
	if err != nil {
		s.fail(w, "get project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleCloseProject handles DELETE /api/projects/{id}.
func (s *Server) handleCloseProject(w http.ResponseWriter, r *http.Request) {
	if err := s.projects.CloseProject(r.PathValue("id")); err != nil {
		s.fail(w, "close project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateWorkspace handles POST /api/projects/{id}/workspaces.
// Returns 400 for an invalid name, 404 for an unknown project, 409 when the
// name is taken.
func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ws, err := s.projects.CreateWorkspace(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		s.fail(w, "create workspace", err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

// handleDeleteWorkspace handles DELETE /api/projects/{id}/workspaces/{wsid}.
func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := s.projects.DeleteWorkspace(r.Context(), r.PathValue("id"), r.PathValue("wsid")); err != nil {
		s.fail(w, "delete workspace", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleChangedFiles handles GET /api/projects/{id}/workspaces/{wsid}/changes.
func (s *Server) handleChangedFiles(w http.ResponseWriter, r *http.Request) {
	wsID := r.PathValue("wsid")
	files, err := s.projects.ChangedFiles(r.Context(), r.PathValue("id"), wsID)
	if err != nil {
		s.fail(w, "changed files", err)
		return
	}
	writeJSON(w, http.StatusOK, ChangesResponse{WorkspaceID: wsID, Files: files})
}

// fail writes err with the status its kind maps to. Server-side failures
// are logged.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
	}
	writeError(w, status, err.Error())
}

// statusFor maps lifecycle errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workspace.ErrNotARepository), errors.Is(err, workspace.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, workspace.ErrProjectNotFound), errors.Is(err, workspace.ErrWorkspaceNotFound):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrWorkspaceExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
