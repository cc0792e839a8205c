// pattern: Imperative Shell

package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"shellflow/internal/logging"
)

// sseStart prepares w for a server-sent event stream and sends the
// "connected" event.
func sseStart(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: connected\ndata: ok\n\n")
	flusher.Flush()
	return flusher, true
}

// handleEvents is the SSE endpoint for lifecycle and files-changed events.
// Each envelope is sent with its type as the event name and its payload as
// data. ?workspace=<id> limits the stream to one workspace.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("workspace")

	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	flusher, ok := sseStart(w)
	if !ok {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			if filter != "" && env.WorkspaceID() != filter {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Type, env.Data)
			flusher.Flush()
		}
	}
}

// handleLogs streams log entries as SSE "log" events. ?scope= keeps entries
// whose scope has the given prefix; ?level= sets the minimum level.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logStream == nil {
		writeError(w, http.StatusNotFound, "log stream not available")
		return
	}
	scope := r.URL.Query().Get("scope")
	level := r.URL.Query().Get("level")

	ch := s.logStream.Subscribe()
	defer s.logStream.Unsubscribe(ch)

	flusher, ok := sseStart(w)
	if !ok {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case entry, ok := <-ch:
			if !ok {
				return
			}
			if !keepEntry(entry, scope, level) {
				continue
			}
			data, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: log\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func keepEntry(e logging.LogEntry, scope, level string) bool {
	if scope != "" && !e.MatchesScope(scope) {
		return false
	}
	if level != "" && !e.AtLeast(level) {
		return false
	}
	return true
}
