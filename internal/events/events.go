// Package events holds the notifications shellflow publishes to clients and
// the broker that fans them out.
package events

import (
	"encoding/json"

	"shellflow/internal/workspace"
)

// Event type names, used as the SSE event name and the websocket envelope type.
const (
	TypeFilesChanged     = "files-changed"
	TypeWorkspaceCreated = "workspace-created"
	TypeWorkspaceDeleted = "workspace-deleted"
)

// FilesChanged carries the full changed-file set of a workspace after a
// debounced burst of filesystem activity.
type FilesChanged struct {
	WorkspaceID string                 `json:"workspace_id"`
	Files       []workspace.FileChange `json:"files"`
}

// WorkspaceCreated is published after a workspace and its worktree exist.
type WorkspaceCreated struct {
	ProjectID string              `json:"project_id"`
	Workspace workspace.Workspace `json:"workspace"`
}

// WorkspaceDeleted is published after a workspace record is removed.
type WorkspaceDeleted struct {
	ProjectID   string `json:"project_id"`
	WorkspaceID string `json:"workspace_id"`
}

// Envelope tags a payload with its event type.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Emitter accepts outbound notifications.
type Emitter interface {
	Emit(Envelope)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Envelope)

func (f EmitterFunc) Emit(e Envelope) { f(e) }

// Wrap builds an envelope around payload. Payloads are the event structs in
// this package, which always marshal.
func Wrap(eventType string, payload any) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("null")
	}
	return Envelope{Type: eventType, Data: data}
}

// WorkspaceID returns the workspace an envelope concerns, or "" if its
// payload names none.
func (e Envelope) WorkspaceID() string {
	var peek struct {
		WorkspaceID string `json:"workspace_id"`
		Workspace   struct {
			ID string `json:"id"`
		} `json:"workspace"`
	}
	if err := json.Unmarshal(e.Data, &peek); err != nil {
		return ""
	}
	if peek.WorkspaceID != "" {
		return peek.WorkspaceID
	}
	return peek.Workspace.ID
}

func (e FilesChanged) Envelope() Envelope     { return Wrap(TypeFilesChanged, e) }
func (e WorkspaceCreated) Envelope() Envelope { return Wrap(TypeWorkspaceCreated, e) }
func (e WorkspaceDeleted) Envelope() Envelope { return Wrap(TypeWorkspaceDeleted, e) }
