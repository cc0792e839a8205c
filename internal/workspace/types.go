// pattern: Functional Core

package workspace

import "time"

// Project is an opened git repository and the workspaces spun off it.
// The workspace list is owned by the project and is not internally
// synchronized: callers serialize mutations of a given project.
type Project struct {
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	Path       string      `json:"path" yaml:"path"`
	Workspaces []Workspace `json:"workspaces" yaml:"workspaces"`
}

// Workspace is one isolated working copy backed by a git worktree.
type Workspace struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Path      string    `json:"path" yaml:"path"`
	Branch    string    `json:"branch" yaml:"branch"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// OwnsBranch is set when the branch was created for this workspace.
	// Only owned branches are deleted with the workspace.
	OwnsBranch bool `json:"owns_branch" yaml:"owns_branch"`
}

// ChangeKind classifies a changed file as reported by the VCS.
type ChangeKind string

const (
	ChangeModified   ChangeKind = "modified"
	ChangeAdded      ChangeKind = "added"
	ChangeDeleted    ChangeKind = "deleted"
	ChangeRenamed    ChangeKind = "renamed"
	ChangeCopied     ChangeKind = "copied"
	ChangeUntracked  ChangeKind = "untracked"
	ChangeConflicted ChangeKind = "conflicted"
)

// FileChange describes one changed file relative to the workspace root.
type FileChange struct {
	Path    string     `json:"path"`
	OldPath string     `json:"old_path,omitempty"` // set for renames and copies
	Status  ChangeKind `json:"status"`
	Staged  bool       `json:"staged"`
}

// Workspace returns the workspace with the given id.
func (p *Project) Workspace(id string) (Workspace, bool) {
	if i := p.indexOf(id); i >= 0 {
		return p.Workspaces[i], true
	}
	return Workspace{}, false
}

// HasWorkspaceNamed reports whether a workspace with the given name exists.
func (p *Project) HasWorkspaceNamed(name string) bool {
	for _, ws := range p.Workspaces {
		if ws.Name == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p *Project) Clone() Project {
	cp := *p
	cp.Workspaces = make([]Workspace, len(p.Workspaces))
	copy(cp.Workspaces, p.Workspaces)
	return cp
}

func (p *Project) indexOf(id string) int {
	for i, ws := range p.Workspaces {
		if ws.ID == id {
			return i
		}
	}
	return -1
}
