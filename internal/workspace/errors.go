// pattern: Functional Core

package workspace

import (
	"errors"
	"fmt"
)

// Validation errors. Not-found errors are wrapped with the offending id,
// so match them with errors.Is.
var (
	ErrNotARepository    = errors.New("not a git repository")
	ErrProjectNotFound   = errors.New("project not found")
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrWorkspaceExists   = errors.New("workspace already exists")
	ErrInvalidName       = errors.New("invalid workspace name")
)

// ErrBranchNotMerged is returned by VCS.DeleteWorktree when the worktree was
// removed but its branch was kept because it holds unmerged commits.
var ErrBranchNotMerged = errors.New("branch not fully merged")

// IOError wraps a filesystem failure during a lifecycle operation.
type IOError struct {
	Op   string // e.g. "create directory"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// VCSError wraps a failure reported by the version-control collaborator.
type VCSError struct {
	Op  string // e.g. "create worktree"
	Err error
}

func (e *VCSError) Error() string {
	return fmt.Sprintf("git %s: %v", e.Op, e.Err)
}

func (e *VCSError) Unwrap() error {
	return e.Err
}
