// pattern: Imperative Shell

// Package worktree implements the workspace VCS capability with the git CLI.
package worktree

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"shellflow/internal/workspace"
)

var _ workspace.VCS = (*Git)(nil)

// Git runs git subcommands against repositories and their worktrees.
type Git struct {
	// Command is the git executable. Defaults to "git".
	Command string
}

// New returns a Git using the git on PATH.
func New() *Git {
	return &Git{Command: "git"}
}

// IsRepository reports whether path lies inside a git work tree.
func (g *Git) IsRepository(ctx context.Context, path string) bool {
	out, err := g.run(ctx, path, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// RepositoryName returns the base name of the repository's top-level
// directory, or of path itself if git cannot tell.
func (g *Git) RepositoryName(ctx context.Context, path string) string {
	out, err := g.run(ctx, path, "rev-parse", "--show-toplevel")
	if err == nil {
		if top := strings.TrimSpace(string(out)); top != "" {
			return filepath.Base(top)
		}
	}
	return filepath.Base(filepath.Clean(path))
}

// BranchExists reports whether refs/heads/branch exists in repoPath.
func (g *Git) BranchExists(ctx context.Context, repoPath, branch string) bool {
	_, err := g.run(ctx, repoPath, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// CreateWorktree adds a worktree at targetPath checked out on branch.
// A new branch is created from HEAD unless it already exists; newBranch
// reports which happened.
func (g *Git) CreateWorktree(ctx context.Context, repoPath, targetPath, branch string) (bool, error) {
	if g.BranchExists(ctx, repoPath, branch) {
		_, err := g.run(ctx, repoPath, "worktree", "add", targetPath, branch)
		return false, err
	}
	if _, err := g.run(ctx, repoPath, "worktree", "add", "-b", branch, targetPath); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteWorktree removes the worktree checked out on branch and prunes stale
// worktree metadata. A worktree that is already gone is not an error.
//
// With deleteBranch set the branch is removed with `git branch -d`, which
// refuses branches holding unmerged commits. Such a branch is kept and
// workspace.ErrBranchNotMerged is returned.
func (g *Git) DeleteWorktree(ctx context.Context, repoPath, branch string, deleteBranch bool) error {
	worktrees, err := g.List(ctx, repoPath)
	if err != nil {
		return err
	}

	for _, wt := range worktrees {
		if wt.Branch != branch || wt.Main {
			continue
		}
		// A missing directory is cleaned up by prune below.
		if _, err := os.Stat(wt.Path); err != nil {
			break
		}
		if _, err := g.run(ctx, repoPath, "worktree", "remove", "--force", wt.Path); err != nil {
			return err
		}
		break
	}

	if _, err := g.run(ctx, repoPath, "worktree", "prune"); err != nil {
		return err
	}

	if !deleteBranch || !g.BranchExists(ctx, repoPath, branch) {
		return nil
	}
	if _, err := g.run(ctx, repoPath, "branch", "-d", branch); err != nil {
		if strings.Contains(err.Error(), "not fully merged") {
			return fmt.Errorf("%w: %s", workspace.ErrBranchNotMerged, branch)
		}
		return err
	}
	return nil
}

// Info describes one entry of `git worktree list`.
type Info struct {
	Path     string `json:"path"`
	Head     string `json:"head"`
	Branch   string `json:"branch,omitempty"` // short name; empty when detached
	Detached bool   `json:"detached,omitempty"`
	Main     bool   `json:"main,omitempty"` // the repository's main working tree
	Prunable bool   `json:"prunable,omitempty"`
}

// List returns the repository's worktrees, main working tree first.
func (g *Git) List(ctx context.Context, repoPath string) ([]Info, error) {
	out, err := g.run(ctx, repoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(string(out)), nil
}

// parseWorktreeList parses `git worktree list --porcelain` output:
// attribute lines grouped into blank-line separated records.
func parseWorktreeList(output string) []Info {
	var worktrees []Info
	var current *Info

	flush := func() {
		if current != nil {
			worktrees = append(worktrees, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			flush()
			continue
		}

		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "worktree":
			flush()
			current = &Info{Path: value, Main: len(worktrees) == 0}
		case "HEAD":
			if current != nil {
				current.Head = value
			}
		case "branch":
			if current != nil {
				current.Branch = strings.TrimPrefix(value, "refs/heads/")
			}
		case "detached":
			if current != nil {
				current.Detached = true
			}
		case "prunable":
			if current != nil {
				current.Prunable = true
			}
		}
	}
	flush()

	return worktrees
}

// run executes git in dir and returns stdout. Failures carry git's stderr.
func (g *Git) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	command := g.Command
	if command == "" {
		command = "git"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return stdout.Bytes(), fmt.Errorf("git %s: %w", strings.Join(args[:min(2, len(args))], " "), err)
		}
		return stdout.Bytes(), fmt.Errorf("git %s: %s: %w", strings.Join(args[:min(2, len(args))], " "), msg, err)
	}
	return stdout.Bytes(), nil
}
