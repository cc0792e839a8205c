// pattern: Imperative Shell

// Package discovery finds git repositories that could be opened as projects.
package discovery

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"shellflow/internal/worktree"
)

// Repository is a git repository found under a scan path.
type Repository struct {
	Name string `json:"name"`
	Path string `json:"path"`
	// Worktrees lists the linked worktrees, excluding the main working tree.
	Worktrees []worktree.Info `json:"worktrees"`
}

// Inspector answers the git questions the scanner asks.
type Inspector interface {
	IsRepository(ctx context.Context, path string) bool
	List(ctx context.Context, repoPath string) ([]worktree.Info, error)
}

// Scanner discovers repositories one directory level below its scan paths.
type Scanner struct {
	git   Inspector
	paths []string
}

// NewScanner creates a scanner over paths.
func NewScanner(git Inspector, paths []string) *Scanner {
	return &Scanner{git: git, paths: paths}
}

// Paths returns the configured scan paths.
func (s *Scanner) Paths() []string {
	return slices.Clone(s.paths)
}

// Scan walks every scan path one level deep and returns the repositories
// found, sorted by path. Hidden directories and unreadable scan paths are
// skipped. Directories that are themselves linked worktrees are not listed.
func (s *Scanner) Scan(ctx context.Context) []Repository {
	var repos []Repository
	seen := make(map[string]bool)

	for _, scanPath := range s.paths {
		entries, err := os.ReadDir(scanPath)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				return repos
			}
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}

			path := filepath.Join(scanPath, entry.Name())
			if resolved, err := filepath.EvalSymlinks(path); err == nil {
				path = resolved
			}
			if seen[path] {
				continue
			}
			seen[path] = true

			if !isRepositoryRoot(path) || !s.git.IsRepository(ctx, path) {
				continue
			}
			repos = append(repos, Repository{
				Name:      entry.Name(),
				Path:      path,
				Worktrees: s.linkedWorktrees(ctx, path),
			})
		}
	}

	slices.SortFunc(repos, func(a, b Repository) int {
		return strings.Compare(a.Path, b.Path)
	})
	return repos
}

func (s *Scanner) linkedWorktrees(ctx context.Context, path string) []worktree.Info {
	infos, err := s.git.List(ctx, path)
	if err != nil {
		return []worktree.Info{}
	}
	linked := make([]worktree.Info, 0, len(infos))
	for _, info := range infos {
		if !info.Main {
			linked = append(linked, info)
		}
	}
	return linked
}

// isRepositoryRoot reports whether dir holds a .git directory. A .git file
// marks a linked worktree or submodule, which are not offered as projects.
func isRepositoryRoot(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && fi.IsDir()
}
