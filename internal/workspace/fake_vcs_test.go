package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
)

// fakeVCS simulates git: repositories are a fixed set of paths and
// CreateWorktree materializes the target directory. Branches are tracked
// by name across all repositories.
type fakeVCS struct {
	mu sync.Mutex

	repos    map[string]bool
	branches map[string]bool
	changes  []FileChange

	createErr    error
	deleteErr    error
	unmerged     bool // DeleteWorktree keeps owned branches
	changesErr   error
	leaveDebris  bool // CreateWorktree writes the target before failing
	createCalls  []createCall
	deleteCalls  []deleteCall
	changesCalls []string
}

type createCall struct {
	repo, target, branch string
}

type deleteCall struct {
	repo, branch string
	deleteBranch bool
}

func newFakeVCS(repos ...string) *fakeVCS {
	f := &fakeVCS{repos: make(map[string]bool), branches: make(map[string]bool)}
	for _, r := range repos {
		f.repos[r] = true
	}
	return f
}

func (f *fakeVCS) IsRepository(_ context.Context, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repos[path]
}

func (f *fakeVCS) RepositoryName(_ context.Context, path string) string {
	return filepath.Base(path)
}

func (f *fakeVCS) BranchExists(_ context.Context, _, branch string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.branches[branch]
}

func (f *fakeVCS) CreateWorktree(_ context.Context, repo, target, branch string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, createCall{repo, target, branch})
	if f.createErr != nil {
		if f.leaveDebris {
			_ = os.MkdirAll(target, 0755)
		}
		return false, f.createErr
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return false, err
	}
	if err := os.WriteFile(filepath.Join(target, ".git"), []byte("gitdir: "+repo), 0644); err != nil {
		return false, err
	}
	existed := f.branches[branch]
	f.branches[branch] = true
	return !existed, nil
}

func (f *fakeVCS) DeleteWorktree(_ context.Context, repo, branch string, deleteBranch bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, deleteCall{repo, branch, deleteBranch})
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if !deleteBranch {
		return nil
	}
	if f.unmerged {
		return ErrBranchNotMerged
	}
	delete(f.branches, branch)
	return nil
}

func (f *fakeVCS) ChangedFiles(_ context.Context, path string) ([]FileChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changesCalls = append(f.changesCalls, path)
	if f.changesErr != nil {
		return nil, f.changesErr
	}
	return append([]FileChange(nil), f.changes...), nil
}

// sequence returns a generator yielding names in order, repeating the last.
func sequence(names ...string) func() string {
	i := 0
	return func() string {
		name := names[i]
		if i < len(names)-1 {
			i++
		}
		return name
	}
}
