// pattern: Imperative Shell

package workspace

import "context"

// VCS is the version-control capability the lifecycle manager depends on.
// worktree.Git implements it with the git CLI.
type VCS interface {
	IsRepository(ctx context.Context, path string) bool
	RepositoryName(ctx context.Context, path string) string
	BranchExists(ctx context.Context, repoPath, branch string) bool

	// CreateWorktree checks branch out at targetPath, creating the branch
	// from HEAD if it does not exist. newBranch reports whether it did.
	CreateWorktree(ctx context.Context, repoPath, targetPath, branch string) (newBranch bool, err error)

	// DeleteWorktree removes the worktree checked out on branch. With
	// deleteBranch set the branch is deleted too, unless it holds unmerged
	// commits, in which case it is kept and ErrBranchNotMerged is returned.
	DeleteWorktree(ctx context.Context, repoPath, branch string, deleteBranch bool) error

	ChangedFiles(ctx context.Context, path string) ([]FileChange, error)
}
