// pattern: Imperative Shell

package worktree

import (
	"context"
	"strings"

	"shellflow/internal/workspace"
)

// ChangedFiles lists files that differ from HEAD in the work tree at path,
// untracked files included.
func (g *Git) ChangedFiles(ctx context.Context, path string) ([]workspace.FileChange, error) {
	out, err := g.run(ctx, path, "status", "--porcelain=v1", "-uall", "-z")
	if err != nil {
		return nil, err
	}
	return parseStatus(string(out)), nil
}

// parseStatus parses NUL-terminated porcelain v1 output. Each record is
// "XY path"; renames and copies are followed by a second record holding
// the original path.
func parseStatus(output string) []workspace.FileChange {
	// Empty slice rather than nil so JSON renders [].
	files := make([]workspace.FileChange, 0)

	records := strings.Split(output, "\x00")
	for i := 0; i < len(records); i++ {
		record := records[i]
		if len(record) < 4 {
			continue
		}

		x, y := record[0], record[1]
		change := workspace.FileChange{
			Path:   record[3:],
			Status: classify(x, y),
		}

		if x == 'R' || x == 'C' || y == 'R' || y == 'C' {
			if i+1 < len(records) {
				change.OldPath = records[i+1]
				i++
			}
		}

		change.Staged = x != ' ' && x != '?' && change.Status != workspace.ChangeConflicted
		files = append(files, change)
	}

	return files
}

// classify maps a porcelain XY pair to a change kind. The index column wins
// when both columns are set.
func classify(x, y byte) workspace.ChangeKind {
	switch {
	case x == 'U' || y == 'U' || (x == 'A' && y == 'A') || (x == 'D' && y == 'D'):
		return workspace.ChangeConflicted
	case x == '?' && y == '?':
		return workspace.ChangeUntracked
	}

	code := x
	if code == ' ' {
		code = y
	}

	switch code {
	case 'A':
		return workspace.ChangeAdded
	case 'D':
		return workspace.ChangeDeleted
	case 'R':
		return workspace.ChangeRenamed
	case 'C':
		return workspace.ChangeCopied
	default:
		return workspace.ChangeModified
	}
}
