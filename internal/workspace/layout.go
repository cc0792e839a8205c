// pattern: Functional Core

package workspace

import (
	"os"
	"path/filepath"
)

// DirName is the directory under the user's home that holds all workspaces.
const DirName = ".workspaces"

// DefaultRoot returns ~/.workspaces, or a directory under the system temp
// dir when the home directory cannot be resolved.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), DirName)
	}
	return filepath.Join(home, DirName)
}

// Layout maps (project, workspace) names to directories under its root.
// It never touches the filesystem. Two workspaces with the same name in
// the same project map to the same path; the Manager guards against that.
type Layout struct {
	Root string // empty means DefaultRoot()
}

// RootDir returns the effective root directory.
func (l Layout) RootDir() string {
	if l.Root == "" {
		return DefaultRoot()
	}
	return l.Root
}

// ProjectDir returns <root>/<project>.
func (l Layout) ProjectDir(projectName string) string {
	return filepath.Join(l.RootDir(), projectName)
}

// Path returns <root>/<project>/<workspace>.
func (l Layout) Path(projectName, workspaceName string) string {
	return filepath.Join(l.RootDir(), projectName, workspaceName)
}
