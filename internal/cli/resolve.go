// pattern: Functional Core

package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"shellflow/internal/workspace"
)

// findProject matches ref against project ids, then names, then paths.
// Names are ambiguous when two open repositories share a base name.
func findProject(projects []workspace.Project, ref string) (workspace.Project, error) {
	for _, p := range projects {
		if p.ID == ref {
			return p, nil
		}
	}

	var matches []workspace.Project
	for _, p := range projects {
		if p.Name == ref {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
	default:
		return workspace.Project{}, fmt.Errorf("project name %q is ambiguous, use the id or path", ref)
	}

	if abs, err := filepath.Abs(ref); err == nil {
		for _, p := range projects {
			if p.Path == abs {
				return p, nil
			}
		}
	}
	return workspace.Project{}, fmt.Errorf("project not found: %s", ref)
}

// findWorkspace matches ref against workspace ids, then names.
func findWorkspace(p workspace.Project, ref string) (workspace.Workspace, error) {
	if ws, ok := p.Workspace(ref); ok {
		return ws, nil
	}
	for _, ws := range p.Workspaces {
		if ws.Name == ref {
			return ws, nil
		}
	}
	return workspace.Workspace{}, fmt.Errorf("workspace not found in %s: %s", p.Name, ref)
}

func decodeProjects(data []byte) ([]workspace.Project, error) {
	var projects []workspace.Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	return projects, nil
}
