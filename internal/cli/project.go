// pattern: Imperative Shell

package cli

import (
	"path/filepath"

	"shellflow/internal/instance"
	"shellflow/internal/workspace"
)

// RegisterProjectCommands registers the project command group.
func RegisterProjectCommands(group *Group, base Delegate) {
	group.AddCommand(&Command{
		Name:    "open",
		Summary: "Open a git repository as a project",
		Usage:   "Usage: shellflow project open <repo-path>",
		Run: func(args []string) error {
			d := base
			if len(args) != 1 {
				d.Usage("Usage: shellflow project open <repo-path>")
				return nil
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				d.Fail(err)
				return nil
			}
			d.Run(func(c *instance.Client) error {
				data, err := c.OpenProject(path)
				if err != nil {
					return err
				}
				return d.PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "list",
		Summary: "List open projects and their workspaces as JSON",
		Usage:   "Usage: shellflow project list",
		Run: func(args []string) error {
			d := base
			d.Run(func(c *instance.Client) error {
				data, err := c.ListProjects()
				if err != nil {
					return err
				}
				return d.PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "discover",
		Summary: "List git repositories found under the configured scan paths",
		Usage:   "Usage: shellflow project discover",
		Run: func(args []string) error {
			d := base
			d.Run(func(c *instance.Client) error {
				data, err := c.DiscoverRepositories()
				if err != nil {
					return err
				}
				return d.PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "show",
		Summary: "Show one project by id, name or path",
		Usage:   "Usage: shellflow project show <project>",
		Run: func(args []string) error {
			d := base
			if len(args) != 1 {
				d.Usage("Usage: shellflow project show <project>")
				return nil
			}
			d.Run(func(c *instance.Client) error {
				p, err := resolveProject(c, args[0])
				if err != nil {
					return err
				}
				data, err := c.GetProject(p.ID)
				if err != nil {
					return err
				}
				return d.PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "close",
		Summary: "Close a project, keeping its worktrees on disk",
		Usage:   "Usage: shellflow project close <project>",
		Run: func(args []string) error {
			d := base
			if len(args) != 1 {
				d.Usage("Usage: shellflow project close <project>")
				return nil
			}
			d.Run(func(c *instance.Client) error {
				p, err := resolveProject(c, args[0])
				if err != nil {
					return err
				}
				return c.CloseProject(p.ID)
			})
			return nil
		},
	})
}

// resolveProject looks ref up in the instance's project list.
func resolveProject(c *instance.Client, ref string) (workspace.Project, error) {
	data, err := c.ListProjects()
	if err != nil {
		return workspace.Project{}, err
	}
	projects, err := decodeProjects(data)
	if err != nil {
		return workspace.Project{}, err
	}
	return findProject(projects, ref)
}
