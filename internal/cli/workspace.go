// pattern: Imperative Shell

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"shellflow/internal/events"
	"shellflow/internal/instance"
)

// createTimeout covers worktree checkout of large repositories.
const createTimeout = 120 * time.Second

// RegisterWorkspaceCommands registers the workspace command group.
func RegisterWorkspaceCommands(group *Group, base Delegate) {
	group.AddCommand(&Command{
		Name:    "create",
		Summary: "Create a workspace (generated name if omitted)",
		Usage:   "Usage: shellflow workspace create <project> [name]",
		Run: func(args []string) error {
			d := base
			d.ClientTimeout = createTimeout
			if len(args) < 1 || len(args) > 2 {
				d.Usage("Usage: shellflow workspace create <project> [name]")
				return nil
			}
			var name string
			if len(args) == 2 {
				name = args[1]
			}
			d.Run(func(c *instance.Client) error {
				p, err := resolveProject(c, args[0])
				if err != nil {
					return err
				}
				data, err := c.CreateWorkspace(p.ID, name)
				if err != nil {
					return err
				}
				return d.PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "delete",
		Summary: "Delete a workspace, its worktree and its branch",
		Usage:   "Usage: shellflow workspace delete <project> <workspace>",
		Run: func(args []string) error {
			d := base
			if len(args) != 2 {
				d.Usage("Usage: shellflow workspace delete <project> <workspace>")
				return nil
			}
			d.Run(func(c *instance.Client) error {
				p, err := resolveProject(c, args[0])
				if err != nil {
					return err
				}
				ws, err := findWorkspace(p, args[1])
				if err != nil {
					return err
				}
				return c.DeleteWorkspace(p.ID, ws.ID)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "changes",
		Summary: "Print the changed files of a workspace",
		Usage:   "Usage: shellflow workspace changes <project> <workspace>",
		Run: func(args []string) error {
			d := base
			if len(args) != 2 {
				d.Usage("Usage: shellflow workspace changes <project> <workspace>")
				return nil
			}
			d.Run(func(c *instance.Client) error {
				p, err := resolveProject(c, args[0])
				if err != nil {
					return err
				}
				ws, err := findWorkspace(p, args[1])
				if err != nil {
					return err
				}
				data, err := c.ChangedFiles(p.ID, ws.ID)
				if err != nil {
					return err
				}
				return d.PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "watch",
		Summary: "Stream workspace events as JSON lines",
		Usage:   "Usage: shellflow workspace watch [<project> <workspace>] [--count N]",
		Run: func(args []string) error {
			d := base
			usage := "Usage: shellflow workspace watch [<project> <workspace>] [--count N]"

			fs := flag.NewFlagSet("workspace watch", flag.ContinueOnError)
			d.setDefaults()
			fs.SetOutput(d.Stderr)
			count := fs.IntP("count", "n", 0, "exit after N events (0 streams until interrupted)")
			if err := fs.Parse(args); err != nil {
				d.Usage(usage)
				return nil
			}
			pos := fs.Args()
			if len(pos) != 0 && len(pos) != 2 {
				d.Usage(usage)
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d.Run(func(c *instance.Client) error {
				var workspaceID string
				if len(pos) == 2 {
					p, err := resolveProject(c, pos[0])
					if err != nil {
						return err
					}
					ws, err := findWorkspace(p, pos[1])
					if err != nil {
						return err
					}
					workspaceID = ws.ID
				}
				return watchEvents(ctx, c, workspaceID, *count, &d)
			})
			return nil
		},
	})
}

// errWatchDone stops the stream once the requested number of events arrived.
var errWatchDone = errors.New("watch: event count reached")

func watchEvents(ctx context.Context, c *instance.Client, workspaceID string, count int, d *Delegate) error {
	seen := 0
	err := c.Watch(ctx, workspaceID, func(env events.Envelope) error {
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if err := printLine(d.Stdout, data); err != nil {
			return err
		}
		seen++
		if count > 0 && seen >= count {
			return errWatchDone
		}
		return nil
	})
	if errors.Is(err, errWatchDone) {
		return nil
	}
	return err
}
