// pattern: Imperative Shell

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"shellflow/internal/instance"
)

// ResolveDataDir returns the directory holding lock, port, state and log
// files. An explicit configDir wins; otherwise ~/.config/shellflow.
func ResolveDataDir(configDir string) string {
	if configDir != "" {
		return configDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "shellflow")
	}
	return filepath.Join(home, ".config", "shellflow")
}

// BuildApp creates the CLI application with all commands and groups.
func BuildApp(version string, configDir string) *App {
	return buildApp(version, Delegate{ConfigDir: configDir})
}

// buildApp wires every command to copies of base, so tests can redirect
// output and exit handling.
func buildApp(version string, base Delegate) *App {
	app := NewApp(version)
	if base.Stderr != nil {
		app.Stderr = base.Stderr
	}
	if base.ExitFunc != nil {
		app.ExitFunc = base.ExitFunc
	}

	app.AddCommand(&Command{
		Name:    "cleanup",
		Summary: "Remove stale lock/port files from a crashed instance",
		Usage:   "Usage: shellflow cleanup",
		Run: func(args []string) error {
			d := base
			runCleanup(&d)
			return nil
		},
	})

	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: shellflow version",
		Run: func(args []string) error {
			d := base
			d.setDefaults()
			_, err := fmt.Fprintln(d.Stdout, version)
			return err
		},
	})

	RegisterProjectCommands(app.AddGroup("project", "Open, list and close projects"), base)
	RegisterWorkspaceCommands(app.AddGroup("workspace", "Create, delete and inspect workspaces"), base)

	return app
}

func runCleanup(d *Delegate) {
	d.setDefaults()
	err := instance.RemoveStale(ResolveDataDir(d.ConfigDir))
	if errors.Is(err, instance.ErrAlreadyRunning) {
		fmt.Fprintf(d.Stderr, "Error: a shellflow instance appears to be running. Stop it first.\n")
		d.ExitFunc(1)
		return
	}
	if err != nil {
		d.Fail(err)
		return
	}
	fmt.Fprintln(d.Stdout, "Cleaned up stale lock and port files.")
}

// printLine is used by streaming commands that emit one JSON value per line.
func printLine(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n"))
	return err
}
