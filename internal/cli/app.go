// pattern: Functional Core

package cli

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
)

// Command represents a single CLI command with its metadata and handler.
type Command struct {
	Name    string
	Summary string
	Usage   string
	Run     func(args []string) error
}

// Group represents a group of related commands.
type Group struct {
	Name     string
	Summary  string
	Commands map[string]*Command
}

// App represents the top-level CLI application with groups and ungrouped commands.
type App struct {
	groups   map[string]*Group
	commands map[string]*Command
	version  string

	// Stderr receives help text. Defaults to os.Stderr.
	Stderr io.Writer
	// ExitFunc is called for unknown commands. Defaults to os.Exit.
	ExitFunc func(int)
}

// NewApp creates a new CLI application with the given version.
func NewApp(version string) *App {
	return &App{
		groups:   make(map[string]*Group),
		commands: make(map[string]*Command),
		version:  version,
		Stderr:   os.Stderr,
		ExitFunc: os.Exit,
	}
}

// AddGroup creates and registers a new command group.
func (a *App) AddGroup(name, summary string) *Group {
	g := &Group{
		Name:     name,
		Summary:  summary,
		Commands: make(map[string]*Command),
	}
	a.groups[name] = g
	return g
}

// AddCommand registers an ungrouped (top-level) command.
func (a *App) AddCommand(cmd *Command) {
	a.commands[cmd.Name] = cmd
}

// AddCommand registers a command in the group.
func (g *Group) AddCommand(cmd *Command) {
	g.Commands[cmd.Name] = cmd
}

// Execute dispatches the CLI arguments to the appropriate command.
// It returns true when no command was given and the daemon should run.
func (a *App) Execute(args []string) bool {
	if len(args) == 0 {
		return true
	}

	name := args[0]

	// Commands report their own errors and exit codes.
	if cmd, ok := a.commands[name]; ok {
		_ = cmd.Run(args[1:])
		return false
	}

	group, ok := a.groups[name]
	if !ok {
		a.PrintHelp(a.Stderr)
		a.ExitFunc(1)
		return false
	}

	if len(args) < 2 || isHelp(args[1]) || args[1] == "help" {
		group.PrintHelp(a.Stderr)
		return false
	}

	cmd, ok := group.Commands[args[1]]
	if !ok {
		group.PrintHelp(a.Stderr)
		a.ExitFunc(1)
		return false
	}
	if slices.ContainsFunc(args[2:], isHelp) {
		fmt.Fprintf(a.Stderr, "%s\n", cmd.Usage)
		return false
	}
	_ = cmd.Run(args[2:])
	return false
}

func isHelp(arg string) bool {
	return arg == "--help" || arg == "-h"
}

// PrintHelp prints the top-level help text.
func (a *App) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: shellflow [options] [command]\n\n")
	fmt.Fprintf(w, "Commands:\n")

	for _, name := range slices.Sorted(maps.Keys(a.commands)) {
		cmd := a.commands[name]
		fmt.Fprintf(w, "  %-10s %s\n", cmd.Name, cmd.Summary)
	}
	fmt.Fprintf(w, "  %-10s %s\n", "(none)", "Run the shellflow daemon")

	if len(a.groups) > 0 {
		fmt.Fprintf(w, "\nCommand Groups (requires running instance):\n")
		for _, name := range slices.Sorted(maps.Keys(a.groups)) {
			group := a.groups[name]
			fmt.Fprintf(w, "  %-10s %s\n", group.Name, group.Summary)
		}
	}

	fmt.Fprintf(w, "\nUse \"shellflow <group> help\" for group details.\n\n")
	fmt.Fprintf(w, "Options:\n")
}

// PrintHelp prints help for a specific group.
func (g *Group) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: shellflow %s <command>\n\n", g.Name)
	fmt.Fprintf(w, "Commands:\n")
	for _, name := range slices.Sorted(maps.Keys(g.Commands)) {
		cmd := g.Commands[name]
		fmt.Fprintf(w, "  %-10s %s\n", cmd.Name, cmd.Summary)
	}
	fmt.Fprintf(w, "\nUse \"shellflow %s <command> --help\" for command details.\n", g.Name)
}
