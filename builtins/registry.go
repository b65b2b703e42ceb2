// Package builtins implements the shell's built-in commands and the
// registry the pipe executor dispatches through. A command receives its
// arguments and a Context and reports an exit code plus optional shell
// state updates; it never mutates shell state directly.
package builtins

import (
	"sort"

	"bavini/shell"
)

// Result is what a command execution produces.
type Result struct {
	ExitCode int
	Updates  shell.Updates
}

// Command is one registered built-in.
type Command struct {
	Name        string
	Description string
	Usage       string
	Execute     func(args []string, ctx *Context) Result
}

// Registry maps command names to handlers.
type Registry struct {
	commands map[string]*Command
}

// NewRegistry builds a registry with every built-in registered.
func NewRegistry() *Registry {
	r := &Registry{commands: map[string]*Command{}}
	for _, cmd := range []*Command{
		cmdCd, cmdPwd, cmdLs, cmdCat, cmdEcho,
		cmdMkdir, cmdRm, cmdCp, cmdMv, cmdTouch,
		cmdClear, cmdEnv, cmdExport, cmdHelp,
		cmdGrep, cmdHead, cmdWc, cmdHistory,
		cmdMount, cmdDf,
	} {
		r.Register(cmd)
	}
	return r
}

// Register adds or replaces a command.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
}

// Get looks up a command by name.
func (r *Registry) Get(name string) (*Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns all registered names sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
