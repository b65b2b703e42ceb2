package builtins

import (
	"context"
	"errors"
	"fmt"

	"bavini/mount"
	"bavini/shell"
	"bavini/vfs"
	"bavini/vpath"
)

// Context carries everything a built-in may touch during one execution.
type Context struct {
	// Ctx is the cancellation signal for the running pipeline. Commands
	// check it at natural yield points.
	Ctx context.Context

	// Mounts is the shared mount manager. Commands never change the
	// mount topology.
	Mounts *mount.Manager

	// State is a snapshot of the shell state at dispatch time.
	State shell.State

	// Stdout and Stderr emit output. The pipe executor decides where
	// stdout actually lands.
	Stdout func(string)
	Stderr func(string)

	// Cols and Rows are the advisory terminal dimensions.
	Cols int
	Rows int

	// Stdin is the captured output of the previous pipeline stage.
	// HasStdin distinguishes an empty pipe from no pipe at all.
	Stdin    string
	HasStdin bool

	// Registry is the dispatching registry; help introspects it.
	Registry *Registry
}

// Resolve turns a command argument into a canonical absolute path
// relative to the working directory.
func (c *Context) Resolve(arg string) string {
	return vpath.Resolve(c.State.Cwd, arg)
}

// ResolveSecure validates arg before resolving it. The raw argument is
// checked for NUL bytes and traversal sequences; rejected input never
// reaches a backend.
func (c *Context) ResolveSecure(arg string) (string, error) {
	if _, err := vpath.ValidatePath(arg, "/"); err != nil {
		return "", err
	}
	return vpath.Resolve(c.State.Cwd, arg), nil
}

// Cancelled reports whether the pipeline has been aborted.
func (c *Context) Cancelled() bool {
	return c.Ctx != nil && c.Ctx.Err() != nil
}

// errorf writes a POSIX-shaped "{cmd}: {arg}: {reason}" line to stderr.
func (c *Context) errorf(cmd, arg, reason string) {
	c.Stderr(fmt.Sprintf("%s: %s: %s\n", cmd, arg, reason))
}

// Failure maps a backend or security error onto the user-visible reason
// string. Unknown errors fall through with their raw message.
func Failure(err error) string {
	var secErr *vpath.SecurityError
	if errors.As(err, &secErr) {
		return "Permission denied"
	}
	switch {
	case errors.Is(err, vfs.ErrNotFound):
		return "No such file or directory"
	case errors.Is(err, vfs.ErrIsDir):
		return "Is a directory"
	case errors.Is(err, vfs.ErrNotDir):
		return "Not a directory"
	case errors.Is(err, vfs.ErrNotEmpty):
		return "Directory not empty"
	case errors.Is(err, vfs.ErrAccessDenied):
		return "Permission denied"
	case errors.Is(err, vfs.ErrExists):
		return "File exists"
	case errors.Is(err, vfs.ErrInvalid):
		return "Invalid argument"
	default:
		return err.Error()
	}
}

// Exit codes shared across the shell.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitNotFound    = 127
	ExitInterrupted = 130
)

func ok() Result      { return Result{ExitCode: ExitOK} }
func fail() Result    { return Result{ExitCode: ExitFailure} }
func aborted() Result { return Result{ExitCode: ExitInterrupted} }

// shellCwd builds the state update for a directory change.
func shellCwd(target string) shell.Updates {
	return shell.Updates{Cwd: &target}
}
