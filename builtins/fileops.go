package builtins

import (
	"strings"

	"bavini/vfs"
	"bavini/vpath"
)

var cmdMkdir = &Command{
	Name:        "mkdir",
	Description: "Create directories",
	Usage:       "mkdir [-p] dir...",
	Execute: func(args []string, ctx *Context) Result {
		recursive := false
		var targets []string
		for _, a := range args {
			if a == "-p" {
				recursive = true
				continue
			}
			targets = append(targets, a)
		}
		if len(targets) == 0 {
			ctx.Stderr("mkdir: missing operand\n")
			return fail()
		}

		exitCode := ExitOK
		for _, arg := range targets {
			err := ctx.Mounts.Mkdir(ctx.Ctx, ctx.Resolve(arg), vfs.MkdirOptions{Recursive: recursive})
			if err != nil {
				ctx.errorf("mkdir", arg, Failure(err))
				exitCode = ExitFailure
			}
		}
		return Result{ExitCode: exitCode}
	},
}

type rmFlags struct {
	recursive bool
	force     bool
}

func parseRmArgs(args []string) (rmFlags, []string) {
	var flags rmFlags
	var targets []string
	for _, a := range args {
		if len(a) > 1 && a[0] == '-' && strings.Trim(a[1:], "rRf") == "" {
			flags.recursive = flags.recursive || strings.ContainsAny(a, "rR")
			flags.force = flags.force || strings.Contains(a, "f")
			continue
		}
		targets = append(targets, a)
	}
	return flags, targets
}

var cmdRm = &Command{
	Name:        "rm",
	Description: "Remove files or directories",
	Usage:       "rm [-rf] path...",
	Execute: func(args []string, ctx *Context) Result {
		flags, targets := parseRmArgs(args)
		if len(targets) == 0 {
			ctx.Stderr("rm: missing operand\n")
			return fail()
		}

		exitCode := ExitOK
		for _, arg := range targets {
			if ctx.Cancelled() {
				return aborted()
			}
			p := ctx.Resolve(arg)
			st, err := ctx.Mounts.Stat(ctx.Ctx, p)
			if err != nil {
				if !flags.force {
					ctx.errorf("rm", arg, Failure(err))
					exitCode = ExitFailure
				}
				continue
			}
			if st.IsDir {
				if !flags.recursive {
					ctx.errorf("rm", arg, "Is a directory")
					exitCode = ExitFailure
					continue
				}
				err = ctx.Mounts.Rmdir(ctx.Ctx, p, vfs.RmdirOptions{Recursive: true})
			} else {
				err = ctx.Mounts.Unlink(ctx.Ctx, p)
			}
			if err != nil && !flags.force {
				ctx.errorf("rm", arg, Failure(err))
				exitCode = ExitFailure
			}
		}
		return Result{ExitCode: exitCode}
	},
}

// destFor computes the final path for one source when the destination is
// an existing directory.
func destFor(ctx *Context, dest, src string) string {
	if st, err := ctx.Mounts.Stat(ctx.Ctx, dest); err == nil && st.IsDir {
		return vpath.Join(dest, vpath.Basename(src))
	}
	return dest
}

// copyTree replicates a directory through the mount manager, so the copy
// may span mounts.
func copyTree(ctx *Context, src, dest string) error {
	if err := ctx.Mounts.Mkdir(ctx.Ctx, dest, vfs.MkdirOptions{Recursive: true}); err != nil {
		return err
	}
	entries, err := ctx.Mounts.ReadDirTypes(ctx.Ctx, src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if ctx.Cancelled() {
			return ctx.Ctx.Err()
		}
		from := vpath.Join(src, e.Name)
		to := vpath.Join(dest, e.Name)
		if e.IsDir {
			if err := copyTree(ctx, from, to); err != nil {
				return err
			}
			continue
		}
		if err := ctx.Mounts.CopyFile(ctx.Ctx, from, to); err != nil {
			return err
		}
	}
	return nil
}

var cmdCp = &Command{
	Name:        "cp",
	Description: "Copy files or directories",
	Usage:       "cp [-r] source... dest",
	Execute: func(args []string, ctx *Context) Result {
		recursive := false
		var operands []string
		for _, a := range args {
			if a == "-r" || a == "-R" {
				recursive = true
				continue
			}
			operands = append(operands, a)
		}
		if len(operands) < 2 {
			ctx.Stderr("cp: missing operand\n")
			return fail()
		}

		sources := operands[:len(operands)-1]
		destArg := operands[len(operands)-1]
		dest := ctx.Resolve(destArg)

		if len(sources) > 1 {
			st, err := ctx.Mounts.Stat(ctx.Ctx, dest)
			if err != nil || !st.IsDir {
				ctx.errorf("cp", destArg, "Not a directory")
				return fail()
			}
		}

		exitCode := ExitOK
		for _, srcArg := range sources {
			if ctx.Cancelled() {
				return aborted()
			}
			src := ctx.Resolve(srcArg)
			st, err := ctx.Mounts.Stat(ctx.Ctx, src)
			if err != nil {
				ctx.errorf("cp", srcArg, Failure(err))
				exitCode = ExitFailure
				continue
			}
			target := destFor(ctx, dest, src)
			if st.IsDir {
				if !recursive {
					ctx.errorf("cp", srcArg, "Is a directory")
					exitCode = ExitFailure
					continue
				}
				err = copyTree(ctx, src, target)
			} else {
				err = ctx.Mounts.CopyFile(ctx.Ctx, src, target)
			}
			if err != nil {
				ctx.errorf("cp", srcArg, Failure(err))
				exitCode = ExitFailure
			}
		}
		return Result{ExitCode: exitCode}
	},
}

var cmdMv = &Command{
	Name:        "mv",
	Description: "Move or rename files and directories",
	Usage:       "mv source... dest",
	Execute: func(args []string, ctx *Context) Result {
		if len(args) < 2 {
			ctx.Stderr("mv: missing operand\n")
			return fail()
		}
		sources := args[:len(args)-1]
		destArg := args[len(args)-1]
		dest := ctx.Resolve(destArg)

		if len(sources) > 1 {
			st, err := ctx.Mounts.Stat(ctx.Ctx, dest)
			if err != nil || !st.IsDir {
				ctx.errorf("mv", destArg, "Not a directory")
				return fail()
			}
		}

		exitCode := ExitOK
		for _, srcArg := range sources {
			if ctx.Cancelled() {
				return aborted()
			}
			src := ctx.Resolve(srcArg)
			if err := ctx.Mounts.Rename(ctx.Ctx, src, destFor(ctx, dest, src)); err != nil {
				ctx.errorf("mv", srcArg, Failure(err))
				exitCode = ExitFailure
			}
		}
		return Result{ExitCode: exitCode}
	},
}

var cmdTouch = &Command{
	Name:        "touch",
	Description: "Create empty files or refresh timestamps",
	Usage:       "touch file...",
	Execute: func(args []string, ctx *Context) Result {
		if len(args) == 0 {
			ctx.Stderr("touch: missing operand\n")
			return fail()
		}
		exitCode := ExitOK
		for _, arg := range args {
			p := ctx.Resolve(arg)
			ok, err := ctx.Mounts.Exists(ctx.Ctx, p)
			if err == nil && ok {
				// Round trip to refresh mtime and atime.
				var data []byte
				if data, err = ctx.Mounts.ReadFile(ctx.Ctx, p); err == nil {
					err = ctx.Mounts.WriteFile(ctx.Ctx, p, data, vfs.WriteOptions{})
				}
			} else if err == nil {
				err = ctx.Mounts.WriteFile(ctx.Ctx, p, nil, vfs.WriteOptions{})
			}
			if err != nil {
				ctx.errorf("touch", arg, Failure(err))
				exitCode = ExitFailure
			}
		}
		return Result{ExitCode: exitCode}
	},
}
