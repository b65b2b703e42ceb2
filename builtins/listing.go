package builtins

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"bavini/vfs"
	"bavini/vpath"
)

// ANSI emphasis used for directory names in short and long listings.
const (
	ansiDirStart = "\x1b[1;34m"
	ansiReset    = "\x1b[0m"
)

type lsFlags struct {
	all  bool
	long bool
}

// parseLsArgs splits flags from targets. Only -a and -l (combinable) are
// flags; anything else is a target.
func parseLsArgs(args []string) (lsFlags, []string) {
	var flags lsFlags
	var targets []string
	for _, a := range args {
		if len(a) > 1 && a[0] == '-' && strings.Trim(a[1:], "al") == "" {
			flags.all = flags.all || strings.Contains(a, "a")
			flags.long = flags.long || strings.Contains(a, "l")
			continue
		}
		targets = append(targets, a)
	}
	return flags, targets
}

// modeString renders advisory mode bits the way ls -l does.
func modeString(isDir bool, mode uint32) string {
	var b strings.Builder
	if isDir {
		b.WriteByte('d')
	} else {
		b.WriteByte('-')
	}
	perms := "rwxrwxrwx"
	for i := 0; i < 9; i++ {
		if mode&(1<<uint(8-i)) != 0 {
			b.WriteByte(perms[i])
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// lsDate renders a stat timestamp as "Mon DD HH:MM".
func lsDate(millis int64) string {
	return time.UnixMilli(millis).Format("Jan 02 15:04")
}

var cmdLs = &Command{
	Name:        "ls",
	Description: "List directory contents",
	Usage:       "ls [-a] [-l] [path...]",
	Execute: func(args []string, ctx *Context) Result {
		flags, targets := parseLsArgs(args)
		if len(targets) == 0 {
			targets = []string{ctx.State.Cwd}
		}

		exitCode := ExitOK
		for i, target := range targets {
			if ctx.Cancelled() {
				return aborted()
			}
			p, err := ctx.ResolveSecure(target)
			if err != nil {
				ctx.errorf("ls", target, "Permission denied")
				exitCode = ExitFailure
				continue
			}
			if len(targets) > 1 {
				if i > 0 {
					ctx.Stdout("\n")
				}
				ctx.Stdout(target + ":\n")
			}
			if err := listOne(ctx, p, flags); err != nil {
				ctx.errorf("ls", target, Failure(err))
				exitCode = ExitFailure
			}
		}
		return Result{ExitCode: exitCode}
	},
}

func listOne(ctx *Context, p string, flags lsFlags) error {
	st, err := ctx.Mounts.Stat(ctx.Ctx, p)
	if err != nil {
		return err
	}

	// A file target lists itself.
	if st.IsFile {
		name := vpath.Basename(p)
		if flags.long {
			ctx.Stdout(longLine(name, st))
		} else {
			ctx.Stdout(name + "\n")
		}
		return nil
	}

	entries, err := ctx.Mounts.ReadDirTypes(ctx.Ctx, p)
	if err != nil {
		return err
	}
	if !flags.all {
		visible := entries[:0]
		for _, e := range entries {
			if !strings.HasPrefix(e.Name, ".") {
				visible = append(visible, e)
			}
		}
		entries = visible
	}
	// Directories first, then alphabetical within each group.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})

	if !flags.long {
		for _, e := range entries {
			name := e.Name
			if e.IsDir {
				name = ansiDirStart + name + ansiReset
			}
			ctx.Stdout(name + "\n")
		}
		return nil
	}

	for _, e := range entries {
		est, err := ctx.Mounts.Stat(ctx.Ctx, vpath.Join(p, e.Name))
		if err != nil {
			// Synthetic mount-point entries may have no stat record in
			// this backend; present them as bare directories.
			est = vfs.FileStat{IsDir: e.IsDir, IsFile: e.IsFile, Mode: vfs.DefaultDirMode}
		}
		ctx.Stdout(longLine(e.Name, est))
	}
	return nil
}

func longLine(name string, st vfs.FileStat) string {
	if st.IsDir {
		name = ansiDirStart + name + ansiReset
	}
	return fmt.Sprintf("%s %-8d %s %s\n", modeString(st.IsDir, st.Mode), st.Size, lsDate(st.Mtime), name)
}

var cmdCat = &Command{
	Name:        "cat",
	Description: "Concatenate files to standard output",
	Usage:       "cat [file...]",
	Execute: func(args []string, ctx *Context) Result {
		if len(args) == 0 {
			if ctx.HasStdin {
				ctx.Stdout(ctx.Stdin)
			}
			return ok()
		}

		exitCode := ExitOK
		for _, arg := range args {
			if ctx.Cancelled() {
				return aborted()
			}
			p, err := ctx.ResolveSecure(arg)
			if err != nil {
				ctx.errorf("cat", arg, "Permission denied")
				exitCode = ExitFailure
				continue
			}
			st, err := ctx.Mounts.Stat(ctx.Ctx, p)
			if err != nil {
				ctx.errorf("cat", arg, Failure(err))
				exitCode = ExitFailure
				continue
			}
			if st.IsDir {
				ctx.errorf("cat", arg, "Is a directory")
				exitCode = ExitFailure
				continue
			}
			text, err := ctx.Mounts.ReadTextFile(ctx.Ctx, p)
			if err != nil {
				ctx.errorf("cat", arg, Failure(err))
				exitCode = ExitFailure
				continue
			}
			if text != "" && !strings.HasSuffix(text, "\n") {
				text += "\n"
			}
			ctx.Stdout(text)
		}
		return Result{ExitCode: exitCode}
	},
}
