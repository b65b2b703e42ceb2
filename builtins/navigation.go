package builtins

import "bavini/vpath"

// cd changes the working directory. "cd" and "cd ~" go home, "cd -" goes
// to OLDPWD, anything else resolves against the current directory.
var cmdCd = &Command{
	Name:        "cd",
	Description: "Change the working directory",
	Usage:       "cd [dir]",
	Execute: func(args []string, ctx *Context) Result {
		var target string
		switch {
		case len(args) == 0 || args[0] == "~":
			target = ctx.State.Env["HOME"]
			if target == "" {
				target = "/home"
			}
		case args[0] == "-":
			target = ctx.State.Env["OLDPWD"]
			if target == "" {
				ctx.Stderr("cd: OLDPWD not set\n")
				return fail()
			}
		default:
			target = ctx.Resolve(args[0])
		}

		target = vpath.Normalize(target, ctx.State.Cwd)
		st, err := ctx.Mounts.Stat(ctx.Ctx, target)
		if err != nil {
			ctx.errorf("cd", displayArg(args, target), Failure(err))
			return fail()
		}
		if !st.IsDir {
			ctx.errorf("cd", displayArg(args, target), "Not a directory")
			return fail()
		}
		return Result{Updates: shellCwd(target)}
	},
}

// displayArg prefers the user's own spelling in error messages.
func displayArg(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fallback
}

// pwd prints the working directory.
var cmdPwd = &Command{
	Name:        "pwd",
	Description: "Print the working directory",
	Usage:       "pwd",
	Execute: func(args []string, ctx *Context) Result {
		ctx.Stdout(ctx.State.Cwd + "\n")
		return ok()
	},
}
