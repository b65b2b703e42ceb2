package builtins

import (
	"fmt"

	"bavini/util"
)

var cmdClear = &Command{
	Name:        "clear",
	Description: "Clear the terminal screen",
	Usage:       "clear",
	Execute: func(args []string, ctx *Context) Result {
		ctx.Stdout("\x1b[2J\x1b[H")
		return ok()
	},
}

var cmdHelp = &Command{
	Name:        "help",
	Description: "List built-in commands",
	Usage:       "help [command]",
	Execute: func(args []string, ctx *Context) Result {
		if ctx.Registry == nil {
			return ok()
		}
		if len(args) == 0 {
			ctx.Stdout("Built-in commands:\n")
			for _, name := range ctx.Registry.Names() {
				cmd, _ := ctx.Registry.Get(name)
				ctx.Stdout(fmt.Sprintf("  %-10s %s\n", name, cmd.Description))
			}
			return ok()
		}
		cmd, found := ctx.Registry.Get(args[0])
		if !found {
			ctx.errorf("help", args[0], "no such builtin")
			return fail()
		}
		ctx.Stdout(fmt.Sprintf("%s - %s\nusage: %s\n", cmd.Name, cmd.Description, cmd.Usage))
		return ok()
	},
}

var cmdHistory = &Command{
	Name:        "history",
	Description: "Print the command history",
	Usage:       "history",
	Execute: func(args []string, ctx *Context) Result {
		for i, entry := range ctx.State.History {
			ctx.Stdout(fmt.Sprintf("%5d  %s\n", i+1, entry))
		}
		return ok()
	},
}

var cmdMount = &Command{
	Name:        "mount",
	Description: "Print the mount table",
	Usage:       "mount",
	Execute: func(args []string, ctx *Context) Result {
		ctx.Stdout(ctx.Mounts.String())
		return ok()
	},
}

var cmdDf = &Command{
	Name:        "df",
	Description: "Report mount capabilities and limits",
	Usage:       "df",
	Execute: func(args []string, ctx *Context) Result {
		ctx.Stdout(fmt.Sprintf("%-20s %-10s %-6s %s\n", "Mounted on", "Type", "Mode", "Capacity"))
		for _, mt := range ctx.Mounts.Mounts() {
			caps := mt.Backend.Capabilities()
			kind := "volatile"
			if caps.Persistent {
				kind = "persistent"
			}
			mode := "rw"
			if mt.ReadOnly {
				mode = "ro"
			}
			capacity := "unlimited"
			if caps.MaxStorage > 0 {
				capacity = util.HumanSize(caps.MaxStorage)
			}
			ctx.Stdout(fmt.Sprintf("%-20s %-10s %-6s %s\n", mt.Path, kind, mode, capacity))
		}
		return ok()
	},
}
