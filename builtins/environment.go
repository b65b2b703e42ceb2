package builtins

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"bavini/shell"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var cmdEnv = &Command{
	Name:        "env",
	Description: "Print the environment",
	Usage:       "env",
	Execute: func(args []string, ctx *Context) Result {
		keys := make([]string, 0, len(ctx.State.Env))
		for k := range ctx.State.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ctx.Stdout(fmt.Sprintf("%s=%s\n", k, ctx.State.Env[k]))
		}
		return ok()
	},
}

// stripQuotes removes one pair of matching surrounding quotes.
func stripQuotes(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if first == last && (first == '"' || first == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

var cmdExport = &Command{
	Name:        "export",
	Description: "Set environment variables",
	Usage:       "export [NAME=value...]",
	Execute: func(args []string, ctx *Context) Result {
		if len(args) == 0 {
			keys := make([]string, 0, len(ctx.State.Env))
			for k := range ctx.State.Env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				ctx.Stdout(fmt.Sprintf("export %s=%q\n", k, ctx.State.Env[k]))
			}
			return ok()
		}

		updates := map[string]string{}
		for _, arg := range args {
			name, value, found := strings.Cut(arg, "=")
			if !identifierRe.MatchString(name) {
				ctx.Stderr(fmt.Sprintf("export: `%s': not a valid identifier\n", arg))
				return fail()
			}
			if !found {
				// Plain "export NAME" marks an existing variable; nothing
				// to record in a single-namespace environment.
				continue
			}
			updates[name] = stripQuotes(value)
		}
		return Result{Updates: shell.Updates{Env: updates}}
	},
}
