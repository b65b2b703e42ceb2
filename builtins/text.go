package builtins

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var cmdEcho = &Command{
	Name:        "echo",
	Description: "Print arguments",
	Usage:       "echo [-n] [arg...]",
	Execute: func(args []string, ctx *Context) Result {
		newline := true
		if len(args) > 0 && args[0] == "-n" {
			newline = false
			args = args[1:]
		}
		out := strings.Join(args, " ")
		if newline {
			out += "\n"
		}
		ctx.Stdout(out)
		return ok()
	},
}

// inputLines gathers the lines a filter command operates on: file
// arguments when present, stage stdin otherwise.
func inputLines(cmd string, args []string, ctx *Context) ([]string, bool) {
	if len(args) == 0 {
		if !ctx.HasStdin || ctx.Stdin == "" {
			return nil, true
		}
		return strings.Split(strings.TrimSuffix(ctx.Stdin, "\n"), "\n"), true
	}

	var lines []string
	allOK := true
	for _, arg := range args {
		p, err := ctx.ResolveSecure(arg)
		if err != nil {
			ctx.errorf(cmd, arg, "Permission denied")
			allOK = false
			continue
		}
		text, err := ctx.Mounts.ReadTextFile(ctx.Ctx, p)
		if err != nil {
			ctx.errorf(cmd, arg, Failure(err))
			allOK = false
			continue
		}
		if text != "" {
			lines = append(lines, strings.Split(strings.TrimSuffix(text, "\n"), "\n")...)
		}
	}
	return lines, allOK
}

var cmdGrep = &Command{
	Name:        "grep",
	Description: "Print lines matching a pattern",
	Usage:       "grep pattern [file...]",
	Execute: func(args []string, ctx *Context) Result {
		if len(args) == 0 {
			ctx.Stderr("grep: missing pattern\n")
			return fail()
		}
		re, err := regexp.Compile(args[0])
		if err != nil {
			ctx.errorf("grep", args[0], "Invalid pattern")
			return fail()
		}

		lines, readOK := inputLines("grep", args[1:], ctx)
		matched := false
		for _, line := range lines {
			if ctx.Cancelled() {
				return aborted()
			}
			if re.MatchString(line) {
				ctx.Stdout(line + "\n")
				matched = true
			}
		}
		if !readOK {
			return fail()
		}
		if !matched {
			return fail()
		}
		return ok()
	},
}

var cmdHead = &Command{
	Name:        "head",
	Description: "Print the first lines of input",
	Usage:       "head [-n count] [file...]",
	Execute: func(args []string, ctx *Context) Result {
		count := 10
		rest := args
		if len(args) >= 2 && args[0] == "-n" {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 0 {
				ctx.errorf("head", args[1], "Invalid argument")
				return fail()
			}
			count = n
			rest = args[2:]
		}

		lines, readOK := inputLines("head", rest, ctx)
		if count < len(lines) {
			lines = lines[:count]
		}
		for _, line := range lines {
			ctx.Stdout(line + "\n")
		}
		if !readOK {
			return fail()
		}
		return ok()
	},
}

var cmdWc = &Command{
	Name:        "wc",
	Description: "Count lines, words and bytes",
	Usage:       "wc [-lwc] [file...]",
	Execute: func(args []string, ctx *Context) Result {
		showLines, showWords, showBytes := true, true, true
		rest := args
		if len(args) > 0 && len(args[0]) > 1 && args[0][0] == '-' && strings.Trim(args[0][1:], "lwc") == "" {
			showLines = strings.Contains(args[0], "l")
			showWords = strings.Contains(args[0], "w")
			showBytes = strings.Contains(args[0], "c")
			rest = args[1:]
		}

		var text string
		if len(rest) == 0 {
			text = ctx.Stdin
		} else {
			var parts []string
			for _, arg := range rest {
				p, err := ctx.ResolveSecure(arg)
				if err != nil {
					ctx.errorf("wc", arg, "Permission denied")
					return fail()
				}
				content, err := ctx.Mounts.ReadTextFile(ctx.Ctx, p)
				if err != nil {
					ctx.errorf("wc", arg, Failure(err))
					return fail()
				}
				parts = append(parts, content)
			}
			text = strings.Join(parts, "")
		}

		lineCount := strings.Count(text, "\n")
		wordCount := len(strings.Fields(text))
		byteCount := len(text)

		var cols []string
		if showLines {
			cols = append(cols, fmt.Sprintf("%7d", lineCount))
		}
		if showWords {
			cols = append(cols, fmt.Sprintf("%7d", wordCount))
		}
		if showBytes {
			cols = append(cols, fmt.Sprintf("%7d", byteCount))
		}
		ctx.Stdout(strings.Join(cols, " ") + "\n")
		return ok()
	},
}
