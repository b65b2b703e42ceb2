package shell

import (
	"regexp"
	"strings"

	"bavini/vpath"
)

var (
	bracedVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	bareVarRe   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// ExpandEnvVars substitutes environment references in input. ${NAME} forms
// go first, then $NAME, then a leading tilde. Unknown variables expand to
// the empty string. Expansion runs on the whole line before parsing, so
// quotes do not shield references.
func ExpandEnvVars(input string, env map[string]string) string {
	out := bracedVarRe.ReplaceAllStringFunc(input, func(m string) string {
		return env[m[2:len(m)-1]]
	})
	out = bareVarRe.ReplaceAllStringFunc(out, func(m string) string {
		return env[m[1:]]
	})
	if out == "~" || strings.HasPrefix(out, "~/") {
		home := env["HOME"]
		if home == "" {
			home = "/home"
		}
		out = home + out[1:]
	}
	return out
}

// PromptString renders the prompt for the current state. The working
// directory is abbreviated with ~ when it sits inside HOME.
func PromptString(s State) string {
	user := s.Env["USER"]
	if user == "" {
		user = "user"
	}
	home := s.Env["HOME"]
	cwd := s.Cwd
	if home != "" {
		if cwd == home {
			cwd = "~"
		} else if vpath.IsInside(home, cwd) {
			cwd = "~" + cwd[len(home):]
		}
	}
	return user + "@bavini:" + cwd + "$ "
}
