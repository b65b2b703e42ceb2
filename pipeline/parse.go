package pipeline

import (
	"fmt"
	"strings"
)

// Command is one stage of a pipeline.
type Command struct {
	Raw     string
	Command string
	Args    []string
}

// Redirect names a redirection target. Kind is ">", ">>" or "<".
type Redirect struct {
	Kind string
	File string
}

// Pipeline is the parsed form of a command line. IsSimple holds exactly
// when there is a single command and no redirect.
type Pipeline struct {
	Commands       []Command
	OutputRedirect *Redirect
	InputRedirect  *Redirect
	IsSimple       bool
}

func newCommand(tokens []string) Command {
	cmd := Command{Raw: strings.Join(tokens, " ")}
	if len(tokens) > 0 {
		cmd.Command = tokens[0]
		cmd.Args = tokens[1:]
	}
	return cmd
}

// Parse turns a command line into a Pipeline. Expansion has already
// happened; the input is split on unquoted operators and folded into
// stages. ">" and ">>" consume the following segment's first token as the
// output file, "<" does the same for input without starting a new stage.
func Parse(input string) (*Pipeline, error) {
	if !HasPipeOperators(input) {
		tokens := Tokenize(input)
		if len(tokens) == 0 {
			return &Pipeline{IsSimple: true}, nil
		}
		return &Pipeline{
			Commands: []Command{newCommand(tokens)},
			IsSimple: true,
		}, nil
	}

	p := &Pipeline{}
	var current []string
	pendingRedirect := ""
	expectStage := false

	pushStage := func() {
		if len(current) > 0 {
			p.Commands = append(p.Commands, newCommand(current))
			current = nil
		}
	}

	for _, seg := range splitOperators(input) {
		if seg.op == "" {
			tokens := Tokenize(seg.text)
			if pendingRedirect != "" {
				if len(tokens) == 0 {
					return nil, fmt.Errorf("syntax error: missing redirect target after %q", pendingRedirect)
				}
				target := tokens[0]
				if pendingRedirect == "<" {
					p.InputRedirect = &Redirect{Kind: "<", File: target}
				} else {
					p.OutputRedirect = &Redirect{Kind: pendingRedirect, File: target}
				}
				pendingRedirect = ""
				tokens = tokens[1:]
			}
			if len(tokens) > 0 {
				expectStage = false
			}
			current = append(current, tokens...)
			continue
		}

		switch seg.op {
		case "|":
			if pendingRedirect != "" {
				return nil, fmt.Errorf("syntax error: missing redirect target after %q", pendingRedirect)
			}
			if len(current) == 0 {
				return nil, fmt.Errorf("syntax error near unexpected token %q", "|")
			}
			pushStage()
			expectStage = true
		case ">", ">>", "<":
			if pendingRedirect != "" {
				return nil, fmt.Errorf("syntax error near unexpected token %q", seg.op)
			}
			pendingRedirect = seg.op
		}
	}
	if pendingRedirect != "" {
		return nil, fmt.Errorf("syntax error: missing redirect target after %q", pendingRedirect)
	}
	if expectStage && len(current) == 0 {
		return nil, fmt.Errorf("syntax error: pipeline ends with %q", "|")
	}
	pushStage()

	if len(p.Commands) == 0 {
		return nil, fmt.Errorf("syntax error: empty pipeline")
	}
	return p, nil
}

// quoteToken wraps a token so Tokenize reproduces it byte for byte.
func quoteToken(tok string) string {
	if tok == "" {
		return "''"
	}
	if !strings.ContainsAny(tok, " \t|><'\"\\") {
		return tok
	}
	if !strings.Contains(tok, "'") {
		return "'" + tok + "'"
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(tok); i++ {
		if tok[i] == '"' || tok[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(tok[i])
	}
	b.WriteByte('"')
	return b.String()
}

// Format renders a pipeline back into a parseable command line.
// Parse(Format(p)) reproduces the commands and redirects.
func Format(p *Pipeline) string {
	var stages []string
	for _, cmd := range p.Commands {
		parts := []string{quoteToken(cmd.Command)}
		for _, a := range cmd.Args {
			parts = append(parts, quoteToken(a))
		}
		stages = append(stages, strings.Join(parts, " "))
	}
	out := strings.Join(stages, " | ")
	if p.InputRedirect != nil {
		out += " < " + quoteToken(p.InputRedirect.File)
	}
	if p.OutputRedirect != nil {
		out += " " + p.OutputRedirect.Kind + " " + quoteToken(p.OutputRedirect.File)
	}
	return out
}
