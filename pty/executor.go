// Package pty implements the virtual terminal: the pipe executor that
// runs parsed pipelines against the filesystem, and the line-editing
// state machine that turns raw keystrokes into command executions.
package pty

import (
	"context"
	"fmt"
	"strings"

	"bavini/builtins"
	"bavini/log"
	"bavini/mount"
	"bavini/pipeline"
	"bavini/shell"
	"bavini/vpath"
)

// ExecResult is the outcome of one pipeline.
type ExecResult struct {
	ExitCode int
	Updates  shell.Updates
}

// Executor stages pipeline commands, threading each stage's captured
// stdout into the next stage's stdin and applying file redirections at
// the edges.
type Executor struct {
	mounts   *mount.Manager
	registry *builtins.Registry
	logger   log.LibraryLogger
}

// NewExecutor builds an executor over the shared mount manager and
// registry. A nil logger is replaced by NoOp.
func NewExecutor(mounts *mount.Manager, registry *builtins.Registry, logger log.LibraryLogger) *Executor {
	if logger == nil {
		logger = log.NoOpLogger{}
	}
	return &Executor{mounts: mounts, registry: registry, logger: logger}
}

// Execute runs a parsed pipeline. stdout receives only what the last
// stage emits when no output redirect is set; stderr always reaches the
// caller. State updates accumulate across stages and are returned, never
// applied.
func (e *Executor) Execute(ctx context.Context, p *pipeline.Pipeline, state shell.State, stdout, stderr func(string), cols, rows int) ExecResult {
	var updates shell.Updates

	currentInput := ""
	haveInput := false
	if p.InputRedirect != nil {
		text, err := e.mounts.ReadTextFile(ctx, resolveAgainst(state, p.InputRedirect.File))
		if err != nil {
			stderr(fmt.Sprintf("%s: %s\n", p.InputRedirect.File, readableError(err)))
			return ExecResult{ExitCode: builtins.ExitFailure}
		}
		currentInput = text
		haveInput = true
	}

	exitCode := builtins.ExitOK
	for i, cmd := range p.Commands {
		if ctx.Err() != nil {
			return ExecResult{ExitCode: builtins.ExitInterrupted, Updates: updates}
		}
		last := i == len(p.Commands)-1
		forward := last && p.OutputRedirect == nil

		var stageOut strings.Builder
		stageCtx := &builtins.Context{
			Ctx:    ctx,
			Mounts: e.mounts,
			State:  shell.ApplyUpdates(state, updates),
			Stdout: func(s string) {
				stageOut.WriteString(s)
				if forward {
					stdout(s)
				}
			},
			Stderr:   stderr,
			Cols:     cols,
			Rows:     rows,
			Stdin:    currentInput,
			HasStdin: haveInput,
			Registry: e.registry,
		}

		handler, found := e.registry.Get(cmd.Command)
		if !found {
			stderr(fmt.Sprintf("%s: command not found\n", cmd.Command))
			exitCode = builtins.ExitNotFound
			currentInput = ""
			haveInput = true
			continue
		}

		e.logger.Debug("stage %d: %s", i, cmd.Command)
		res := handler.Execute(cmd.Args, stageCtx)
		exitCode = res.ExitCode
		updates = shell.MergeUpdates(updates, res.Updates)

		if exitCode == builtins.ExitInterrupted {
			return ExecResult{ExitCode: exitCode, Updates: updates}
		}
		// A failing single command ends the pipeline; in a multi-stage
		// pipeline later stages still run and the last exit code wins.
		if exitCode != builtins.ExitOK && len(p.Commands) == 1 {
			return ExecResult{ExitCode: exitCode, Updates: updates}
		}

		currentInput = stageOut.String()
		haveInput = true
	}

	if p.OutputRedirect != nil && currentInput != "" {
		if err := e.writeRedirect(ctx, state, updates, p.OutputRedirect, currentInput); err != nil {
			stderr(fmt.Sprintf("%s: %s\n", p.OutputRedirect.File, readableError(err)))
			return ExecResult{ExitCode: builtins.ExitFailure, Updates: updates}
		}
	}

	return ExecResult{ExitCode: exitCode, Updates: updates}
}

// writeRedirect applies ">" or ">>" semantics for the collected output.
func (e *Executor) writeRedirect(ctx context.Context, state shell.State, updates shell.Updates, r *pipeline.Redirect, content string) error {
	target := resolveAgainst(shell.ApplyUpdates(state, updates), r.File)
	if r.Kind == ">>" {
		if existing, err := e.mounts.ReadTextFile(ctx, target); err == nil {
			content = existing + content
		}
	}
	return e.mounts.WriteTextFile(ctx, target, content)
}

// ExecuteLine expands, parses and runs one command line. Lines without
// pipe operators skip pipeline parsing and dispatch the single command
// directly.
func (e *Executor) ExecuteLine(ctx context.Context, line string, state shell.State, stdout, stderr func(string), cols, rows int) ExecResult {
	expanded := shell.ExpandEnvVars(line, state.Env)

	if !pipeline.HasPipeOperators(expanded) {
		tokens := pipeline.Tokenize(expanded)
		if len(tokens) == 0 {
			return ExecResult{ExitCode: state.LastExitCode}
		}
		simple := &pipeline.Pipeline{
			Commands: []pipeline.Command{{
				Raw:     strings.TrimSpace(expanded),
				Command: tokens[0],
				Args:    tokens[1:],
			}},
			IsSimple: true,
		}
		return e.Execute(ctx, simple, state, stdout, stderr, cols, rows)
	}

	parsed, err := pipeline.Parse(expanded)
	if err != nil {
		stderr(fmt.Sprintf("bavini: %v\n", err))
		return ExecResult{ExitCode: builtins.ExitFailure}
	}
	return e.Execute(ctx, parsed, state, stdout, stderr, cols, rows)
}

// resolveAgainst resolves a redirect target against the working directory.
func resolveAgainst(state shell.State, file string) string {
	return vpath.Resolve(state.Cwd, file)
}

// readableError trims the backend wrapping down to the POSIX reason.
func readableError(err error) string {
	return builtins.Failure(err)
}
