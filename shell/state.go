// Package shell holds the per-session shell state (cwd, environment,
// history, last exit code) and the expansion rules applied to command
// lines before parsing. State values are immutable: every update function
// returns a new state.
package shell

import (
	"encoding/json"
	"strings"
)

// MaxHistorySize bounds the in-memory history length.
const MaxHistorySize = 1000

// serializedHistoryLimit bounds how much history survives serialization.
const serializedHistoryLimit = 100

// State is the shell session tuple. Invariants: Cwd is canonical,
// Env["PWD"] always equals Cwd, and history holds no empty strings and no
// two consecutive equal entries.
type State struct {
	Cwd          string
	Env          map[string]string
	History      []string
	LastExitCode int
}

// Updates is a partial state change produced by a command or pipeline.
// Nil fields leave the corresponding part untouched.
type Updates struct {
	Cwd      *string
	Env      map[string]string
	ExitCode *int
	History  []string
}

// NewState builds a state with the default environment, then applies
// overrides. Cwd defaults to HOME.
func NewState(overrides map[string]string) State {
	env := map[string]string{
		"HOME":   "/home",
		"PATH":   "/usr/bin:/bin",
		"PWD":    "/",
		"USER":   "user",
		"SHELL":  "/bin/bash",
		"TERM":   "xterm-256color",
		"LANG":   "en_US.UTF-8",
		"EDITOR": "vim",
	}
	for k, v := range overrides {
		env[k] = v
	}
	st := State{Cwd: env["HOME"], Env: env}
	st.Env["PWD"] = st.Cwd
	return st
}

// clone copies the state so updates never alias the original maps.
func (s State) clone() State {
	env := make(map[string]string, len(s.Env))
	for k, v := range s.Env {
		env[k] = v
	}
	hist := make([]string, len(s.History))
	copy(hist, s.History)
	return State{Cwd: s.Cwd, Env: env, History: hist, LastExitCode: s.LastExitCode}
}

// UpdateCwd returns a state with the new working directory, PWD synced and
// OLDPWD holding the previous one.
func UpdateCwd(s State, newCwd string) State {
	out := s.clone()
	out.Env["OLDPWD"] = s.Cwd
	out.Cwd = newCwd
	out.Env["PWD"] = newCwd
	return out
}

// AddToHistory appends cmd unless it is blank or repeats the previous
// entry, trimming to MaxHistorySize.
func AddToHistory(s State, cmd string) State {
	trimmed := strings.TrimSpace(cmd)
	if trimmed == "" {
		return s
	}
	if len(s.History) > 0 && s.History[len(s.History)-1] == trimmed {
		return s
	}
	out := s.clone()
	out.History = append(out.History, trimmed)
	if len(out.History) > MaxHistorySize {
		out.History = out.History[len(out.History)-MaxHistorySize:]
	}
	return out
}

// WithExitCode returns a state carrying the exit code of the last pipeline.
func WithExitCode(s State, code int) State {
	out := s.clone()
	out.LastExitCode = code
	return out
}

// ApplyUpdates folds a partial update into the state, preserving the
// invariants of UpdateCwd and AddToHistory.
func ApplyUpdates(s State, u Updates) State {
	out := s
	if u.Cwd != nil {
		out = UpdateCwd(out, *u.Cwd)
	}
	if len(u.Env) > 0 {
		next := out.clone()
		for k, v := range u.Env {
			next.Env[k] = v
		}
		out = next
	}
	for _, h := range u.History {
		out = AddToHistory(out, h)
	}
	if u.ExitCode != nil {
		out = WithExitCode(out, *u.ExitCode)
	}
	return out
}

// MergeUpdates folds b onto a, later values winning.
func MergeUpdates(a, b Updates) Updates {
	out := a
	if b.Cwd != nil {
		out.Cwd = b.Cwd
	}
	if b.ExitCode != nil {
		out.ExitCode = b.ExitCode
	}
	if len(b.Env) > 0 {
		env := make(map[string]string, len(a.Env)+len(b.Env))
		for k, v := range a.Env {
			env[k] = v
		}
		for k, v := range b.Env {
			env[k] = v
		}
		out.Env = env
	}
	out.History = append(append([]string(nil), a.History...), b.History...)
	return out
}

// serializedState is the wire form of State.
type serializedState struct {
	Cwd          string            `json:"cwd"`
	Env          map[string]string `json:"env"`
	History      []string          `json:"history"`
	LastExitCode int               `json:"last_exit_code"`
}

// Serialize encodes the state as JSON, keeping at most the newest
// serializedHistoryLimit history entries.
func Serialize(s State) ([]byte, error) {
	hist := s.History
	if len(hist) > serializedHistoryLimit {
		hist = hist[len(hist)-serializedHistoryLimit:]
	}
	return json.Marshal(serializedState{
		Cwd:          s.Cwd,
		Env:          s.Env,
		History:      hist,
		LastExitCode: s.LastExitCode,
	})
}

// Deserialize decodes a serialized state, falling back to defaults for
// missing fields.
func Deserialize(data []byte) (State, error) {
	var ser serializedState
	if err := json.Unmarshal(data, &ser); err != nil {
		return State{}, err
	}
	st := NewState(ser.Env)
	if ser.Cwd != "" {
		st = UpdateCwd(st, ser.Cwd)
		delete(st.Env, "OLDPWD")
	}
	st.History = ser.History
	st.LastExitCode = ser.LastExitCode
	return st, nil
}
