package pty

import (
	"context"
	"strings"
	"testing"

	"bavini/builtins"
	"bavini/mount"
	"bavini/pipeline"
	"bavini/shell"
	"bavini/vfs/memfs"
)

// ==================== Test Helpers ====================

type execHarness struct {
	t        *testing.T
	mounts   *mount.Manager
	registry *builtins.Registry
	exec     *Executor
	state    shell.State
}

func newExecHarness(t *testing.T) *execHarness {
	t.Helper()
	m := mount.NewManager(nil)
	if err := m.Mount(context.Background(), "/", memfs.New(), false); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	t.Cleanup(func() { m.UnmountAll(context.Background()) })
	reg := builtins.NewRegistry()
	return &execHarness{
		t:        t,
		mounts:   m,
		registry: reg,
		exec:     NewExecutor(m, reg, nil),
		state:    shell.NewState(nil),
	}
}

func (h *execHarness) write(path, content string) {
	h.t.Helper()
	if err := h.mounts.WriteTextFile(context.Background(), path, content); err != nil {
		h.t.Fatalf("WriteTextFile(%s) failed: %v", path, err)
	}
}

func (h *execHarness) runLine(line string) (ExecResult, string, string) {
	h.t.Helper()
	var out, errOut strings.Builder
	res := h.exec.ExecuteLine(context.Background(), line, h.state,
		func(s string) { out.WriteString(s) },
		func(s string) { errOut.WriteString(s) },
		80, 24)
	h.state = shell.ApplyUpdates(h.state, res.Updates)
	h.state = shell.WithExitCode(h.state, res.ExitCode)
	return res, out.String(), errOut.String()
}

// ==================== Pipelines ====================

func TestPipeThroughFilterToFile(t *testing.T) {
	h := newExecHarness(t)
	h.write("/work/data.txt", "apple\nbanana\ncherry\n")

	res, out, errOut := h.runLine("cat /work/data.txt | grep a > /work/out.txt")
	if res.ExitCode != 0 {
		t.Fatalf("exit = %d, stderr %q", res.ExitCode, errOut)
	}
	if out != "" {
		t.Errorf("redirected pipeline leaked stdout: %q", out)
	}
	got, err := h.mounts.ReadTextFile(context.Background(), "/work/out.txt")
	if err != nil {
		t.Fatalf("out.txt missing: %v", err)
	}
	if got != "apple\nbanana\n" {
		t.Errorf("out.txt = %q, want apple/banana lines", got)
	}
}

func TestStdinThreading(t *testing.T) {
	h := newExecHarness(t)
	h.write("/f.txt", "one\ntwo\nthree\n")

	_, out, _ := h.runLine("cat /f.txt | grep t | grep e")
	if out != "three\n" {
		t.Errorf("stdout = %q, want three", out)
	}
}

func TestAppendRedirect(t *testing.T) {
	h := newExecHarness(t)
	h.write("/tmp/log", "one\n")

	if res, _, errOut := h.runLine("echo two >> /tmp/log"); res.ExitCode != 0 {
		t.Fatalf("exit = %d, stderr %q", res.ExitCode, errOut)
	}
	got, _ := h.mounts.ReadTextFile(context.Background(), "/tmp/log")
	if got != "one\ntwo\n" {
		t.Errorf("log = %q, want one then two", got)
	}
}

func TestOverwriteRedirect(t *testing.T) {
	h := newExecHarness(t)
	h.write("/tmp/f", "old content\n")

	h.runLine("echo new > /tmp/f")
	got, _ := h.mounts.ReadTextFile(context.Background(), "/tmp/f")
	if got != "new\n" {
		t.Errorf("f = %q, want overwritten", got)
	}
}

func TestEmptyOutputSkipsRedirect(t *testing.T) {
	h := newExecHarness(t)
	h.runLine("echo -n > /tmp/none")
	if ok, _ := h.mounts.Exists(context.Background(), "/tmp/none"); ok {
		t.Error("empty pipeline output still created the redirect file")
	}
}

func TestInputRedirect(t *testing.T) {
	h := newExecHarness(t)
	h.write("/in.txt", "x\ny\n")

	_, out, _ := h.runLine("grep y < /in.txt")
	if out != "y\n" {
		t.Errorf("stdout = %q", out)
	}

	res, _, errOut := h.runLine("grep y < /missing.txt")
	if res.ExitCode != 1 {
		t.Errorf("exit = %d, want 1", res.ExitCode)
	}
	if !strings.Contains(errOut, "No such file or directory") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestCommandNotFound(t *testing.T) {
	h := newExecHarness(t)
	res, _, errOut := h.runLine("frobnicate")
	if res.ExitCode != 127 {
		t.Errorf("exit = %d, want 127", res.ExitCode)
	}
	if !strings.Contains(errOut, "frobnicate: command not found") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestLastExitCodeWins(t *testing.T) {
	h := newExecHarness(t)
	h.write("/f.txt", "hello\n")
	// First stage fails (no match), last stage succeeds.
	res, _, _ := h.runLine("grep zzz /f.txt | echo done")
	if res.ExitCode != 0 {
		t.Errorf("exit = %d, want last stage's 0", res.ExitCode)
	}
}

func TestCdUpdatesState(t *testing.T) {
	h := newExecHarness(t)
	h.write("/proj/placeholder", "x")

	res, _, errOut := h.runLine("cd /proj")
	if res.ExitCode != 0 {
		t.Fatalf("cd failed: %q", errOut)
	}
	if h.state.Cwd != "/proj" {
		t.Errorf("cwd = %q", h.state.Cwd)
	}
	if h.state.Env["PWD"] != "/proj" || h.state.Env["OLDPWD"] != "/home" {
		t.Errorf("PWD/OLDPWD = %q/%q", h.state.Env["PWD"], h.state.Env["OLDPWD"])
	}

	_, out, _ := h.runLine("pwd")
	if out != "/proj\n" {
		t.Errorf("pwd after cd = %q", out)
	}
}

func TestExpansionBeforeParsing(t *testing.T) {
	h := newExecHarness(t)
	_, out, _ := h.runLine("echo $HOME")
	if out != "/home\n" {
		t.Errorf("expansion output = %q", out)
	}
	_, out, _ = h.runLine("echo ${USER}")
	if out != "user\n" {
		t.Errorf("braced expansion output = %q", out)
	}
}

func TestRelativeRedirectTarget(t *testing.T) {
	h := newExecHarness(t)
	h.write("/home/placeholder", "x")

	h.runLine("echo data > rel.txt")
	got, err := h.mounts.ReadTextFile(context.Background(), "/home/rel.txt")
	if err != nil || got != "data\n" {
		t.Errorf("relative redirect: %q, %v", got, err)
	}
}

func TestParseErrorReported(t *testing.T) {
	h := newExecHarness(t)
	res, _, errOut := h.runLine("echo >")
	if res.ExitCode != 1 {
		t.Errorf("exit = %d, want 1", res.ExitCode)
	}
	if !strings.Contains(errOut, "syntax error") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestDirectPipelineExecution(t *testing.T) {
	h := newExecHarness(t)
	h.write("/d.txt", "alpha\nbeta\n")

	p, err := pipeline.Parse("cat /d.txt | grep al")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var out strings.Builder
	res := h.exec.Execute(context.Background(), p, h.state,
		func(s string) { out.WriteString(s) }, func(string) {}, 80, 24)
	if res.ExitCode != 0 || out.String() != "alpha\n" {
		t.Errorf("exit %d out %q", res.ExitCode, out.String())
	}
}
