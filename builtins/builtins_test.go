package builtins

import (
	"context"
	"strings"
	"testing"

	"bavini/mount"
	"bavini/shell"
	"bavini/vfs"
	"bavini/vfs/memfs"
)

// ==================== Test Helpers ====================

type runResult struct {
	code   int
	stdout string
	stderr string
	upd    shell.Updates
}

// harness bundles a mount manager, registry and state for command tests
type harness struct {
	t        *testing.T
	mounts   *mount.Manager
	registry *Registry
	state    shell.State
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	m := mount.NewManager(nil)
	if err := m.Mount(context.Background(), "/", memfs.New(), false); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	t.Cleanup(func() { m.UnmountAll(context.Background()) })
	return &harness{
		t:        t,
		mounts:   m,
		registry: NewRegistry(),
		state:    shell.NewState(nil),
	}
}

func (h *harness) write(path, content string) {
	h.t.Helper()
	if err := h.mounts.WriteTextFile(context.Background(), path, content); err != nil {
		h.t.Fatalf("WriteTextFile(%s) failed: %v", path, err)
	}
}

func (h *harness) mkdir(path string) {
	h.t.Helper()
	if err := h.mounts.Mkdir(context.Background(), path, vfs.MkdirOptions{Recursive: true}); err != nil {
		h.t.Fatalf("Mkdir(%s) failed: %v", path, err)
	}
}

// run executes one builtin and captures its output
func (h *harness) run(name string, args ...string) runResult {
	h.t.Helper()
	cmd, found := h.registry.Get(name)
	if !found {
		h.t.Fatalf("builtin %s not registered", name)
	}
	var out, errOut strings.Builder
	ctx := &Context{
		Ctx:      context.Background(),
		Mounts:   h.mounts,
		State:    h.state,
		Stdout:   func(s string) { out.WriteString(s) },
		Stderr:   func(s string) { errOut.WriteString(s) },
		Cols:     80,
		Rows:     24,
		Registry: h.registry,
	}
	res := cmd.Execute(args, ctx)
	// Apply updates the way the executor would, so sequences of commands
	// observe each other's effects.
	h.state = shell.ApplyUpdates(h.state, res.Updates)
	return runResult{code: res.ExitCode, stdout: out.String(), stderr: errOut.String(), upd: res.Updates}
}

// ==================== cd / pwd ====================

func TestCdAndPwd(t *testing.T) {
	h := newHarness(t)
	h.mkdir("/home/projects")

	r := h.run("cd", "projects")
	if r.code != 0 {
		t.Fatalf("cd failed: %d %q", r.code, r.stderr)
	}
	if h.state.Cwd != "/home/projects" {
		t.Errorf("cwd = %q", h.state.Cwd)
	}
	if h.state.Env["PWD"] != "/home/projects" || h.state.Env["OLDPWD"] != "/home" {
		t.Errorf("PWD/OLDPWD = %q/%q", h.state.Env["PWD"], h.state.Env["OLDPWD"])
	}

	r = h.run("pwd")
	if r.stdout != "/home/projects\n" {
		t.Errorf("pwd output = %q", r.stdout)
	}
}

func TestCdDash(t *testing.T) {
	h := newHarness(t)
	h.mkdir("/home/a")
	h.run("cd", "a")
	r := h.run("cd", "-")
	if r.code != 0 {
		t.Fatalf("cd - failed: %q", r.stderr)
	}
	if h.state.Cwd != "/home" {
		t.Errorf("cwd after cd - = %q", h.state.Cwd)
	}
}

func TestCdMissing(t *testing.T) {
	h := newHarness(t)
	r := h.run("cd", "nope")
	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr, "cd: nope: No such file or directory") {
		t.Errorf("stderr = %q", r.stderr)
	}
}

func TestCdOntoFile(t *testing.T) {
	h := newHarness(t)
	h.write("/home/f.txt", "x")
	r := h.run("cd", "f.txt")
	if r.code != 1 || !strings.Contains(r.stderr, "Not a directory") {
		t.Errorf("exit %d stderr %q", r.code, r.stderr)
	}
}

// ==================== ls ====================

func TestLsSortsAndHidesDotfiles(t *testing.T) {
	h := newHarness(t)
	h.mkdir("/home/zdir")
	h.write("/home/afile", "x")
	h.write("/home/.hidden", "x")

	r := h.run("ls")
	if r.code != 0 {
		t.Fatalf("ls failed: %q", r.stderr)
	}
	if strings.Contains(r.stdout, ".hidden") {
		t.Error("dotfile shown without -a")
	}
	// Directories first.
	zpos := strings.Index(r.stdout, "zdir")
	apos := strings.Index(r.stdout, "afile")
	if zpos == -1 || apos == -1 || zpos > apos {
		t.Errorf("ordering wrong: %q", r.stdout)
	}

	r = h.run("ls", "-a")
	if !strings.Contains(r.stdout, ".hidden") {
		t.Error("-a did not reveal dotfile")
	}
}

func TestLsLong(t *testing.T) {
	h := newHarness(t)
	h.write("/home/data.txt", "12345")

	r := h.run("ls", "-l")
	if r.code != 0 {
		t.Fatalf("ls -l failed: %q", r.stderr)
	}
	if !strings.Contains(r.stdout, "-rw-r--r--") {
		t.Errorf("mode string missing: %q", r.stdout)
	}
	if !strings.Contains(r.stdout, "5") {
		t.Errorf("size missing: %q", r.stdout)
	}
}

func TestLsMultipleTargets(t *testing.T) {
	h := newHarness(t)
	h.mkdir("/a")
	h.mkdir("/b")
	r := h.run("ls", "/a", "/b")
	if !strings.Contains(r.stdout, "/a:\n") || !strings.Contains(r.stdout, "/b:\n") {
		t.Errorf("missing per-target headers: %q", r.stdout)
	}
}

func TestLsTraversalDenied(t *testing.T) {
	h := newHarness(t)
	r := h.run("ls", "../../etc")
	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr, "ls: ../../etc: Permission denied") {
		t.Errorf("stderr = %q", r.stderr)
	}
}

// ==================== cat ====================

func TestCatAppendsNewline(t *testing.T) {
	h := newHarness(t)
	h.write("/home/no-newline.txt", "abc")
	r := h.run("cat", "no-newline.txt")
	if r.stdout != "abc\n" {
		t.Errorf("stdout = %q", r.stdout)
	}
}

func TestCatDirectory(t *testing.T) {
	h := newHarness(t)
	h.mkdir("/home/d")
	r := h.run("cat", "d")
	if r.code != 1 || !strings.Contains(r.stderr, "cat: d: Is a directory") {
		t.Errorf("exit %d stderr %q", r.code, r.stderr)
	}
}

func TestCatTraversalDenied(t *testing.T) {
	h := newHarness(t)
	// The backend must never see the path; plant a canary the traversal
	// would resolve to.
	h.write("/etc/passwd", "root:x")
	r := h.run("cat", "../../../etc/passwd")
	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr, "cat: ../../../etc/passwd: Permission denied") {
		t.Errorf("stderr = %q", r.stderr)
	}
	if strings.Contains(r.stdout, "root:x") {
		t.Error("traversal read reached the backend")
	}
}

func TestCatContinuesAfterFailure(t *testing.T) {
	h := newHarness(t)
	h.write("/home/ok.txt", "fine\n")
	r := h.run("cat", "missing.txt", "ok.txt")
	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stdout, "fine\n") {
		t.Errorf("second file not printed: %q", r.stdout)
	}
}

// ==================== echo ====================

func TestEcho(t *testing.T) {
	h := newHarness(t)
	if r := h.run("echo", "hello", "world"); r.stdout != "hello world\n" {
		t.Errorf("echo = %q", r.stdout)
	}
	if r := h.run("echo", "-n", "x"); r.stdout != "x" {
		t.Errorf("echo -n = %q", r.stdout)
	}
	if r := h.run("echo"); r.stdout != "\n" {
		t.Errorf("bare echo = %q", r.stdout)
	}
}

// ==================== mkdir / rm ====================

func TestMkdir(t *testing.T) {
	h := newHarness(t)
	if r := h.run("mkdir", "/x"); r.code != 0 {
		t.Fatalf("mkdir failed: %q", r.stderr)
	}
	if r := h.run("mkdir", "/x"); r.code != 1 {
		t.Error("mkdir over existing dir must fail without -p")
	}
	if r := h.run("mkdir", "-p", "/x"); r.code != 0 {
		t.Error("mkdir -p over existing dir must succeed")
	}
	if r := h.run("mkdir", "/deep/a/b"); r.code != 1 {
		t.Error("mkdir with missing parents must fail without -p")
	}
	if r := h.run("mkdir", "-p", "/deep/a/b"); r.code != 0 {
		t.Error("mkdir -p must create parents")
	}
}

func TestRm(t *testing.T) {
	h := newHarness(t)
	h.write("/home/f", "x")
	h.mkdir("/home/d")
	h.write("/home/d/inner", "x")

	if r := h.run("rm", "d"); r.code != 1 || !strings.Contains(r.stderr, "Is a directory") {
		t.Errorf("rm dir without -r: %d %q", r.code, r.stderr)
	}
	if r := h.run("rm", "-r", "d"); r.code != 0 {
		t.Errorf("rm -r failed: %q", r.stderr)
	}
	if r := h.run("rm", "f"); r.code != 0 {
		t.Errorf("rm file failed: %q", r.stderr)
	}
	if r := h.run("rm", "ghost"); r.code != 1 {
		t.Error("rm missing must fail")
	}
	if r := h.run("rm", "-f", "ghost"); r.code != 0 || r.stderr != "" {
		t.Errorf("rm -f missing: %d %q", r.code, r.stderr)
	}
}

// ==================== cp / mv ====================

func TestCpFile(t *testing.T) {
	h := newHarness(t)
	h.write("/home/src", "data")
	if r := h.run("cp", "src", "dst"); r.code != 0 {
		t.Fatalf("cp failed: %q", r.stderr)
	}
	got, _ := h.mounts.ReadTextFile(context.Background(), "/home/dst")
	if got != "data" {
		t.Errorf("copied content = %q", got)
	}
}

func TestCpDirNeedsRecursive(t *testing.T) {
	h := newHarness(t)
	h.mkdir("/home/d")
	if r := h.run("cp", "d", "d2"); r.code != 1 {
		t.Error("cp dir without -r must fail")
	}
	if r := h.run("cp", "-r", "d", "d2"); r.code != 0 {
		t.Errorf("cp -r failed: %q", r.stderr)
	}
	if ok, _ := h.mounts.Exists(context.Background(), "/home/d2"); !ok {
		t.Error("copied dir missing")
	}
}

func TestCpMultipleSourcesNeedDir(t *testing.T) {
	h := newHarness(t)
	h.write("/home/a", "1")
	h.write("/home/b", "2")
	if r := h.run("cp", "a", "b", "notadir"); r.code != 1 || !strings.Contains(r.stderr, "Not a directory") {
		t.Errorf("cp multi to non-dir: %d %q", r.code, r.stderr)
	}
	h.mkdir("/home/dest")
	if r := h.run("cp", "a", "b", "dest"); r.code != 0 {
		t.Fatalf("cp multi failed: %q", r.stderr)
	}
	for _, p := range []string{"/home/dest/a", "/home/dest/b"} {
		if ok, _ := h.mounts.Exists(context.Background(), p); !ok {
			t.Errorf("%s missing", p)
		}
	}
}

func TestMv(t *testing.T) {
	h := newHarness(t)
	h.write("/home/old", "data")
	if r := h.run("mv", "old", "new"); r.code != 0 {
		t.Fatalf("mv failed: %q", r.stderr)
	}
	if ok, _ := h.mounts.Exists(context.Background(), "/home/old"); ok {
		t.Error("source survived mv")
	}
	got, _ := h.mounts.ReadTextFile(context.Background(), "/home/new")
	if got != "data" {
		t.Errorf("moved content = %q", got)
	}
}

// ==================== touch ====================

func TestTouch(t *testing.T) {
	h := newHarness(t)
	h.mkdir("/home")
	if r := h.run("touch", "f"); r.code != 0 {
		t.Fatalf("touch failed: %q", r.stderr)
	}
	st, err := h.mounts.Stat(context.Background(), "/home/f")
	if err != nil || !st.IsFile || st.Size != 0 {
		t.Errorf("touched file wrong: %+v, %v", st, err)
	}

	h.write("/home/g", "keep")
	if r := h.run("touch", "g"); r.code != 0 {
		t.Fatalf("touch existing failed: %q", r.stderr)
	}
	got, _ := h.mounts.ReadTextFile(context.Background(), "/home/g")
	if got != "keep" {
		t.Errorf("touch clobbered content: %q", got)
	}
}

// ==================== env / export ====================

func TestEnvPrintsAll(t *testing.T) {
	h := newHarness(t)
	r := h.run("env")
	for _, want := range []string{"HOME=/home\n", "USER=user\n", "SHELL=/bin/bash\n"} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("env output missing %q: %q", want, r.stdout)
		}
	}
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	r := h.run("export", `NAME="quoted value"`)
	if r.code != 0 {
		t.Fatalf("export failed: %q", r.stderr)
	}
	if h.state.Env["NAME"] != "quoted value" {
		t.Errorf("NAME = %q", h.state.Env["NAME"])
	}

	r = h.run("export", "9BAD=1")
	if r.code != 1 || !strings.Contains(r.stderr, "not a valid identifier") {
		t.Errorf("invalid identifier: %d %q", r.code, r.stderr)
	}

	r = h.run("export")
	if !strings.Contains(r.stdout, `export NAME="quoted value"`) {
		t.Errorf("export listing = %q", r.stdout)
	}
}

// ==================== filters ====================

func TestGrepStdin(t *testing.T) {
	h := newHarness(t)
	cmd, _ := h.registry.Get("grep")
	var out strings.Builder
	ctx := &Context{
		Ctx: context.Background(), Mounts: h.mounts, State: h.state,
		Stdout: func(s string) { out.WriteString(s) }, Stderr: func(string) {},
		Stdin: "apple\nbanana\ncherry\n", HasStdin: true,
	}
	res := cmd.Execute([]string{"a"}, ctx)
	if res.ExitCode != 0 {
		t.Fatalf("grep exit = %d", res.ExitCode)
	}
	if out.String() != "apple\nbanana\n" {
		t.Errorf("grep output = %q", out.String())
	}
}

func TestGrepFile(t *testing.T) {
	h := newHarness(t)
	h.write("/home/data.txt", "one\ntwo\nthree\n")
	r := h.run("grep", "t", "data.txt")
	if r.stdout != "two\nthree\n" {
		t.Errorf("grep output = %q", r.stdout)
	}
	if r.code != 0 {
		t.Errorf("exit = %d", r.code)
	}
	// No matches -> exit 1.
	if r := h.run("grep", "zzz", "data.txt"); r.code != 1 {
		t.Error("grep without matches must exit 1")
	}
}

func TestHeadAndWc(t *testing.T) {
	h := newHarness(t)
	h.write("/home/lines.txt", "1\n2\n3\n4\n5\n")
	if r := h.run("head", "-n", "2", "lines.txt"); r.stdout != "1\n2\n" {
		t.Errorf("head = %q", r.stdout)
	}
	r := h.run("wc", "-l", "lines.txt")
	if !strings.Contains(r.stdout, "5") {
		t.Errorf("wc -l = %q", r.stdout)
	}
}

// ==================== misc ====================

func TestClear(t *testing.T) {
	h := newHarness(t)
	r := h.run("clear")
	if r.stdout != "\x1b[2J\x1b[H" {
		t.Errorf("clear emitted %q", r.stdout)
	}
}

func TestHelp(t *testing.T) {
	h := newHarness(t)
	r := h.run("help")
	for _, name := range []string{"cd", "ls", "cat", "export"} {
		if !strings.Contains(r.stdout, name) {
			t.Errorf("help listing missing %s", name)
		}
	}
	r = h.run("help", "ls")
	if !strings.Contains(r.stdout, "usage: ls") {
		t.Errorf("help ls = %q", r.stdout)
	}
	if r := h.run("help", "nosuch"); r.code != 1 {
		t.Error("help for unknown builtin must fail")
	}
}

func TestHistoryCommand(t *testing.T) {
	h := newHarness(t)
	h.state = shell.AddToHistory(h.state, "ls")
	h.state = shell.AddToHistory(h.state, "pwd")
	r := h.run("history")
	if !strings.Contains(r.stdout, "1  ls") || !strings.Contains(r.stdout, "2  pwd") {
		t.Errorf("history = %q", r.stdout)
	}
}

func TestMountAndDf(t *testing.T) {
	h := newHarness(t)
	r := h.run("mount")
	if !strings.Contains(r.stdout, "on / (rw)") {
		t.Errorf("mount output = %q", r.stdout)
	}
	r = h.run("df")
	if !strings.Contains(r.stdout, "volatile") {
		t.Errorf("df output = %q", r.stdout)
	}
}
