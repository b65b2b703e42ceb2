package mount

import (
	"context"
	"errors"
	"testing"

	"bavini/vfs"
	"bavini/vfs/memfs"
)

// ==================== Test Helpers ====================

// setupManager builds a manager with a memory backend at "/"
func setupManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(nil)
	if err := m.Mount(context.Background(), "/", memfs.New(), false); err != nil {
		t.Fatalf("Mount(/) failed: %v", err)
	}
	t.Cleanup(func() { m.UnmountAll(context.Background()) })
	return m
}

// addMount attaches a fresh memory backend at path
func addMount(t *testing.T, m *Manager, path string, readOnly bool) {
	t.Helper()
	if err := m.Mount(context.Background(), path, memfs.New(), readOnly); err != nil {
		t.Fatalf("Mount(%s) failed: %v", path, err)
	}
}

func writeFile(t *testing.T, m *Manager, path, content string) {
	t.Helper()
	err := m.WriteFile(context.Background(), path, []byte(content), vfs.WriteOptions{CreateParents: true})
	if err != nil {
		t.Fatalf("WriteFile(%s) failed: %v", path, err)
	}
}

// ==================== Routing ====================

func TestLongestPrefixRouting(t *testing.T) {
	m := setupManager(t)
	addMount(t, m, "/data", false)
	addMount(t, m, "/data/cache", false)

	tests := []struct {
		path      string
		wantMount string
		wantRel   string
	}{
		{"/file", "/", "/file"},
		{"/data/x", "/data", "/x"},
		{"/data", "/data", "/"},
		{"/data/cache/y", "/data/cache", "/y"},
		{"/datafoo", "/", "/datafoo"},
	}
	for _, tt := range tests {
		mt, rel, err := m.MountFor(tt.path)
		if err != nil {
			t.Errorf("MountFor(%s) failed: %v", tt.path, err)
			continue
		}
		if mt.Path != tt.wantMount || rel != tt.wantRel {
			t.Errorf("MountFor(%s) = (%s, %s), want (%s, %s)",
				tt.path, mt.Path, rel, tt.wantMount, tt.wantRel)
		}
	}
}

func TestDuplicateMountRejected(t *testing.T) {
	m := setupManager(t)
	addMount(t, m, "/x", false)
	err := m.Mount(context.Background(), "/x/../x", memfs.New(), false)
	if err == nil {
		t.Fatal("duplicate mount accepted")
	}
}

func TestWritesIsolatedPerMount(t *testing.T) {
	ctx := context.Background()
	m := setupManager(t)
	addMount(t, m, "/vol", false)

	writeFile(t, m, "/vol/f", "inner")
	writeFile(t, m, "/f", "outer")

	// The root backend must not see the inner file.
	rootMount, _, _ := m.MountFor("/")
	if ok, _ := rootMount.Backend.Exists(ctx, "/vol/f"); ok {
		t.Error("inner file leaked into the root backend")
	}
	got, err := m.ReadTextFile(ctx, "/vol/f")
	if err != nil || got != "inner" {
		t.Errorf("ReadTextFile(/vol/f) = %q, %v", got, err)
	}
}

// ==================== Read-only enforcement ====================

func TestReadOnlyMount(t *testing.T) {
	ctx := context.Background()
	m := setupManager(t)
	addMount(t, m, "/ro", true)

	ops := []struct {
		name string
		call func() error
	}{
		{"write", func() error { return m.WriteFile(ctx, "/ro/f", []byte("x"), vfs.WriteOptions{}) }},
		{"mkdir", func() error { return m.Mkdir(ctx, "/ro/d", vfs.MkdirOptions{}) }},
		{"unlink", func() error { return m.Unlink(ctx, "/ro/f") }},
		{"rmdir", func() error { return m.Rmdir(ctx, "/ro/d", vfs.RmdirOptions{}) }},
		{"rename dest", func() error { writeFile(t, m, "/src", "x"); return m.Rename(ctx, "/src", "/ro/dst") }},
	}
	for _, op := range ops {
		err := op.call()
		if !errors.Is(err, vfs.ErrAccessDenied) {
			t.Errorf("%s on read-only mount: err = %v, want ErrAccessDenied", op.name, err)
		}
	}

	// Reads still work.
	if _, err := m.ReadDir(ctx, "/ro"); err != nil {
		t.Errorf("ReadDir on read-only mount failed: %v", err)
	}
}

// ==================== Synthetic mount-point entries ====================

func TestChildMountAppearsInListing(t *testing.T) {
	ctx := context.Background()
	m := setupManager(t)
	if err := m.Mkdir(ctx, "/a", vfs.MkdirOptions{}); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	writeFile(t, m, "/a/real.txt", "x")
	addMount(t, m, "/a/b", false)

	entries, err := m.ReadDirTypes(ctx, "/a")
	if err != nil {
		t.Fatalf("ReadDirTypes failed: %v", err)
	}
	found := map[string]vfs.DirEntry{}
	for _, e := range entries {
		found[e.Name] = e
	}
	if e, ok := found["b"]; !ok || !e.IsDir {
		t.Errorf("mount point b missing or not a dir: %+v", entries)
	}
	if _, ok := found["real.txt"]; !ok {
		t.Error("backend entry real.txt missing")
	}
}

func TestChildMountDeduplicated(t *testing.T) {
	ctx := context.Background()
	m := setupManager(t)
	if err := m.Mkdir(ctx, "/a/b", vfs.MkdirOptions{Recursive: true}); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	addMount(t, m, "/a/b", false)

	entries, err := m.ReadDirTypes(ctx, "/a")
	if err != nil {
		t.Fatalf("ReadDirTypes failed: %v", err)
	}
	count := 0
	for _, e := range entries {
		if e.Name == "b" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("entry b appears %d times, want 1", count)
	}
}

// ==================== Cross-mount operations ====================

func TestCrossMountRenameFile(t *testing.T) {
	ctx := context.Background()
	m := setupManager(t)
	addMount(t, m, "/other", false)

	writeFile(t, m, "/src.txt", "payload")
	if err := m.Rename(ctx, "/src.txt", "/other/dst.txt"); err != nil {
		t.Fatalf("cross-mount rename failed: %v", err)
	}
	if ok, _ := m.Exists(ctx, "/src.txt"); ok {
		t.Error("source survived cross-mount rename")
	}
	got, err := m.ReadTextFile(ctx, "/other/dst.txt")
	if err != nil || got != "payload" {
		t.Errorf("dest content = %q, err %v", got, err)
	}
}

func TestCrossMountRenameDirectory(t *testing.T) {
	ctx := context.Background()
	m := setupManager(t)
	addMount(t, m, "/vol", false)

	writeFile(t, m, "/tree/a.txt", "A")
	writeFile(t, m, "/tree/sub/b.txt", "B")

	if err := m.Rename(ctx, "/tree", "/vol/tree"); err != nil {
		t.Fatalf("cross-mount dir rename failed: %v", err)
	}
	if ok, _ := m.Exists(ctx, "/tree"); ok {
		t.Error("source tree survived")
	}
	for path, want := range map[string]string{
		"/vol/tree/a.txt":     "A",
		"/vol/tree/sub/b.txt": "B",
	} {
		got, err := m.ReadTextFile(ctx, path)
		if err != nil || got != want {
			t.Errorf("%s = %q, err %v, want %q", path, got, err, want)
		}
	}
}

func TestUnmountDestroysBackend(t *testing.T) {
	ctx := context.Background()
	m := setupManager(t)
	b := memfs.New()
	if err := m.Mount(ctx, "/tmp", b, false); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	writeFile(t, m, "/tmp/f", "x")
	if err := m.Unmount(ctx, "/tmp"); err != nil {
		t.Fatalf("Unmount failed: %v", err)
	}
	// Backend destroyed: direct use reports closed.
	if _, err := b.ReadFile(ctx, "/f"); !errors.Is(err, vfs.ErrClosed) {
		t.Errorf("backend alive after unmount: %v", err)
	}
	// Path now routes to the root mount.
	if ok, _ := m.Exists(ctx, "/tmp/f"); ok {
		t.Error("unmounted content still visible")
	}
}
