package boltfs

import (
	"context"
	"path/filepath"
	"testing"

	"bavini/vfs"
	"bavini/vfs/vfstest"
)

// ==================== Test Helpers ====================

// setupBackend creates an initialized backend over a temp database
func setupBackend(t *testing.T) vfs.Backend {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "fs.db")
	b := New(dbPath)
	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { b.Destroy(context.Background()) })
	return b
}

func TestConformance(t *testing.T) {
	vfstest.RunConformance(t, setupBackend)
}

func TestCapabilities(t *testing.T) {
	b := setupBackend(t)
	caps := b.Capabilities()
	if !caps.Persistent {
		t.Error("boltfs must report persistent")
	}
	if caps.SyncAccess {
		t.Error("boltfs must not report sync access")
	}
}

func TestRootExistsAfterInit(t *testing.T) {
	b := setupBackend(t)
	st, err := b.Stat(context.Background(), "/")
	if err != nil {
		t.Fatalf("Stat(/) failed: %v", err)
	}
	if !st.IsDir {
		t.Error("root record is not a directory")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "fs.db")

	b := New(dbPath)
	if err := b.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := b.WriteFile(ctx, "/dir/file.txt", []byte("survives"), vfs.WriteOptions{CreateParents: true}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	st, err := b.Stat(ctx, "/dir/file.txt")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if err := b.Destroy(ctx); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}

	reopened := New(dbPath)
	if err := reopened.Init(ctx); err != nil {
		t.Fatalf("re-Init failed: %v", err)
	}
	defer reopened.Destroy(ctx)

	got, err := reopened.ReadFile(ctx, "/dir/file.txt")
	if err != nil {
		t.Fatalf("ReadFile after reopen failed: %v", err)
	}
	if string(got) != "survives" {
		t.Errorf("content after reopen = %q", got)
	}

	st2, err := reopened.Stat(ctx, "/dir/file.txt")
	if err != nil {
		t.Fatalf("Stat after reopen failed: %v", err)
	}
	if st2.Birthtime != st.Birthtime {
		t.Errorf("birthtime changed across reopen: %d -> %d", st.Birthtime, st2.Birthtime)
	}
}

func TestDirectChildrenOnly(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	for _, p := range []string{"/x/a.txt", "/x/sub/deep.txt", "/xother/b.txt"} {
		if err := b.WriteFile(ctx, p, []byte("1"), vfs.WriteOptions{CreateParents: true}); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", p, err)
		}
	}

	names, err := b.ReadDir(ctx, "/x")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	want := map[string]bool{"a.txt": true, "sub": true}
	if len(names) != len(want) {
		t.Fatalf("ReadDir(/x) = %v, want a.txt and sub only", names)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected entry %q", n)
		}
	}
}

func TestRecursiveRmdirPurgesSubtree(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	paths := []string{"/t/a/f1", "/t/a/b/f2", "/t/f3"}
	for _, p := range paths {
		if err := b.WriteFile(ctx, p, []byte("x"), vfs.WriteOptions{CreateParents: true}); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", p, err)
		}
	}
	if err := b.Rmdir(ctx, "/t", vfs.RmdirOptions{Recursive: true}); err != nil {
		t.Fatalf("recursive Rmdir failed: %v", err)
	}
	for _, p := range append(paths, "/t", "/t/a", "/t/a/b") {
		if ok, _ := b.Exists(ctx, p); ok {
			t.Errorf("%s survived recursive rmdir", p)
		}
	}
	// Sibling trees untouched.
	if ok, _ := b.Exists(ctx, "/"); !ok {
		t.Error("root vanished")
	}
}
