package memfs

import (
	"context"
	"testing"

	"bavini/vfs"
	"bavini/vfs/vfstest"
)

func newBackend(t *testing.T) vfs.Backend {
	t.Helper()
	b := New()
	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return b
}

func TestConformance(t *testing.T) {
	vfstest.RunConformance(t, newBackend)
}

func TestCapabilities(t *testing.T) {
	b := newBackend(t)
	caps := b.Capabilities()
	if caps.Persistent {
		t.Error("memfs must not report persistent")
	}
	if !caps.SyncAccess {
		t.Error("memfs must report sync access")
	}
}

func TestDestroyDropsState(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	if err := b.WriteFile(ctx, "/f", []byte("x"), vfs.WriteOptions{}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := b.Destroy(ctx); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := b.ReadFile(ctx, "/f"); err == nil {
		t.Fatal("read succeeded after Destroy")
	}

	// Re-init yields an empty tree.
	if err := b.Init(ctx); err != nil {
		t.Fatalf("re-Init failed: %v", err)
	}
	if ok, _ := b.Exists(ctx, "/f"); ok {
		t.Error("state survived Destroy + Init")
	}
}

func TestFileStepThroughFile(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	if err := b.WriteFile(ctx, "/f", []byte("x"), vfs.WriteOptions{}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	// Walking a directory segment through a file resolves to nothing.
	if ok, _ := b.Exists(ctx, "/f/child"); ok {
		t.Error("path through file reported as existing")
	}
	if _, err := b.ReadFile(ctx, "/f/child"); err == nil {
		t.Error("read through file succeeded")
	}
}

func TestRenameIntoOwnSubtree(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	if err := b.Mkdir(ctx, "/a/b", vfs.MkdirOptions{Recursive: true}); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if err := b.Rename(ctx, "/a", "/a/b/c"); err == nil {
		t.Fatal("rename into own subtree succeeded")
	}
}
