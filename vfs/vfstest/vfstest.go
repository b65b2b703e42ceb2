// Package vfstest exercises the Backend contract against any
// implementation. Each concrete backend package runs the suite from its own
// tests with a factory that builds a fresh, initialized backend.
package vfstest

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"bavini/vfs"
)

// Factory builds a fresh initialized backend. The cleanup responsibility
// stays with the caller (t.Cleanup inside the factory).
type Factory func(t *testing.T) vfs.Backend

// RunConformance runs the full contract suite.
func RunConformance(t *testing.T, factory Factory) {
	t.Run("WriteRead", func(t *testing.T) { testWriteRead(t, factory) })
	t.Run("ReadErrors", func(t *testing.T) { testReadErrors(t, factory) })
	t.Run("WriteParents", func(t *testing.T) { testWriteParents(t, factory) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, factory) })
	t.Run("Mkdir", func(t *testing.T) { testMkdir(t, factory) })
	t.Run("Rmdir", func(t *testing.T) { testRmdir(t, factory) })
	t.Run("ReadDir", func(t *testing.T) { testReadDir(t, factory) })
	t.Run("StatExists", func(t *testing.T) { testStatExists(t, factory) })
	t.Run("Unlink", func(t *testing.T) { testUnlink(t, factory) })
	t.Run("CopyFile", func(t *testing.T) { testCopyFile(t, factory) })
	t.Run("RenameFile", func(t *testing.T) { testRenameFile(t, factory) })
	t.Run("RenameDir", func(t *testing.T) { testRenameDir(t, factory) })
}

func write(t *testing.T, b vfs.Backend, path, content string) {
	t.Helper()
	err := b.WriteFile(context.Background(), path, []byte(content), vfs.WriteOptions{CreateParents: true})
	if err != nil {
		t.Fatalf("WriteFile(%s) failed: %v", path, err)
	}
}

func mkdir(t *testing.T, b vfs.Backend, path string) {
	t.Helper()
	err := b.Mkdir(context.Background(), path, vfs.MkdirOptions{Recursive: true})
	if err != nil {
		t.Fatalf("Mkdir(%s) failed: %v", path, err)
	}
}

func wantErr(t *testing.T, err, sentinel error, op string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s succeeded, want %v", op, sentinel)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("%s failed with %v, want %v", op, err, sentinel)
	}
}

func testWriteRead(t *testing.T, factory Factory) {
	b := factory(t)
	ctx := context.Background()

	payload := []byte("hello\x00world\xff")
	if err := b.WriteFile(ctx, "/f.bin", payload, vfs.WriteOptions{}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := b.ReadFile(ctx, "/f.bin")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip mismatch: got %q, want %q", got, payload)
	}

	st, err := b.Stat(ctx, "/f.bin")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !st.IsFile || st.IsDir {
		t.Errorf("stat flags wrong: %+v", st)
	}
	if st.Size != int64(len(payload)) {
		t.Errorf("size = %d, want %d", st.Size, len(payload))
	}
}

func testReadErrors(t *testing.T, factory Factory) {
	b := factory(t)
	ctx := context.Background()

	_, err := b.ReadFile(ctx, "/missing")
	wantErr(t, err, vfs.ErrNotFound, "ReadFile(missing)")

	mkdir(t, b, "/d")
	_, err = b.ReadFile(ctx, "/d")
	wantErr(t, err, vfs.ErrIsDir, "ReadFile(dir)")

	write(t, b, "/file", "x")
	_, err = b.ReadDir(ctx, "/file")
	wantErr(t, err, vfs.ErrNotDir, "ReadDir(file)")
}

func testWriteParents(t *testing.T, factory Factory) {
	b := factory(t)
	ctx := context.Background()

	err := b.WriteFile(ctx, "/a/b/c.txt", []byte("x"), vfs.WriteOptions{})
	wantErr(t, err, vfs.ErrNotFound, "WriteFile without parents")

	if err := b.WriteFile(ctx, "/a/b/c.txt", []byte("x"), vfs.WriteOptions{CreateParents: true}); err != nil {
		t.Fatalf("WriteFile with CreateParents failed: %v", err)
	}
	st, err := b.Stat(ctx, "/a/b")
	if err != nil || !st.IsDir {
		t.Fatalf("intermediate dir missing: %v %+v", err, st)
	}

	err = b.WriteFile(ctx, "/a", []byte("x"), vfs.WriteOptions{})
	wantErr(t, err, vfs.ErrIsDir, "WriteFile over dir")
}

func testOverwrite(t *testing.T, factory Factory) {
	b := factory(t)
	ctx := context.Background()

	write(t, b, "/f", "one")
	before, err := b.Stat(ctx, "/f")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	write(t, b, "/f", "two longer")
	after, err := b.Stat(ctx, "/f")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	if after.Birthtime != before.Birthtime {
		t.Errorf("overwrite changed birthtime: %d -> %d", before.Birthtime, after.Birthtime)
	}
	if after.Ctime != before.Ctime {
		t.Errorf("overwrite changed ctime: %d -> %d", before.Ctime, after.Ctime)
	}
	if after.Size != int64(len("two longer")) {
		t.Errorf("size = %d after overwrite", after.Size)
	}
}

func testMkdir(t *testing.T, factory Factory) {
	b := factory(t)
	ctx := context.Background()

	err := b.Mkdir(ctx, "/x/y/z", vfs.MkdirOptions{})
	wantErr(t, err, vfs.ErrNotFound, "Mkdir missing parent")

	if err := b.Mkdir(ctx, "/x/y/z", vfs.MkdirOptions{Recursive: true}); err != nil {
		t.Fatalf("recursive Mkdir failed: %v", err)
	}
	// Second recursive mkdir of an existing dir is a no-op.
	if err := b.Mkdir(ctx, "/x/y/z", vfs.MkdirOptions{Recursive: true}); err != nil {
		t.Fatalf("repeated recursive Mkdir failed: %v", err)
	}

	err = b.Mkdir(ctx, "/x/y/z", vfs.MkdirOptions{})
	wantErr(t, err, vfs.ErrExists, "Mkdir over existing")

	write(t, b, "/file", "x")
	err = b.Mkdir(ctx, "/file", vfs.MkdirOptions{Recursive: true})
	wantErr(t, err, vfs.ErrExists, "Mkdir over file")
}

func testRmdir(t *testing.T, factory Factory) {
	b := factory(t)
	ctx := context.Background()

	err := b.Rmdir(ctx, "/", vfs.RmdirOptions{Recursive: true})
	wantErr(t, err, vfs.ErrInvalid, "Rmdir root")

	mkdir(t, b, "/d/sub")
	write(t, b, "/d/sub/f", "x")

	err = b.Rmdir(ctx, "/d", vfs.RmdirOptions{})
	wantErr(t, err, vfs.ErrNotEmpty, "Rmdir non-empty")

	if err := b.Rmdir(ctx, "/d", vfs.RmdirOptions{Recursive: true}); err != nil {
		t.Fatalf("recursive Rmdir failed: %v", err)
	}
	for _, p := range []string{"/d", "/d/sub", "/d/sub/f"} {
		ok, err := b.Exists(ctx, p)
		if err != nil {
			t.Fatalf("Exists(%s) failed: %v", p, err)
		}
		if ok {
			t.Errorf("%s survived recursive Rmdir", p)
		}
	}

	write(t, b, "/plain", "x")
	err = b.Rmdir(ctx, "/plain", vfs.RmdirOptions{})
	wantErr(t, err, vfs.ErrNotDir, "Rmdir on file")
}

func testReadDir(t *testing.T, factory Factory) {
	b := factory(t)
	ctx := context.Background()

	mkdir(t, b, "/d/nested")
	write(t, b, "/d/b.txt", "x")
	write(t, b, "/d/a.txt", "x")

	names, err := b.ReadDir(ctx, "/d")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("ReadDir = %v, want 3 entries", names)
	}

	entries, err := b.ReadDirTypes(ctx, "/d")
	if err != nil {
		t.Fatalf("ReadDirTypes failed: %v", err)
	}
	byName := map[string]vfs.DirEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	if !byName["nested"].IsDir {
		t.Error("nested not reported as dir")
	}
	if !byName["a.txt"].IsFile {
		t.Error("a.txt not reported as file")
	}
}

func testStatExists(t *testing.T, factory Factory) {
	b := factory(t)
	ctx := context.Background()

	// exists(p) must agree with stat(p) succeeding.
	for _, p := range []string{"/", "/nope", "/f"} {
		if p == "/f" {
			write(t, b, "/f", "x")
		}
		ok, err := b.Exists(ctx, p)
		if err != nil {
			t.Fatalf("Exists(%s) failed: %v", p, err)
		}
		_, statErr := b.Stat(ctx, p)
		if ok != (statErr == nil) {
			t.Errorf("Exists(%s)=%v disagrees with Stat err=%v", p, ok, statErr)
		}
	}

	st, err := b.Stat(ctx, "/")
	if err != nil {
		t.Fatalf("Stat(/) failed: %v", err)
	}
	if !st.IsDir {
		t.Error("root is not a directory")
	}
}

func testUnlink(t *testing.T, factory Factory) {
	b := factory(t)
	ctx := context.Background()

	write(t, b, "/f", "x")
	if err := b.Unlink(ctx, "/f"); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}
	ok, _ := b.Exists(ctx, "/f")
	if ok {
		t.Error("file survived Unlink")
	}

	err := b.Unlink(ctx, "/f")
	wantErr(t, err, vfs.ErrNotFound, "Unlink missing")

	mkdir(t, b, "/d")
	err = b.Unlink(ctx, "/d")
	wantErr(t, err, vfs.ErrIsDir, "Unlink dir")
}

func testCopyFile(t *testing.T, factory Factory) {
	b := factory(t)
	ctx := context.Background()

	write(t, b, "/src", "payload")
	if err := b.CopyFile(ctx, "/src", "/dst"); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}
	got, err := b.ReadFile(ctx, "/dst")
	if err != nil {
		t.Fatalf("ReadFile(dst) failed: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("copy content = %q", got)
	}
	// Source untouched.
	src, _ := b.ReadFile(ctx, "/src")
	if string(src) != "payload" {
		t.Errorf("source content = %q", src)
	}
}

func testRenameFile(t *testing.T, factory Factory) {
	b := factory(t)
	ctx := context.Background()

	write(t, b, "/old", "data")
	if err := b.Rename(ctx, "/old", "/new"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if ok, _ := b.Exists(ctx, "/old"); ok {
		t.Error("old path survived rename")
	}
	got, err := b.ReadFile(ctx, "/new")
	if err != nil || string(got) != "data" {
		t.Errorf("renamed content = %q, err %v", got, err)
	}

	err = b.Rename(ctx, "/ghost", "/x")
	wantErr(t, err, vfs.ErrNotFound, "Rename missing")
}

func testRenameDir(t *testing.T, factory Factory) {
	b := factory(t)
	ctx := context.Background()

	mkdir(t, b, "/tree/inner")
	write(t, b, "/tree/f1", "one")
	write(t, b, "/tree/inner/f2", "two")

	if err := b.Rename(ctx, "/tree", "/moved"); err != nil {
		t.Fatalf("Rename dir failed: %v", err)
	}
	if ok, _ := b.Exists(ctx, "/tree"); ok {
		t.Error("old tree survived rename")
	}
	for path, want := range map[string]string{
		"/moved/f1":       "one",
		"/moved/inner/f2": "two",
	} {
		got, err := b.ReadFile(ctx, path)
		if err != nil || string(got) != want {
			t.Errorf("ReadFile(%s) = %q, err %v, want %q", path, got, err, want)
		}
	}
}
