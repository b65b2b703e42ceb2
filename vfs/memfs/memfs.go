// Package memfs implements the ephemeral in-memory filesystem backend.
// Objects live in a tree of tagged nodes keyed by name within each
// directory; Destroy drops everything.
package memfs

import (
	"context"
	"sort"

	"bavini/vfs"
	"bavini/vpath"
)

// node is a single file or directory. children is nil for files.
type node struct {
	children map[string]*node
	data     []byte
	stat     vfs.FileStat
}

func (n *node) isDir() bool { return n.stat.IsDir }

// Backend is the in-memory filesystem. Not safe for concurrent mutation;
// the single-threaded execution model serializes all calls.
type Backend struct {
	root   *node
	closed bool
}

// New creates an empty in-memory backend. Init must still be called.
func New() *Backend {
	return &Backend{}
}

// Init creates the root directory. Idempotent.
func (b *Backend) Init(ctx context.Context) error {
	if b.root == nil {
		b.root = &node{
			children: map[string]*node{},
			stat:     vfs.NewFileStat(true, 0, vfs.DefaultDirMode),
		}
	}
	b.closed = false
	return nil
}

// Destroy discards all state.
func (b *Backend) Destroy(ctx context.Context) error {
	b.root = nil
	b.closed = true
	return nil
}

// Capabilities reports the ephemeral profile.
func (b *Backend) Capabilities() vfs.Capabilities {
	return vfs.Capabilities{Persistent: false, SyncAccess: true}
}

// getNode walks the segments of a canonical path. A directory step through
// a file yields nil.
func (b *Backend) getNode(path string) *node {
	if b.root == nil {
		return nil
	}
	cur := b.root
	for _, seg := range segments(path) {
		if !cur.isDir() {
			return nil
		}
		next, ok := cur.children[seg]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// getParent returns the parent directory node of path, or nil.
func (b *Backend) getParent(path string) *node {
	parent := b.getNode(vpath.Dirname(path))
	if parent == nil || !parent.isDir() {
		return nil
	}
	return parent
}

func segments(path string) []string {
	p := vpath.Normalize(path, "/")
	if p == "/" {
		return nil
	}
	out := []string{}
	start := 1
	for i := 1; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			out = append(out, p[start:i])
			start = i + 1
		}
	}
	return out
}

func (b *Backend) check() error {
	if b.closed || b.root == nil {
		return vfs.ErrClosed
	}
	return nil
}

// ReadFile returns a copy of the file's bytes and refreshes its atime.
func (b *Backend) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	n := b.getNode(path)
	if n == nil {
		return nil, vfs.NewPathError("read", path, vfs.ErrNotFound)
	}
	if n.isDir() {
		return nil, vfs.NewPathError("read", path, vfs.ErrIsDir)
	}
	n.stat.Atime = vfs.NowMillis()
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

// WriteFile creates or overwrites a file. Overwrites keep Birthtime/Ctime.
func (b *Backend) WriteFile(ctx context.Context, path string, data []byte, opts vfs.WriteOptions) error {
	if err := b.check(); err != nil {
		return err
	}
	p := vpath.Normalize(path, "/")
	if p == "/" {
		return vfs.NewPathError("write", path, vfs.ErrIsDir)
	}

	if existing := b.getNode(p); existing != nil {
		if existing.isDir() {
			return vfs.NewPathError("write", path, vfs.ErrIsDir)
		}
		existing.data = append([]byte(nil), data...)
		now := vfs.NowMillis()
		existing.stat.Size = int64(len(data))
		existing.stat.Mtime = now
		existing.stat.Atime = now
		if opts.Mode != 0 {
			existing.stat.Mode = opts.Mode
		}
		return nil
	}

	parent := b.getParent(p)
	if parent == nil {
		if !opts.CreateParents {
			return vfs.NewPathError("write", path, vfs.ErrNotFound)
		}
		if err := b.Mkdir(ctx, vpath.Dirname(p), vfs.MkdirOptions{Recursive: true}); err != nil {
			return err
		}
		parent = b.getParent(p)
		if parent == nil {
			return vfs.NewPathError("write", path, vfs.ErrNotDir)
		}
	}

	child := &node{
		data: append([]byte(nil), data...),
		stat: vfs.NewFileStat(false, int64(len(data)), opts.Mode),
	}
	parent.children[vpath.Basename(p)] = child
	parent.stat.Mtime = vfs.NowMillis()
	return nil
}

// Unlink removes a file.
func (b *Backend) Unlink(ctx context.Context, path string) error {
	if err := b.check(); err != nil {
		return err
	}
	p := vpath.Normalize(path, "/")
	n := b.getNode(p)
	if n == nil {
		return vfs.NewPathError("unlink", path, vfs.ErrNotFound)
	}
	if n.isDir() {
		return vfs.NewPathError("unlink", path, vfs.ErrIsDir)
	}
	parent := b.getParent(p)
	delete(parent.children, vpath.Basename(p))
	parent.stat.Mtime = vfs.NowMillis()
	return nil
}

// CopyFile duplicates src's bytes at dest. The copy gets fresh timestamps.
func (b *Backend) CopyFile(ctx context.Context, src, dest string) error {
	data, err := b.ReadFile(ctx, src)
	if err != nil {
		return err
	}
	return b.WriteFile(ctx, dest, data, vfs.WriteOptions{})
}

// Mkdir creates a directory.
func (b *Backend) Mkdir(ctx context.Context, path string, opts vfs.MkdirOptions) error {
	if err := b.check(); err != nil {
		return err
	}
	p := vpath.Normalize(path, "/")
	if p == "/" {
		if opts.Recursive {
			return nil
		}
		return vfs.NewPathError("mkdir", path, vfs.ErrExists)
	}

	if existing := b.getNode(p); existing != nil {
		if existing.isDir() && opts.Recursive {
			return nil
		}
		return vfs.NewPathError("mkdir", path, vfs.ErrExists)
	}

	if opts.Recursive {
		for _, ancestor := range vpath.Ancestors(p) {
			if ancestor == "/" {
				continue
			}
			n := b.getNode(ancestor)
			if n != nil {
				if !n.isDir() {
					return vfs.NewPathError("mkdir", ancestor, vfs.ErrNotDir)
				}
				continue
			}
			parent := b.getParent(ancestor)
			parent.children[vpath.Basename(ancestor)] = &node{
				children: map[string]*node{},
				stat:     vfs.NewFileStat(true, 0, opts.Mode),
			}
			parent.stat.Mtime = vfs.NowMillis()
		}
		return nil
	}

	parent := b.getParent(p)
	if parent == nil {
		return vfs.NewPathError("mkdir", path, vfs.ErrNotFound)
	}
	parent.children[vpath.Basename(p)] = &node{
		children: map[string]*node{},
		stat:     vfs.NewFileStat(true, 0, opts.Mode),
	}
	parent.stat.Mtime = vfs.NowMillis()
	return nil
}

// Rmdir removes a directory. Root is never removable.
func (b *Backend) Rmdir(ctx context.Context, path string, opts vfs.RmdirOptions) error {
	if err := b.check(); err != nil {
		return err
	}
	p := vpath.Normalize(path, "/")
	if p == "/" {
		return vfs.NewPathError("rmdir", path, vfs.ErrInvalid)
	}
	n := b.getNode(p)
	if n == nil {
		return vfs.NewPathError("rmdir", path, vfs.ErrNotFound)
	}
	if !n.isDir() {
		return vfs.NewPathError("rmdir", path, vfs.ErrNotDir)
	}
	if len(n.children) > 0 && !opts.Recursive {
		return vfs.NewPathError("rmdir", path, vfs.ErrNotEmpty)
	}
	parent := b.getParent(p)
	delete(parent.children, vpath.Basename(p))
	parent.stat.Mtime = vfs.NowMillis()
	return nil
}

// ReadDir lists child names sorted alphabetically.
func (b *Backend) ReadDir(ctx context.Context, path string) ([]string, error) {
	entries, err := b.ReadDirTypes(ctx, path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

// ReadDirTypes lists child entries sorted alphabetically.
func (b *Backend) ReadDirTypes(ctx context.Context, path string) ([]vfs.DirEntry, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	n := b.getNode(path)
	if n == nil {
		return nil, vfs.NewPathError("readdir", path, vfs.ErrNotFound)
	}
	if !n.isDir() {
		return nil, vfs.NewPathError("readdir", path, vfs.ErrNotDir)
	}
	n.stat.Atime = vfs.NowMillis()
	entries := make([]vfs.DirEntry, 0, len(n.children))
	for name, child := range n.children {
		entries = append(entries, vfs.DirEntry{
			Name:   name,
			IsFile: !child.isDir(),
			IsDir:  child.isDir(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Stat returns a copy of the node's metadata.
func (b *Backend) Stat(ctx context.Context, path string) (vfs.FileStat, error) {
	if err := b.check(); err != nil {
		return vfs.FileStat{}, err
	}
	n := b.getNode(path)
	if n == nil {
		return vfs.FileStat{}, vfs.NewPathError("stat", path, vfs.ErrNotFound)
	}
	return n.stat, nil
}

// Exists reports whether path names any object.
func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	if err := b.check(); err != nil {
		return false, err
	}
	return b.getNode(path) != nil, nil
}

// Rename moves a file or directory subtree. Within the tree this is a
// single pointer move.
func (b *Backend) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := b.check(); err != nil {
		return err
	}
	op := vpath.Normalize(oldPath, "/")
	np := vpath.Normalize(newPath, "/")
	if op == "/" || np == "/" {
		return vfs.NewPathError("rename", oldPath, vfs.ErrInvalid)
	}
	if op == np {
		return nil
	}
	if vpath.IsInside(op, np) {
		return vfs.NewPathError("rename", newPath, vfs.ErrInvalid)
	}
	n := b.getNode(op)
	if n == nil {
		return vfs.NewPathError("rename", oldPath, vfs.ErrNotFound)
	}
	newParent := b.getParent(np)
	if newParent == nil {
		return vfs.NewPathError("rename", newPath, vfs.ErrNotFound)
	}
	if existing := b.getNode(np); existing != nil && existing.isDir() != n.isDir() {
		if existing.isDir() {
			return vfs.NewPathError("rename", newPath, vfs.ErrIsDir)
		}
		return vfs.NewPathError("rename", newPath, vfs.ErrNotDir)
	}

	oldParent := b.getParent(op)
	delete(oldParent.children, vpath.Basename(op))
	newParent.children[vpath.Basename(np)] = n
	now := vfs.NowMillis()
	oldParent.stat.Mtime = now
	newParent.stat.Mtime = now
	n.stat.Ctime = now
	return nil
}
