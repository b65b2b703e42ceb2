// Package dirfs implements the filesystem backend on top of a native host
// directory handle. The host layer has no room for the virtual mode and
// timestamp set, so each directory carries one metadata sidecar file per
// entry, named with a reserved prefix. Sidecars are a contract: they are
// never listed, never statable through the backend, and user names with the
// prefix are rejected outright.
package dirfs

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bavini/vfs"
	"bavini/vpath"
)

// MetaPrefix is the reserved sidecar name prefix.
const MetaPrefix = ".bavini_meta_"

// Backend stores the virtual tree under a host root directory.
type Backend struct {
	root   string
	closed bool
}

// New creates a backend rooted at the host directory root. Init creates
// the directory when missing.
func New(root string) *Backend {
	return &Backend{root: root}
}

// Init makes sure the host root exists. Idempotent.
func (b *Backend) Init(ctx context.Context) error {
	if err := os.MkdirAll(b.root, 0o755); err != nil {
		return vfs.NewPathError("init", "/", err)
	}
	b.closed = false
	return nil
}

// Destroy detaches from the host directory. The stored tree survives.
func (b *Backend) Destroy(ctx context.Context) error {
	b.closed = true
	return nil
}

// Capabilities reports the persistent async profile. MaxStorage comes from
// the host filesystem when the platform exposes it.
func (b *Backend) Capabilities() vfs.Capabilities {
	return vfs.Capabilities{
		Persistent: true,
		SyncAccess: false,
		Watchable:  true,
		MaxStorage: freeSpace(b.root),
	}
}

func (b *Backend) check() error {
	if b.closed {
		return vfs.ErrClosed
	}
	return nil
}

// checkPath normalizes and rejects reserved sidecar names in any segment.
func (b *Backend) checkPath(op, path string) (string, error) {
	p := vpath.Normalize(path, "/")
	if p != "/" {
		for _, seg := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
			if strings.HasPrefix(seg, MetaPrefix) {
				return "", vfs.NewPathError(op, path, vfs.ErrInvalid)
			}
		}
	}
	return p, nil
}

// hostPath maps a canonical virtual path to the backing host path.
func (b *Backend) hostPath(p string) string {
	if p == "/" {
		return b.root
	}
	return filepath.Join(b.root, filepath.FromSlash(strings.TrimPrefix(p, "/")))
}

// ReadFile returns the file bytes and refreshes the sidecar atime.
func (b *Backend) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	p, err := b.checkPath("read", path)
	if err != nil {
		return nil, err
	}
	host := b.hostPath(p)
	info, err := os.Stat(host)
	if err != nil {
		return nil, vfs.NewPathError("read", path, vfs.ErrNotFound)
	}
	if info.IsDir() {
		return nil, vfs.NewPathError("read", path, vfs.ErrIsDir)
	}
	data, err := os.ReadFile(host)
	if err != nil {
		return nil, vfs.NewPathError("read", path, err)
	}
	meta := b.loadMeta(p, info)
	meta.Atime = vfs.NowMillis()
	b.storeMeta(p, meta)
	return data, nil
}

// WriteFile writes bytes via a short-lived writer and updates the sidecar.
func (b *Backend) WriteFile(ctx context.Context, path string, data []byte, opts vfs.WriteOptions) error {
	if err := b.check(); err != nil {
		return err
	}
	p, err := b.checkPath("write", path)
	if err != nil {
		return err
	}
	if p == "/" {
		return vfs.NewPathError("write", path, vfs.ErrIsDir)
	}
	host := b.hostPath(p)

	if info, err := os.Stat(host); err == nil && info.IsDir() {
		return vfs.NewPathError("write", path, vfs.ErrIsDir)
	}

	parentHost := filepath.Dir(host)
	if _, err := os.Stat(parentHost); err != nil {
		if !opts.CreateParents {
			return vfs.NewPathError("write", path, vfs.ErrNotFound)
		}
		if err := b.Mkdir(ctx, vpath.Dirname(p), vfs.MkdirOptions{Recursive: true}); err != nil {
			return err
		}
	}

	existing, hadMeta := b.readMeta(p)
	if err := os.WriteFile(host, data, 0o644); err != nil {
		return vfs.NewPathError("write", path, err)
	}

	now := vfs.NowMillis()
	var meta metaRecord
	if hadMeta {
		meta = existing
		meta.Mtime = now
		meta.Atime = now
		if opts.Mode != 0 {
			meta.Mode = opts.Mode
		}
	} else {
		st := vfs.NewFileStat(false, int64(len(data)), opts.Mode)
		meta = metaFromStat(st)
		b.touchDirMeta(vpath.Dirname(p), now)
	}
	b.storeMeta(p, meta)
	return nil
}

// Unlink removes a file and its sidecar.
func (b *Backend) Unlink(ctx context.Context, path string) error {
	if err := b.check(); err != nil {
		return err
	}
	p, err := b.checkPath("unlink", path)
	if err != nil {
		return err
	}
	host := b.hostPath(p)
	info, err := os.Stat(host)
	if err != nil {
		return vfs.NewPathError("unlink", path, vfs.ErrNotFound)
	}
	if info.IsDir() {
		return vfs.NewPathError("unlink", path, vfs.ErrIsDir)
	}
	if err := os.Remove(host); err != nil {
		return vfs.NewPathError("unlink", path, err)
	}
	b.removeMeta(p)
	b.touchDirMeta(vpath.Dirname(p), vfs.NowMillis())
	return nil
}

// CopyFile duplicates src at dest with fresh timestamps.
func (b *Backend) CopyFile(ctx context.Context, src, dest string) error {
	data, err := b.ReadFile(ctx, src)
	if err != nil {
		return err
	}
	return b.WriteFile(ctx, dest, data, vfs.WriteOptions{})
}

// Mkdir creates a host directory and its sidecar.
func (b *Backend) Mkdir(ctx context.Context, path string, opts vfs.MkdirOptions) error {
	if err := b.check(); err != nil {
		return err
	}
	p, err := b.checkPath("mkdir", path)
	if err != nil {
		return err
	}
	if p == "/" {
		if opts.Recursive {
			return nil
		}
		return vfs.NewPathError("mkdir", path, vfs.ErrExists)
	}
	host := b.hostPath(p)

	if info, err := os.Stat(host); err == nil {
		if info.IsDir() && opts.Recursive {
			return nil
		}
		return vfs.NewPathError("mkdir", path, vfs.ErrExists)
	}

	now := vfs.NowMillis()
	if opts.Recursive {
		for _, ancestor := range vpath.Ancestors(p) {
			if ancestor == "/" {
				continue
			}
			ancestorHost := b.hostPath(ancestor)
			if info, err := os.Stat(ancestorHost); err == nil {
				if !info.IsDir() {
					return vfs.NewPathError("mkdir", ancestor, vfs.ErrNotDir)
				}
				continue
			}
			if err := os.Mkdir(ancestorHost, 0o755); err != nil {
				return vfs.NewPathError("mkdir", ancestor, err)
			}
			b.storeMeta(ancestor, metaFromStat(vfs.NewFileStat(true, 0, opts.Mode)))
			b.touchDirMeta(vpath.Dirname(ancestor), now)
		}
		return nil
	}

	if _, err := os.Stat(filepath.Dir(host)); err != nil {
		return vfs.NewPathError("mkdir", path, vfs.ErrNotFound)
	}
	if err := os.Mkdir(host, 0o755); err != nil {
		return vfs.NewPathError("mkdir", path, err)
	}
	b.storeMeta(p, metaFromStat(vfs.NewFileStat(true, 0, opts.Mode)))
	b.touchDirMeta(vpath.Dirname(p), now)
	return nil
}

// Rmdir removes a directory. A directory holding only sidecars is empty.
func (b *Backend) Rmdir(ctx context.Context, path string, opts vfs.RmdirOptions) error {
	if err := b.check(); err != nil {
		return err
	}
	p, err := b.checkPath("rmdir", path)
	if err != nil {
		return err
	}
	if p == "/" {
		return vfs.NewPathError("rmdir", path, vfs.ErrInvalid)
	}
	host := b.hostPath(p)
	info, err := os.Stat(host)
	if err != nil {
		return vfs.NewPathError("rmdir", path, vfs.ErrNotFound)
	}
	if !info.IsDir() {
		return vfs.NewPathError("rmdir", path, vfs.ErrNotDir)
	}

	children, err := b.ReadDir(ctx, p)
	if err != nil {
		return err
	}
	if len(children) > 0 && !opts.Recursive {
		return vfs.NewPathError("rmdir", path, vfs.ErrNotEmpty)
	}
	if err := os.RemoveAll(host); err != nil {
		return vfs.NewPathError("rmdir", path, err)
	}
	b.removeMeta(p)
	b.touchDirMeta(vpath.Dirname(p), vfs.NowMillis())
	return nil
}

// listEntries reads host entries with the sidecar filter applied.
func (b *Backend) listEntries(op, path string) (string, []os.DirEntry, error) {
	p, err := b.checkPath(op, path)
	if err != nil {
		return "", nil, err
	}
	host := b.hostPath(p)
	info, err := os.Stat(host)
	if err != nil {
		return "", nil, vfs.NewPathError(op, path, vfs.ErrNotFound)
	}
	if !info.IsDir() {
		return "", nil, vfs.NewPathError(op, path, vfs.ErrNotDir)
	}
	raw, err := os.ReadDir(host)
	if err != nil {
		return "", nil, vfs.NewPathError(op, path, err)
	}
	filtered := raw[:0]
	for _, e := range raw {
		if strings.HasPrefix(e.Name(), MetaPrefix) {
			continue
		}
		filtered = append(filtered, e)
	}
	return p, filtered, nil
}

// ReadDir lists direct child names, sidecars excluded.
func (b *Backend) ReadDir(ctx context.Context, path string) ([]string, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	_, entries, err := b.listEntries("readdir", path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}

// ReadDirTypes lists direct child entries, sidecars excluded.
func (b *Backend) ReadDirTypes(ctx context.Context, path string) ([]vfs.DirEntry, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	_, entries, err := b.listEntries("readdir", path)
	if err != nil {
		return nil, err
	}
	out := make([]vfs.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = vfs.DirEntry{Name: e.Name(), IsFile: !e.IsDir(), IsDir: e.IsDir()}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Stat combines host size/kind with sidecar timestamps and mode.
func (b *Backend) Stat(ctx context.Context, path string) (vfs.FileStat, error) {
	if err := b.check(); err != nil {
		return vfs.FileStat{}, err
	}
	p, err := b.checkPath("stat", path)
	if err != nil {
		return vfs.FileStat{}, err
	}
	info, err := os.Stat(b.hostPath(p))
	if err != nil {
		return vfs.FileStat{}, vfs.NewPathError("stat", path, vfs.ErrNotFound)
	}
	meta := b.loadMeta(p, info)
	st := meta.toStat(info.IsDir())
	if !info.IsDir() {
		st.Size = info.Size()
	}
	return st, nil
}

// Exists reports whether path names any object.
func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	if err := b.check(); err != nil {
		return false, err
	}
	p, err := b.checkPath("exists", path)
	if err != nil {
		return false, err
	}
	_, statErr := os.Stat(b.hostPath(p))
	return statErr == nil, nil
}

// Rename moves a file or directory subtree by recursive copy-then-delete,
// carrying the sidecar metadata along.
func (b *Backend) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := b.check(); err != nil {
		return err
	}
	op, err := b.checkPath("rename", oldPath)
	if err != nil {
		return err
	}
	np, err := b.checkPath("rename", newPath)
	if err != nil {
		return err
	}
	if op == "/" || np == "/" {
		return vfs.NewPathError("rename", oldPath, vfs.ErrInvalid)
	}
	if op == np {
		return nil
	}
	if vpath.IsInside(op, np) {
		return vfs.NewPathError("rename", newPath, vfs.ErrInvalid)
	}

	info, err := os.Stat(b.hostPath(op))
	if err != nil {
		return vfs.NewPathError("rename", oldPath, vfs.ErrNotFound)
	}
	if _, err := os.Stat(filepath.Dir(b.hostPath(np))); err != nil {
		return vfs.NewPathError("rename", newPath, vfs.ErrNotFound)
	}

	if info.IsDir() {
		if err := b.copyTree(ctx, op, np); err != nil {
			return err
		}
		if err := os.RemoveAll(b.hostPath(op)); err != nil {
			return vfs.NewPathError("rename", oldPath, err)
		}
	} else {
		meta, hadMeta := b.readMeta(op)
		if err := b.CopyFile(ctx, op, np); err != nil {
			return err
		}
		if hadMeta {
			b.storeMeta(np, meta)
		}
		if err := os.Remove(b.hostPath(op)); err != nil {
			return vfs.NewPathError("rename", oldPath, err)
		}
	}
	b.removeMeta(op)
	now := vfs.NowMillis()
	b.touchDirMeta(vpath.Dirname(op), now)
	b.touchDirMeta(vpath.Dirname(np), now)
	return nil
}

// copyTree replicates the directory at src under dest.
func (b *Backend) copyTree(ctx context.Context, src, dest string) error {
	if err := b.Mkdir(ctx, dest, vfs.MkdirOptions{Recursive: true}); err != nil {
		return err
	}
	if meta, ok := b.readMeta(src); ok {
		b.storeMeta(dest, meta)
	}
	entries, err := b.ReadDirTypes(ctx, src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		from := vpath.Join(src, e.Name)
		to := vpath.Join(dest, e.Name)
		if e.IsDir {
			if err := b.copyTree(ctx, from, to); err != nil {
				return err
			}
			continue
		}
		meta, hadMeta := b.readMeta(from)
		if err := b.CopyFile(ctx, from, to); err != nil {
			return err
		}
		if hadMeta {
			b.storeMeta(to, meta)
		}
	}
	return nil
}
