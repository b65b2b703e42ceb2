// Package mount routes filesystem operations across backends. A mount
// binds a canonical path prefix to one backend; the manager keeps the
// mount table sorted by descending path length so the longest prefix wins.
package mount

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"bavini/log"
	"bavini/vfs"
	"bavini/vpath"
)

// Mount binds a path prefix to a backend. Each backend is owned by exactly
// one mount; unmounting destroys it.
type Mount struct {
	ID       string
	Path     string
	Backend  vfs.Backend
	ReadOnly bool
}

// Manager owns the mount table and routes every operation to the backend
// whose mount path is the longest prefix of the target.
type Manager struct {
	mounts []*Mount
	logger log.LibraryLogger
}

// NewManager creates an empty manager. A nil logger is replaced by NoOp.
func NewManager(logger log.LibraryLogger) *Manager {
	if logger == nil {
		logger = log.NoOpLogger{}
	}
	return &Manager{logger: logger}
}

// Mounts returns a copy of the mount table, longest path first.
func (m *Manager) Mounts() []*Mount {
	out := make([]*Mount, len(m.mounts))
	copy(out, m.mounts)
	return out
}

// Mount initializes backend and binds it at path. Two mounts can never
// share a normalized path.
func (m *Manager) Mount(ctx context.Context, path string, backend vfs.Backend, readOnly bool) error {
	p := vpath.Normalize(path, "/")
	for _, mt := range m.mounts {
		if mt.Path == p {
			return fmt.Errorf("mount %s: %w", p, vfs.ErrExists)
		}
	}
	if err := backend.Init(ctx); err != nil {
		return fmt.Errorf("mount %s: %w", p, err)
	}
	m.mounts = append(m.mounts, &Mount{
		ID:       uuid.New().String(),
		Path:     p,
		Backend:  backend,
		ReadOnly: readOnly,
	})
	sort.Slice(m.mounts, func(i, j int) bool {
		return len(m.mounts[i].Path) > len(m.mounts[j].Path)
	})
	m.logger.Info("mounted %s (readonly=%v)", p, readOnly)
	return nil
}

// Unmount removes the mount at path and destroys its backend.
func (m *Manager) Unmount(ctx context.Context, path string) error {
	p := vpath.Normalize(path, "/")
	for i, mt := range m.mounts {
		if mt.Path == p {
			m.mounts = append(m.mounts[:i], m.mounts[i+1:]...)
			m.logger.Info("unmounted %s", p)
			return mt.Backend.Destroy(ctx)
		}
	}
	return fmt.Errorf("unmount %s: %w", p, vfs.ErrNotFound)
}

// UnmountAll tears down every mount, deepest first.
func (m *Manager) UnmountAll(ctx context.Context) error {
	var firstErr error
	for _, mt := range m.mounts {
		if err := mt.Backend.Destroy(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.mounts = nil
	return firstErr
}

// route resolves p to its mount and the path relative to the mount root.
func (m *Manager) route(path string) (*Mount, string, error) {
	p := vpath.Normalize(path, "/")
	for _, mt := range m.mounts {
		if !vpath.IsInside(mt.Path, p) {
			continue
		}
		rel := "/"
		if p != mt.Path {
			if mt.Path == "/" {
				rel = p
			} else {
				rel = p[len(mt.Path):]
			}
		}
		return mt, rel, nil
	}
	return nil, "", vfs.NewPathError("route", path, vfs.ErrNotFound)
}

func (m *Manager) routeWrite(op, path string) (*Mount, string, error) {
	mt, rel, err := m.route(path)
	if err != nil {
		return nil, "", err
	}
	if mt.ReadOnly {
		return nil, "", vfs.NewPathError(op, path, vfs.ErrAccessDenied)
	}
	return mt, rel, nil
}

// childMounts lists the names of mounts that are direct children of p.
func (m *Manager) childMounts(p string) []string {
	var names []string
	for _, mt := range m.mounts {
		if mt.Path == "/" || mt.Path == p {
			continue
		}
		if vpath.Dirname(mt.Path) == p {
			names = append(names, vpath.Basename(mt.Path))
		}
	}
	return names
}

// ReadFile routes a file read.
func (m *Manager) ReadFile(ctx context.Context, path string) ([]byte, error) {
	mt, rel, err := m.route(path)
	if err != nil {
		return nil, err
	}
	return mt.Backend.ReadFile(ctx, rel)
}

// ReadTextFile reads a file and returns its content as a string.
func (m *Manager) ReadTextFile(ctx context.Context, path string) (string, error) {
	data, err := m.ReadFile(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile routes a file write, enforcing read-only mounts.
func (m *Manager) WriteFile(ctx context.Context, path string, data []byte, opts vfs.WriteOptions) error {
	mt, rel, err := m.routeWrite("write", path)
	if err != nil {
		return err
	}
	return mt.Backend.WriteFile(ctx, rel, data, opts)
}

// WriteTextFile writes a string with parent creation.
func (m *Manager) WriteTextFile(ctx context.Context, path, content string) error {
	return m.WriteFile(ctx, path, []byte(content), vfs.WriteOptions{CreateParents: true})
}

// Unlink routes a file removal.
func (m *Manager) Unlink(ctx context.Context, path string) error {
	mt, rel, err := m.routeWrite("unlink", path)
	if err != nil {
		return err
	}
	return mt.Backend.Unlink(ctx, rel)
}

// CopyFile copies a file, crossing mounts through read+write when source
// and destination live on different backends.
func (m *Manager) CopyFile(ctx context.Context, src, dest string) error {
	sm, srel, err := m.route(src)
	if err != nil {
		return err
	}
	dm, drel, err := m.routeWrite("copy", dest)
	if err != nil {
		return err
	}
	if sm == dm {
		return sm.Backend.CopyFile(ctx, srel, drel)
	}
	data, err := sm.Backend.ReadFile(ctx, srel)
	if err != nil {
		return err
	}
	return dm.Backend.WriteFile(ctx, drel, data, vfs.WriteOptions{})
}

// Mkdir routes a directory creation.
func (m *Manager) Mkdir(ctx context.Context, path string, opts vfs.MkdirOptions) error {
	mt, rel, err := m.routeWrite("mkdir", path)
	if err != nil {
		return err
	}
	return mt.Backend.Mkdir(ctx, rel, opts)
}

// Rmdir routes a directory removal. Removing a mount point itself is a
// topology change and is rejected; use Unmount.
func (m *Manager) Rmdir(ctx context.Context, path string, opts vfs.RmdirOptions) error {
	mt, rel, err := m.routeWrite("rmdir", path)
	if err != nil {
		return err
	}
	if rel == "/" && mt.Path != "/" {
		return vfs.NewPathError("rmdir", path, vfs.ErrInvalid)
	}
	return mt.Backend.Rmdir(ctx, rel, opts)
}

// ReadDir lists child names, composing backend entries with direct-child
// mount points.
func (m *Manager) ReadDir(ctx context.Context, path string) ([]string, error) {
	entries, err := m.ReadDirTypes(ctx, path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

// ReadDirTypes lists child entries. Mount points that are direct children
// of path appear as synthetic directory entries, deduplicated against the
// backend's own listing.
func (m *Manager) ReadDirTypes(ctx context.Context, path string) ([]vfs.DirEntry, error) {
	p := vpath.Normalize(path, "/")
	mt, rel, err := m.route(p)
	if err != nil {
		return nil, err
	}
	entries, readErr := mt.Backend.ReadDirTypes(ctx, rel)
	synthetic := m.childMounts(p)
	if readErr != nil {
		// A directory absent from the parent backend still lists when
		// mounts sit directly beneath it; they have no physical record
		// there.
		if len(synthetic) > 0 && vfs.IsNotFound(readErr) {
			entries = nil
		} else {
			return nil, readErr
		}
	}
	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.Name] = true
	}
	for _, name := range synthetic {
		if seen[name] {
			continue
		}
		entries = append(entries, vfs.DirEntry{Name: name, IsDir: true})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Stat routes a metadata read.
func (m *Manager) Stat(ctx context.Context, path string) (vfs.FileStat, error) {
	mt, rel, err := m.route(path)
	if err != nil {
		return vfs.FileStat{}, err
	}
	return mt.Backend.Stat(ctx, rel)
}

// Exists routes an existence check.
func (m *Manager) Exists(ctx context.Context, path string) (bool, error) {
	mt, rel, err := m.route(path)
	if err != nil {
		return false, err
	}
	return mt.Backend.Exists(ctx, rel)
}

// Rename moves a file or directory. Within one mount the backend's native
// rename runs; across mounts the manager copies recursively and then
// deletes the source.
func (m *Manager) Rename(ctx context.Context, oldPath, newPath string) error {
	sm, srel, err := m.routeWrite("rename", oldPath)
	if err != nil {
		return err
	}
	dm, drel, err := m.routeWrite("rename", newPath)
	if err != nil {
		return err
	}
	if sm == dm {
		return sm.Backend.Rename(ctx, srel, drel)
	}

	st, err := sm.Backend.Stat(ctx, srel)
	if err != nil {
		return err
	}
	op := vpath.Normalize(oldPath, "/")
	np := vpath.Normalize(newPath, "/")
	if st.IsDir {
		if err := m.copyTreeAcross(ctx, op, np); err != nil {
			return err
		}
		return sm.Backend.Rmdir(ctx, srel, vfs.RmdirOptions{Recursive: true})
	}
	if err := m.CopyFile(ctx, op, np); err != nil {
		return err
	}
	return sm.Backend.Unlink(ctx, srel)
}

// copyTreeAcross replicates the directory at src under dest through the
// manager, so every leaf routes to its own backend.
func (m *Manager) copyTreeAcross(ctx context.Context, src, dest string) error {
	if err := m.Mkdir(ctx, dest, vfs.MkdirOptions{Recursive: true}); err != nil {
		return err
	}
	entries, err := m.ReadDirTypes(ctx, src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		from := vpath.Join(src, e.Name)
		to := vpath.Join(dest, e.Name)
		if e.IsDir {
			if err := m.copyTreeAcross(ctx, from, to); err != nil {
				return err
			}
			continue
		}
		if err := m.CopyFile(ctx, from, to); err != nil {
			return err
		}
	}
	return nil
}

// MountFor exposes the routing decision for a path: the mount and the
// path relative to its root.
func (m *Manager) MountFor(path string) (*Mount, string, error) {
	return m.route(path)
}

// String renders the mount table for diagnostics, longest path first.
func (m *Manager) String() string {
	var b strings.Builder
	for _, mt := range m.mounts {
		mode := "rw"
		if mt.ReadOnly {
			mode = "ro"
		}
		kind := "volatile"
		if mt.Backend.Capabilities().Persistent {
			kind = "persistent"
		}
		fmt.Fprintf(&b, "%s on %s (%s)\n", kind, mt.Path, mode)
	}
	return b.String()
}
