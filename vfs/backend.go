package vfs

import "context"

// WatchEvent describes a change observed by a watching backend.
type WatchEvent struct {
	Path string
	Op   string // "create" | "write" | "remove" | "rename"
}

// WatchHandle cancels an active watch.
type WatchHandle interface {
	Close() error
}

// Backend is the uniform filesystem contract. All paths are canonical
// absolute paths within the backend's own namespace (the mount manager
// strips the mount prefix before routing). Every operation takes a
// context and may fail with one of the sentinel errors in errors.go,
// usually wrapped in a *PathError.
//
// Contracts every implementation upholds:
//   - ReadFile on a directory fails with ErrIsDir, on a missing path with
//     ErrNotFound, and refreshes the file's atime.
//   - WriteFile on an existing directory fails with ErrIsDir. Missing
//     parents are created only when opts.CreateParents is set. An
//     overwrite preserves Birthtime and Ctime and refreshes Mtime/Atime.
//   - Mkdir without Recursive fails with ErrNotFound when the parent is
//     missing; an existing path succeeds only if it is already a directory
//     and Recursive is set, otherwise ErrExists.
//   - Rmdir of "/" fails with ErrInvalid; of a non-empty directory without
//     Recursive with ErrNotEmpty.
//   - ReadDir and ReadDirTypes on a file fail with ErrNotDir.
//   - Rename of a directory moves the whole subtree (copy-then-delete is
//     acceptable).
//   - Any content or child-set change refreshes the object's Mtime, and a
//     child add/remove refreshes the parent directory's Mtime.
type Backend interface {
	// Init prepares the backend for use. It must be called before any
	// other operation and must be idempotent.
	Init(ctx context.Context) error

	// Destroy releases the backend's resources. Ephemeral backends drop
	// all state; persistent backends close their stores.
	Destroy(ctx context.Context) error

	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte, opts WriteOptions) error
	Unlink(ctx context.Context, path string) error
	CopyFile(ctx context.Context, src, dest string) error

	Mkdir(ctx context.Context, path string, opts MkdirOptions) error
	Rmdir(ctx context.Context, path string, opts RmdirOptions) error
	ReadDir(ctx context.Context, path string) ([]string, error)
	ReadDirTypes(ctx context.Context, path string) ([]DirEntry, error)

	Stat(ctx context.Context, path string) (FileStat, error)
	Exists(ctx context.Context, path string) (bool, error)
	Rename(ctx context.Context, oldPath, newPath string) error

	Capabilities() Capabilities
}

// Flusher is implemented by backends that buffer writes.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Watcher is implemented by backends whose Capabilities report Watchable.
type Watcher interface {
	Watch(ctx context.Context, path string, cb func(WatchEvent)) (WatchHandle, error)
}
