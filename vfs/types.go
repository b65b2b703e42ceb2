// Package vfs defines the uniform filesystem contract implemented by all
// storage backends, together with the stat/dirent shapes and the error
// taxonomy shared across them.
package vfs

import "time"

// FileStat describes a single filesystem object. Exactly one of IsFile and
// IsDir is true. Timestamps are milliseconds since the Unix epoch; Ctime
// and Birthtime are fixed at creation and only change on rename or recreate.
type FileStat struct {
	IsFile    bool
	IsDir     bool
	Size      int64
	Mode      uint32
	Mtime     int64
	Atime     int64
	Ctime     int64
	Birthtime int64
}

// DirEntry is one entry of a directory listing. Name is the unqualified
// child name, never a full path.
type DirEntry struct {
	Name   string
	IsFile bool
	IsDir  bool
}

// Capabilities advertises what a backend can do. Zero values for the size
// limits mean unlimited.
type Capabilities struct {
	Persistent  bool
	SyncAccess  bool
	Watchable   bool
	MaxFileSize int64
	MaxStorage  int64
}

// WriteOptions controls WriteFile behavior.
type WriteOptions struct {
	// CreateParents makes missing ancestor directories instead of failing
	// with ErrNotFound.
	CreateParents bool

	// Mode is the advisory permission bits for the file. On create, zero
	// means DefaultFileMode; on overwrite, a non-zero Mode replaces the
	// file's mode and zero keeps it.
	Mode uint32
}

// MkdirOptions controls Mkdir behavior.
type MkdirOptions struct {
	Recursive bool
	Mode      uint32
}

// RmdirOptions controls Rmdir behavior.
type RmdirOptions struct {
	Recursive bool
}

// Advisory defaults applied when a caller passes mode 0.
const (
	DefaultFileMode uint32 = 0o644
	DefaultDirMode  uint32 = 0o755
)

// NowMillis returns the current wall clock in the timestamp unit used by
// FileStat.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// NewFileStat builds the stat record for a freshly created object, with all
// four timestamps set to now.
func NewFileStat(isDir bool, size int64, mode uint32) FileStat {
	now := NowMillis()
	if mode == 0 {
		if isDir {
			mode = DefaultDirMode
		} else {
			mode = DefaultFileMode
		}
	}
	return FileStat{
		IsFile:    !isDir,
		IsDir:     isDir,
		Size:      size,
		Mode:      mode,
		Mtime:     now,
		Atime:     now,
		Ctime:     now,
		Birthtime: now,
	}
}
