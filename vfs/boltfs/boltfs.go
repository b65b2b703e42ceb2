// Package boltfs implements the persistent key-value filesystem backend on
// top of bbolt. Every object is kept as a record keyed by its canonical
// path: directory records carry only metadata, file records carry metadata
// plus an opaque content buffer in a parallel bucket.
package boltfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	bolt "go.etcd.io/bbolt"

	"bavini/vfs"
	"bavini/vpath"
)

// Bucket names for the bbolt database
const (
	BucketFiles       = "files"
	BucketDirectories = "directories"
	BucketContent     = "content"
)

// record is the JSON-encoded metadata stored for each object.
type record struct {
	Mode      uint32 `json:"mode"`
	Size      int64  `json:"size"`
	Mtime     int64  `json:"mtime"`
	Atime     int64  `json:"atime"`
	Ctime     int64  `json:"ctime"`
	Birthtime int64  `json:"birthtime"`
}

func (r record) toStat(isDir bool) vfs.FileStat {
	return vfs.FileStat{
		IsFile:    !isDir,
		IsDir:     isDir,
		Size:      r.Size,
		Mode:      r.Mode,
		Mtime:     r.Mtime,
		Atime:     r.Atime,
		Ctime:     r.Ctime,
		Birthtime: r.Birthtime,
	}
}

func fromStat(st vfs.FileStat) record {
	return record{
		Mode:      st.Mode,
		Size:      st.Size,
		Mtime:     st.Mtime,
		Atime:     st.Atime,
		Ctime:     st.Ctime,
		Birthtime: st.Birthtime,
	}
}

// Backend is the bbolt-backed filesystem.
type Backend struct {
	path string
	db   *bolt.DB
}

// New creates a backend that will store its database at path. Init opens
// the database and guarantees the root directory record.
func New(path string) *Backend {
	return &Backend{path: path}
}

// Init opens the database, creates the buckets, and ensures "/" exists as
// a directory record. Idempotent.
func (b *Backend) Init(ctx context.Context) error {
	if b.db != nil {
		return nil
	}
	db, err := bolt.Open(b.path, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{BucketFiles, BucketDirectories, BucketContent} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		dirs := tx.Bucket([]byte(BucketDirectories))
		if dirs.Get([]byte("/")) == nil {
			rec := fromStat(vfs.NewFileStat(true, 0, vfs.DefaultDirMode))
			return putRecord(dirs, "/", rec)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return err
	}
	b.db = db
	return nil
}

// Destroy closes the database file. The stored tree survives.
func (b *Backend) Destroy(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// Flush syncs the database file.
func (b *Backend) Flush(ctx context.Context) error {
	if b.db == nil {
		return vfs.ErrClosed
	}
	return b.db.Sync()
}

// Capabilities reports the persistent profile.
func (b *Backend) Capabilities() vfs.Capabilities {
	return vfs.Capabilities{Persistent: true, SyncAccess: false}
}

func putRecord(bucket *bolt.Bucket, path string, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return bucket.Put([]byte(path), data)
}

func getRecord(bucket *bolt.Bucket, path string) (record, bool, error) {
	data := bucket.Get([]byte(path))
	if data == nil {
		return record{}, false, nil
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, false, fmt.Errorf("corrupted record at %s: %w", path, err)
	}
	return rec, true, nil
}

func (b *Backend) check() error {
	if b.db == nil {
		return vfs.ErrClosed
	}
	return nil
}

// ReadFile returns the file's content buffer and refreshes its atime.
func (b *Backend) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	p := vpath.Normalize(path, "/")
	var out []byte
	err := b.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket([]byte(BucketFiles))
		rec, ok, err := getRecord(files, p)
		if err != nil {
			return err
		}
		if !ok {
			if tx.Bucket([]byte(BucketDirectories)).Get([]byte(p)) != nil {
				return vfs.NewPathError("read", path, vfs.ErrIsDir)
			}
			return vfs.NewPathError("read", path, vfs.ErrNotFound)
		}
		content := tx.Bucket([]byte(BucketContent)).Get([]byte(p))
		out = append([]byte(nil), content...)
		rec.Atime = vfs.NowMillis()
		return putRecord(files, p, rec)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteFile stores content and metadata. Overwrites keep Birthtime/Ctime.
func (b *Backend) WriteFile(ctx context.Context, path string, data []byte, opts vfs.WriteOptions) error {
	if err := b.check(); err != nil {
		return err
	}
	p := vpath.Normalize(path, "/")
	if p == "/" {
		return vfs.NewPathError("write", path, vfs.ErrIsDir)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket([]byte(BucketFiles))
		dirs := tx.Bucket([]byte(BucketDirectories))
		content := tx.Bucket([]byte(BucketContent))

		if dirs.Get([]byte(p)) != nil {
			return vfs.NewPathError("write", path, vfs.ErrIsDir)
		}

		now := vfs.NowMillis()
		rec, existed, err := getRecord(files, p)
		if err != nil {
			return err
		}
		if existed {
			rec.Size = int64(len(data))
			rec.Mtime = now
			rec.Atime = now
			if opts.Mode != 0 {
				rec.Mode = opts.Mode
			}
		} else {
			parent := vpath.Dirname(p)
			if dirs.Get([]byte(parent)) == nil {
				if !opts.CreateParents {
					return vfs.NewPathError("write", path, vfs.ErrNotFound)
				}
				if err := ensureDirs(tx, parent); err != nil {
					return err
				}
			}
			rec = fromStat(vfs.NewFileStat(false, int64(len(data)), opts.Mode))
			if err := touchParent(dirs, parent, now); err != nil {
				return err
			}
		}
		if err := putRecord(files, p, rec); err != nil {
			return err
		}
		return content.Put([]byte(p), data)
	})
}

// ensureDirs creates every missing ancestor directory record of path.
func ensureDirs(tx *bolt.Tx, path string) error {
	dirs := tx.Bucket([]byte(BucketDirectories))
	files := tx.Bucket([]byte(BucketFiles))
	for _, ancestor := range vpath.Ancestors(path) {
		if dirs.Get([]byte(ancestor)) != nil {
			continue
		}
		if files.Get([]byte(ancestor)) != nil {
			return vfs.NewPathError("mkdir", ancestor, vfs.ErrNotDir)
		}
		rec := fromStat(vfs.NewFileStat(true, 0, vfs.DefaultDirMode))
		if err := putRecord(dirs, ancestor, rec); err != nil {
			return err
		}
	}
	return nil
}

// touchParent refreshes the parent directory's mtime after a child change.
func touchParent(dirs *bolt.Bucket, parent string, now int64) error {
	rec, ok, err := getRecord(dirs, parent)
	if err != nil || !ok {
		return err
	}
	rec.Mtime = now
	return putRecord(dirs, parent, rec)
}

// Unlink removes a file record and its content.
func (b *Backend) Unlink(ctx context.Context, path string) error {
	if err := b.check(); err != nil {
		return err
	}
	p := vpath.Normalize(path, "/")
	return b.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket([]byte(BucketFiles))
		dirs := tx.Bucket([]byte(BucketDirectories))
		if files.Get([]byte(p)) == nil {
			if dirs.Get([]byte(p)) != nil {
				return vfs.NewPathError("unlink", path, vfs.ErrIsDir)
			}
			return vfs.NewPathError("unlink", path, vfs.ErrNotFound)
		}
		if err := files.Delete([]byte(p)); err != nil {
			return err
		}
		if err := tx.Bucket([]byte(BucketContent)).Delete([]byte(p)); err != nil {
			return err
		}
		return touchParent(dirs, vpath.Dirname(p), vfs.NowMillis())
	})
}

// CopyFile duplicates src at dest with fresh timestamps.
func (b *Backend) CopyFile(ctx context.Context, src, dest string) error {
	data, err := b.ReadFile(ctx, src)
	if err != nil {
		return err
	}
	return b.WriteFile(ctx, dest, data, vfs.WriteOptions{})
}

// Mkdir creates a directory record.
func (b *Backend) Mkdir(ctx context.Context, path string, opts vfs.MkdirOptions) error {
	if err := b.check(); err != nil {
		return err
	}
	p := vpath.Normalize(path, "/")
	return b.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket([]byte(BucketFiles))
		dirs := tx.Bucket([]byte(BucketDirectories))

		if dirs.Get([]byte(p)) != nil {
			if opts.Recursive {
				return nil
			}
			return vfs.NewPathError("mkdir", path, vfs.ErrExists)
		}
		if files.Get([]byte(p)) != nil {
			return vfs.NewPathError("mkdir", path, vfs.ErrExists)
		}

		parent := vpath.Dirname(p)
		if opts.Recursive {
			if err := ensureDirs(tx, parent); err != nil {
				return err
			}
		} else if dirs.Get([]byte(parent)) == nil {
			return vfs.NewPathError("mkdir", path, vfs.ErrNotFound)
		}

		now := vfs.NowMillis()
		rec := fromStat(vfs.NewFileStat(true, 0, opts.Mode))
		if err := putRecord(dirs, p, rec); err != nil {
			return err
		}
		return touchParent(dirs, parent, now)
	})
}

// subtreeKeys collects all keys of bucket that sit strictly under prefix.
func subtreeKeys(bucket *bolt.Bucket, prefix string) []string {
	var out []string
	scan := []byte(prefix + "/")
	if prefix == "/" {
		scan = []byte("/")
	}
	c := bucket.Cursor()
	for k, _ := c.Seek(scan); k != nil && bytes.HasPrefix(k, scan); k, _ = c.Next() {
		out = append(out, string(k))
	}
	return out
}

// Rmdir removes a directory record, recursively when asked: files first,
// then directories deepest-first.
func (b *Backend) Rmdir(ctx context.Context, path string, opts vfs.RmdirOptions) error {
	if err := b.check(); err != nil {
		return err
	}
	p := vpath.Normalize(path, "/")
	if p == "/" {
		return vfs.NewPathError("rmdir", path, vfs.ErrInvalid)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket([]byte(BucketFiles))
		dirs := tx.Bucket([]byte(BucketDirectories))
		content := tx.Bucket([]byte(BucketContent))

		if dirs.Get([]byte(p)) == nil {
			if files.Get([]byte(p)) != nil {
				return vfs.NewPathError("rmdir", path, vfs.ErrNotDir)
			}
			return vfs.NewPathError("rmdir", path, vfs.ErrNotFound)
		}

		childFiles := subtreeKeys(files, p)
		childDirs := subtreeKeys(dirs, p)
		if len(childFiles)+len(childDirs) > 0 && !opts.Recursive {
			return vfs.NewPathError("rmdir", path, vfs.ErrNotEmpty)
		}

		for _, k := range childFiles {
			if err := files.Delete([]byte(k)); err != nil {
				return err
			}
			if err := content.Delete([]byte(k)); err != nil {
				return err
			}
		}
		// Deepest-first so no directory is removed before its children.
		sort.Slice(childDirs, func(i, j int) bool { return len(childDirs[i]) > len(childDirs[j]) })
		for _, k := range childDirs {
			if err := dirs.Delete([]byte(k)); err != nil {
				return err
			}
		}
		if err := dirs.Delete([]byte(p)); err != nil {
			return err
		}
		return touchParent(dirs, vpath.Dirname(p), vfs.NowMillis())
	})
}

// directChildren enumerates direct child names of p present in bucket.
func directChildren(bucket *bolt.Bucket, p string, into map[string]bool, isDir bool, entries *[]vfs.DirEntry) {
	for _, k := range subtreeKeys(bucket, p) {
		rest := strings.TrimPrefix(k, p)
		rest = strings.TrimPrefix(rest, "/")
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		if into[rest] {
			continue
		}
		into[rest] = true
		*entries = append(*entries, vfs.DirEntry{Name: rest, IsFile: !isDir, IsDir: isDir})
	}
}

// ReadDir lists direct child names sorted alphabetically.
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

// ReadDirTypes lists direct child entries sorted alphabetically.
func (b *Backend) ReadDirTypes(ctx context.Context, path string) ([]vfs.DirEntry, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	p := vpath.Normalize(path, "/")
	var entries []vfs.DirEntry
	err := b.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket([]byte(BucketFiles))
		dirs := tx.Bucket([]byte(BucketDirectories))

		rec, ok, err := getRecord(dirs, p)
		if err != nil {
			return err
		}
		if !ok {
			if files.Get([]byte(p)) != nil {
				return vfs.NewPathError("readdir", path, vfs.ErrNotDir)
			}
			return vfs.NewPathError("readdir", path, vfs.ErrNotFound)
		}

		seen := map[string]bool{}
		directChildren(dirs, p, seen, true, &entries)
		directChildren(files, p, seen, false, &entries)

		rec.Atime = vfs.NowMillis()
		return putRecord(dirs, p, rec)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Stat returns the object's metadata.
func (b *Backend) Stat(ctx context.Context, path string) (vfs.FileStat, error) {
	if err := b.check(); err != nil {
		return vfs.FileStat{}, err
	}
	p := vpath.Normalize(path, "/")
	var st vfs.FileStat
	err := b.db.View(func(tx *bolt.Tx) error {
		if rec, ok, err := getRecord(tx.Bucket([]byte(BucketDirectories)), p); err != nil {
			return err
		} else if ok {
			st = rec.toStat(true)
			return nil
		}
		if rec, ok, err := getRecord(tx.Bucket([]byte(BucketFiles)), p); err != nil {
			return err
		} else if ok {
			st = rec.toStat(false)
			return nil
		}
		return vfs.NewPathError("stat", path, vfs.ErrNotFound)
	})
	if err != nil {
		return vfs.FileStat{}, err
	}
	return st, nil
}

// Exists reports whether a file or directory record exists at path.
func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	if err := b.check(); err != nil {
		return false, err
	}
	p := vpath.Normalize(path, "/")
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket([]byte(BucketDirectories)).Get([]byte(p)) != nil ||
			tx.Bucket([]byte(BucketFiles)).Get([]byte(p)) != nil
		return nil
	})
	return found, err
}

// Rename moves a file or an entire directory subtree. A directory move
// copies every record to the new prefix and then removes the old subtree,
// all inside one transaction, so a successful return implies both halves
// are done.
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
	return b.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket([]byte(BucketFiles))
		dirs := tx.Bucket([]byte(BucketDirectories))
		content := tx.Bucket([]byte(BucketContent))

		newParent := vpath.Dirname(np)
		if dirs.Get([]byte(newParent)) == nil {
			return vfs.NewPathError("rename", newPath, vfs.ErrNotFound)
		}

		moveFile := func(from, to string) error {
			rec := files.Get([]byte(from))
			data := content.Get([]byte(from))
			if err := files.Put([]byte(to), append([]byte(nil), rec...)); err != nil {
				return err
			}
			if err := content.Put([]byte(to), append([]byte(nil), data...)); err != nil {
				return err
			}
			if err := files.Delete([]byte(from)); err != nil {
				return err
			}
			return content.Delete([]byte(from))
		}

		now := vfs.NowMillis()
		if files.Get([]byte(op)) != nil {
			if dirs.Get([]byte(np)) != nil {
				return vfs.NewPathError("rename", newPath, vfs.ErrIsDir)
			}
			if err := moveFile(op, np); err != nil {
				return err
			}
		} else if dirs.Get([]byte(op)) != nil {
			if files.Get([]byte(np)) != nil {
				return vfs.NewPathError("rename", newPath, vfs.ErrNotDir)
			}
			// Copy the directory record itself, every subdir, every file.
			rec := dirs.Get([]byte(op))
			if err := dirs.Put([]byte(np), append([]byte(nil), rec...)); err != nil {
				return err
			}
			for _, k := range subtreeKeys(dirs, op) {
				moved := np + strings.TrimPrefix(k, op)
				if err := dirs.Put([]byte(moved), append([]byte(nil), dirs.Get([]byte(k))...)); err != nil {
					return err
				}
			}
			for _, k := range subtreeKeys(files, op) {
				if err := moveFile(k, np+strings.TrimPrefix(k, op)); err != nil {
					return err
				}
			}
			for _, k := range subtreeKeys(dirs, op) {
				if err := dirs.Delete([]byte(k)); err != nil {
					return err
				}
			}
			if err := dirs.Delete([]byte(op)); err != nil {
				return err
			}
		} else {
			return vfs.NewPathError("rename", oldPath, vfs.ErrNotFound)
		}

		if err := touchParent(dirs, vpath.Dirname(op), now); err != nil {
			return err
		}
		return touchParent(dirs, newParent, now)
	})
}
