package dirfs

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"bavini/vfs"
	"bavini/vpath"
)

// metaRecord is the JSON sidecar payload: the fields the host layer cannot
// hold natively.
type metaRecord struct {
	Mode      uint32 `json:"mode"`
	Mtime     int64  `json:"mtime"`
	Atime     int64  `json:"atime"`
	Ctime     int64  `json:"ctime"`
	Birthtime int64  `json:"birthtime"`
}

func (m metaRecord) toStat(isDir bool) vfs.FileStat {
	return vfs.FileStat{
		IsFile:    !isDir,
		IsDir:     isDir,
		Mode:      m.Mode,
		Mtime:     m.Mtime,
		Atime:     m.Atime,
		Ctime:     m.Ctime,
		Birthtime: m.Birthtime,
	}
}

func metaFromStat(st vfs.FileStat) metaRecord {
	return metaRecord{
		Mode:      st.Mode,
		Mtime:     st.Mtime,
		Atime:     st.Atime,
		Ctime:     st.Ctime,
		Birthtime: st.Birthtime,
	}
}

// metaHostPath is the sidecar location for the entry at canonical path p:
// inside the parent directory, named MetaPrefix + entry name. Root has no
// parent; its metadata is synthesized.
func (b *Backend) metaHostPath(p string) string {
	if p == "/" {
		return ""
	}
	parent := b.hostPath(vpath.Dirname(p))
	return filepath.Join(parent, MetaPrefix+vpath.Basename(p))
}

// readMeta loads the sidecar for p if present.
func (b *Backend) readMeta(p string) (metaRecord, bool) {
	side := b.metaHostPath(p)
	if side == "" {
		return metaRecord{}, false
	}
	data, err := os.ReadFile(side)
	if err != nil {
		return metaRecord{}, false
	}
	var m metaRecord
	if err := json.Unmarshal(data, &m); err != nil {
		return metaRecord{}, false
	}
	return m, true
}

// loadMeta returns the sidecar for p, synthesizing one from the host stat
// for entries created outside the backend.
func (b *Backend) loadMeta(p string, info fs.FileInfo) metaRecord {
	if m, ok := b.readMeta(p); ok {
		return m
	}
	mode := vfs.DefaultFileMode
	if info.IsDir() {
		mode = vfs.DefaultDirMode
	}
	ts := info.ModTime().UnixMilli()
	m := metaRecord{Mode: mode, Mtime: ts, Atime: ts, Ctime: ts, Birthtime: ts}
	b.storeMeta(p, m)
	return m
}

// storeMeta writes the sidecar for p. Best-effort: the host tree remains
// authoritative for existence and content.
func (b *Backend) storeMeta(p string, m metaRecord) {
	side := b.metaHostPath(p)
	if side == "" {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	os.WriteFile(side, data, 0o644)
}

// removeMeta deletes the sidecar for p.
func (b *Backend) removeMeta(p string) {
	if side := b.metaHostPath(p); side != "" {
		os.Remove(side)
	}
}

// touchDirMeta refreshes the mtime in a directory's sidecar after a
// child-set change.
func (b *Backend) touchDirMeta(p string, now int64) {
	if p == "/" {
		return
	}
	info, err := os.Stat(b.hostPath(p))
	if err != nil || !info.IsDir() {
		return
	}
	m := b.loadMeta(p, info)
	m.Mtime = now
	b.storeMeta(p, m)
}
