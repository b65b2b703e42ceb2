package dirfs

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"bavini/vfs"
	"bavini/vpath"
)

// watchHandle wraps an fsnotify watcher for one path.
type watchHandle struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Close implements vfs.WatchHandle
func (h *watchHandle) Close() error {
	err := h.watcher.Close()
	<-h.done
	return err
}

// Watch observes the directory at path and delivers change events until the
// handle is closed. Sidecar changes are filtered out like everywhere else.
func (b *Backend) Watch(ctx context.Context, path string, cb func(vfs.WatchEvent)) (vfs.WatchHandle, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	p, err := b.checkPath("watch", path)
	if err != nil {
		return nil, err
	}
	host := b.hostPath(p)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, vfs.NewPathError("watch", path, err)
	}
	if err := watcher.Add(host); err != nil {
		watcher.Close()
		return nil, vfs.NewPathError("watch", path, vfs.ErrNotFound)
	}

	h := &watchHandle{watcher: watcher, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				name := filepath.Base(ev.Name)
				if strings.HasPrefix(name, MetaPrefix) {
					continue
				}
				cb(vfs.WatchEvent{
					Path: vpath.Join(p, name),
					Op:   watchOp(ev.Op),
				})
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return h, nil
}

func watchOp(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return "write"
	}
}
