package mount

import (
	"context"
	"unicode/utf8"

	"bavini/vfs"
	"bavini/vpath"
)

// WalkFunc receives each visited entry. Returning an error stops the walk
// and propagates the error.
type WalkFunc func(path string, entry vfs.DirEntry) error

// Walk visits the tree under root depth-first in pre-order: each directory
// is reported before its children. The root itself is not reported.
func (m *Manager) Walk(ctx context.Context, root string, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := m.ReadDirTypes(ctx, root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		child := vpath.Join(vpath.Normalize(root, "/"), e.Name)
		if err := fn(child, e); err != nil {
			return err
		}
		if e.IsDir {
			if err := m.Walk(ctx, child, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetAllFiles returns the canonical paths of every file under root.
func (m *Manager) GetAllFiles(ctx context.Context, root string) ([]string, error) {
	var out []string
	err := m.Walk(ctx, root, func(path string, entry vfs.DirEntry) error {
		if entry.IsFile {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ToJSON captures the UTF-8 file subtree under root as a path→content map.
// Files whose bytes are not valid UTF-8 are skipped silently.
func (m *Manager) ToJSON(ctx context.Context, root string) (map[string]string, error) {
	out := map[string]string{}
	err := m.Walk(ctx, root, func(path string, entry vfs.DirEntry) error {
		if !entry.IsFile {
			return nil
		}
		data, err := m.ReadFile(ctx, path)
		if err != nil {
			return err
		}
		if !utf8.Valid(data) {
			return nil
		}
		out[path] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FromJSON writes every entry of the map, creating parents as needed.
func (m *Manager) FromJSON(ctx context.Context, files map[string]string) error {
	for path, content := range files {
		err := m.WriteFile(ctx, path, []byte(content), vfs.WriteOptions{CreateParents: true})
		if err != nil {
			return err
		}
	}
	return nil
}
