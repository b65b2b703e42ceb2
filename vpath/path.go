// Package vpath implements path arithmetic and validation for the virtual
// filesystem. All functions are pure and operate on POSIX-style paths; the
// canonical form has a leading "/", single "/" separators, no trailing "/"
// except for root, and no "." or ".." segments.
package vpath

import "strings"

// Normalize resolves path against cwd and returns the canonical form.
// Relative paths are joined onto cwd first. "." segments are dropped and
// ".." segments pop the previous segment, bounded at root; the result never
// escapes "/". An empty path normalizes to cwd itself.
func Normalize(path, cwd string) string {
	if cwd == "" {
		cwd = "/"
	}
	if path == "" {
		return Normalize(cwd, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = cwd + "/" + path
	}

	var out []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

// Dirname returns the canonical parent of path. The parent of "/" is "/".
func Dirname(path string) string {
	p := Normalize(path, "/")
	if p == "/" {
		return "/"
	}
	idx := strings.LastIndexByte(p, '/')
	if idx <= 0 {
		return "/"
	}
	return p[:idx]
}

// Basename returns the final segment of path, or "/" for root.
func Basename(path string) string {
	p := Normalize(path, "/")
	if p == "/" {
		return "/"
	}
	return p[strings.LastIndexByte(p, '/')+1:]
}

// Extname returns the extension of the final segment including the leading
// dot, or "" when there is none. A leading dot alone (dotfile) is not an
// extension.
func Extname(path string) string {
	base := Basename(path)
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 {
		return ""
	}
	return base[idx:]
}

// Join concatenates segments with "/" and normalizes the result. The result
// is always absolute: a relative join is anchored at root.
func Join(segments ...string) string {
	joined := strings.Join(segments, "/")
	if strings.HasPrefix(joined, "/") {
		return Normalize(joined, "/")
	}
	// Keep relative joins relative to root for canonical output.
	return Normalize("/"+joined, "/")
}

// Resolve normalizes path against base the way a shell resolves an argument
// against the working directory.
func Resolve(base, path string) string {
	return Normalize(path, Normalize(base, "/"))
}

// Relative returns the path from `from` to `to` using ".." hops, both
// interpreted as absolute. Equal paths yield ".".
func Relative(from, to string) string {
	f := Normalize(from, "/")
	t := Normalize(to, "/")
	if f == t {
		return "."
	}

	fSegs := splitSegments(f)
	tSegs := splitSegments(t)

	common := 0
	for common < len(fSegs) && common < len(tSegs) && fSegs[common] == tSegs[common] {
		common++
	}

	var out []string
	for i := common; i < len(fSegs); i++ {
		out = append(out, "..")
	}
	out = append(out, tSegs[common:]...)
	return strings.Join(out, "/")
}

// IsInside reports whether child equals parent or sits below it. Both
// arguments must already be canonical; callers normalize first.
func IsInside(parent, child string) bool {
	if parent == child {
		return true
	}
	if parent == "/" {
		return strings.HasPrefix(child, "/")
	}
	return strings.HasPrefix(child, parent+"/")
}

// Ancestors returns the canonical prefixes of path from root down to the
// path itself: Ancestors("/a/b") == ["/", "/a", "/a/b"].
func Ancestors(path string) []string {
	p := Normalize(path, "/")
	out := []string{"/"}
	if p == "/" {
		return out
	}
	segs := splitSegments(p)
	cur := ""
	for _, seg := range segs {
		cur += "/" + seg
		out = append(out, cur)
	}
	return out
}

func splitSegments(canonical string) []string {
	if canonical == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(canonical, "/"), "/")
}
