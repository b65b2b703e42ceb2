package vpath

import (
	"fmt"
	"strings"
)

// SecurityKind classifies why a path was rejected.
type SecurityKind string

const (
	// KindTraversal marks a ".." sequence detected before normalization.
	KindTraversal SecurityKind = "traversal"

	// KindNullByte marks an embedded NUL byte.
	KindNullByte SecurityKind = "null_byte"

	// KindEscape marks a path that normalizes outside the allowed root.
	KindEscape SecurityKind = "escape"

	// KindInvalid marks any other malformed input.
	KindInvalid SecurityKind = "invalid"
)

// SecurityError reports a rejected path together with the rejection class.
type SecurityError struct {
	Kind SecurityKind
	Path string
}

// Error implements the error interface
func (e *SecurityError) Error() string {
	return fmt.Sprintf("unsafe path (%s): %s", e.Kind, SanitizeForLog(e.Path))
}

// logSanitizeLimit bounds how much of an attacker-controlled path makes it
// into log output.
const logSanitizeLimit = 256

// ValidatePath rejects dangerous path input. The checks run in a fixed
// order: the raw string is pattern-checked for NUL bytes and traversal
// sequences first, because normalization would erase the evidence
// ("a/../../b" collapses to a harmless-looking result). Only then is the
// path normalized against allowedRoot and checked for containment.
func ValidatePath(path, allowedRoot string) (string, error) {
	if allowedRoot == "" {
		allowedRoot = "/"
	}
	if strings.ContainsRune(path, 0) {
		return "", &SecurityError{Kind: KindNullByte, Path: path}
	}
	if hasTraversal(path) {
		return "", &SecurityError{Kind: KindTraversal, Path: path}
	}

	root := Normalize(allowedRoot, "/")
	normalized := Normalize(path, root)

	if !IsInside(root, normalized) {
		return "", &SecurityError{Kind: KindEscape, Path: path}
	}
	return normalized, nil
}

// hasTraversal detects ".." as a segment anywhere in the raw input.
func hasTraversal(path string) bool {
	return path == ".." ||
		strings.HasPrefix(path, "../") ||
		strings.HasSuffix(path, "/..") ||
		strings.Contains(path, "/../")
}

// IsValidSecurePath is the non-throwing form of ValidatePath.
func IsValidSecurePath(path, allowedRoot string) bool {
	_, err := ValidatePath(path, allowedRoot)
	return err == nil
}

// SanitizeForLog makes untrusted path bytes safe to print: control bytes
// become '?' and the result is truncated to a fixed bound.
func SanitizeForLog(path string) string {
	var b strings.Builder
	for _, r := range path {
		if r < 0x20 || r == 0x7F {
			b.WriteByte('?')
		} else {
			b.WriteRune(r)
		}
		if b.Len() >= logSanitizeLimit {
			break
		}
	}
	return b.String()
}

// IsSafeFilename reports whether name is acceptable as a single directory
// entry: non-empty, no separators, no NUL, and not "." or "..".
func IsSafeFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
