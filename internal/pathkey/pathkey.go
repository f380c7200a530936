// Package pathkey provides canonical path identities for scan bookkeeping.
//
// Every path that enters the exclusion set, the walker, or the result store
// is first reduced to a Key, so lookups never depend on how the user spelled
// the path (relative form, symlinks, redundant separators). Two Keys are
// equal exactly when canonicalization maps them to the same location.
package pathkey

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Key is a canonicalized absolute path: absolute, symlinks resolved where the
// filesystem allows, lexically cleaned. Comparing Keys is plain string
// equality.
type Key string

// New canonicalizes path into a Key. The path is made absolute against the
// current working directory, symlinks are resolved when the path exists, and
// the result is lexically cleaned. Paths that do not exist yet fall back to
// the cleaned absolute form so exclusions can be registered ahead of time.
func New(path string) (Key, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %q: %w", path, err)
	}

	// EvalSymlinks fails for paths that do not exist; keep the lexical form
	// in that case rather than erroring out.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	return Key(filepath.Clean(abs)), nil
}

// MustNew is New for inputs known to be valid. It panics on error and is
// intended for tests and fixed configuration values.
func MustNew(path string) Key {
	k, err := New(path)
	if err != nil {
		panic(err)
	}
	return k
}

// String returns the key as a plain path string.
func (k Key) String() string {
	return string(k)
}

// Base returns the final path element.
func (k Key) Base() string {
	return filepath.Base(string(k))
}

// Dir returns the parent Key. A filesystem root is its own parent.
func (k Key) Dir() Key {
	return Key(filepath.Dir(string(k)))
}

// IsRoot reports whether k is a filesystem root, the fixed point of Dir.
func (k Key) IsRoot() bool {
	return k.Dir() == k
}

// Child returns the Key for a directly named entry under k. The name must be
// a single path element as returned by a directory listing; because k is
// already canonical, the join stays canonical without touching the
// filesystem again.
func (k Key) Child(name string) Key {
	return Key(filepath.Join(string(k), name))
}

// IsAncestorOf reports whether k is a strict ancestor of other. A key is
// never its own ancestor.
func (k Key) IsAncestorOf(other Key) bool {
	if k == other {
		return false
	}
	prefix := string(k)
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(string(other), prefix)
}

// Sort orders keys lexicographically in place.
func Sort(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}
