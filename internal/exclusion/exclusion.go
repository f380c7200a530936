// Package exclusion tracks which directories and files a scan must skip.
//
// The set stores only explicitly excluded paths. Whether a path is excluded
// is decided by walking its ancestor chain, so excluding one directory covers
// its entire subtree without enumerating or recording the subtree.
package exclusion

import (
	"github.com/harrison/yarascope/internal/pathkey"
)

// Set holds the explicitly excluded paths for one scan session. It is owned
// by a single session at a time and is not safe for concurrent use.
type Set struct {
	explicit map[pathkey.Key]struct{}
}

// NewSet returns an empty exclusion set.
func NewSet() *Set {
	return &Set{explicit: make(map[pathkey.Key]struct{})}
}

// Exclude marks k as excluded. The insert is O(1) and never touches the
// filesystem; descendants of k become excluded implicitly via the ancestor
// walk in IsExcluded. Excluding a path beneath an already-excluded ancestor
// is recorded like any other entry.
func (s *Set) Exclude(k pathkey.Key) {
	s.explicit[k] = struct{}{}
}

// Include removes k and every explicitly excluded strict descendant of k.
// Re-including a directory resets its whole subtree to included, even parts
// that were excluded separately beforehand. Cost is O(set size).
func (s *Set) Include(k pathkey.Key) {
	delete(s.explicit, k)
	for e := range s.explicit {
		if k.IsAncestorOf(e) {
			delete(s.explicit, e)
		}
	}
}

// IsExcluded reports whether k or any ancestor of k is explicitly excluded.
// Cost is proportional to the depth of k, independent of set size.
func (s *Set) IsExcluded(k pathkey.Key) bool {
	for {
		if _, ok := s.explicit[k]; ok {
			return true
		}
		parent := k.Dir()
		if parent == k {
			return false
		}
		k = parent
	}
}

// List returns the explicitly excluded paths sorted lexicographically.
func (s *Set) List() []pathkey.Key {
	keys := make([]pathkey.Key, 0, len(s.explicit))
	for k := range s.explicit {
		keys = append(keys, k)
	}
	pathkey.Sort(keys)
	return keys
}

// Len returns the number of explicitly excluded paths.
func (s *Set) Len() int {
	return len(s.explicit)
}

// HasAny reports whether the set contains any exclusion.
func (s *Set) HasAny() bool {
	return len(s.explicit) > 0
}

// Reset drops every exclusion.
func (s *Set) Reset() {
	s.explicit = make(map[pathkey.Key]struct{})
}
