// Package walker enumerates scannable files beneath a root directory while
// honoring an exclusion set.
//
// Traversal is top-down and lazy: a directory is listed only when the walk
// actually reaches it, and excluded directories are never listed at all, so
// the cost of an exclusion check never depends on the size of the excluded
// subtree. The walker keeps no state between calls; every walk re-reads the
// filesystem as it is at that moment.
package walker

import (
	"io/fs"
	"os"
	"sort"

	"github.com/harrison/yarascope/internal/exclusion"
	"github.com/harrison/yarascope/internal/pathkey"
)

// Lister abstracts directory listing so tests can observe or fail listings.
type Lister interface {
	ReadDir(path string) ([]fs.DirEntry, error)
}

// osLister reads directories from the local filesystem.
type osLister struct{}

func (osLister) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

// VisitFunc receives each non-excluded file in traversal order. Returning a
// non-nil error aborts the walk; the error is handed back to the caller of
// Walk unchanged.
type VisitFunc func(pathkey.Key) error

// Stats counts what a single walk did.
type Stats struct {
	// DirsListed is the number of directories actually read.
	DirsListed int
	// FilesVisited is the number of files handed to the visit callback.
	FilesVisited int
	// Errors is the number of directories that failed to list and were
	// treated as empty.
	Errors int
}

// Walker traverses directory trees. The zero value is not usable; construct
// one with New or NewWithLister.
type Walker struct {
	lister Lister
}

// New returns a Walker backed by the local filesystem.
func New() *Walker {
	return &Walker{lister: osLister{}}
}

// NewWithLister returns a Walker that lists directories through l.
func NewWithLister(l Lister) *Walker {
	return &Walker{lister: l}
}

// Walk visits every non-excluded file beneath root in a deterministic order:
// each directory's entries are handled in name order, with subdirectories
// descended into at their position in the listing. An excluded directory is
// skipped before it is listed; an excluded file is never yielded. Directories
// that fail to list are counted in Stats.Errors and treated as empty, and the
// walk continues with their siblings.
//
// An excluded root yields nothing. A visit error aborts the walk immediately
// and is returned together with the stats gathered so far.
func (w *Walker) Walk(root pathkey.Key, excl *exclusion.Set, visit VisitFunc) (Stats, error) {
	var stats Stats
	if excl != nil && excl.IsExcluded(root) {
		return stats, nil
	}
	err := w.walkDir(root, excl, visit, &stats)
	return stats, err
}

func (w *Walker) walkDir(dir pathkey.Key, excl *exclusion.Set, visit VisitFunc, stats *Stats) error {
	entries, err := w.lister.ReadDir(dir.String())
	if err != nil {
		stats.Errors++
		return nil
	}
	stats.DirsListed++

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		child := dir.Child(entry.Name())
		if excl != nil && excl.IsExcluded(child) {
			continue
		}

		if entry.IsDir() {
			if err := w.walkDir(child, excl, visit, stats); err != nil {
				return err
			}
			continue
		}

		// Non-directory entries (including symlinks) are yielded as files;
		// ones that cannot be read surface as per-file errors downstream.
		stats.FilesVisited++
		if err := visit(child); err != nil {
			return err
		}
	}
	return nil
}

// Collect runs Walk and gathers the visited files into a slice.
func (w *Walker) Collect(root pathkey.Key, excl *exclusion.Set) ([]pathkey.Key, Stats, error) {
	var files []pathkey.Key
	stats, err := w.Walk(root, excl, func(k pathkey.Key) error {
		files = append(files, k)
		return nil
	})
	return files, stats, err
}
