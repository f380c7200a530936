package scan

import (
	"fmt"

	"github.com/harrison/yarascope/internal/pathkey"
)

// PrerequisiteError reports that a scan was requested before its inputs were
// in place, such as an empty rule source or a missing scan root. It is
// returned before the engine or the filesystem is touched.
type PrerequisiteError struct {
	Reason string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("scan prerequisites not met: %s", e.Reason)
}

// FileAccessError reports a per-file failure inside the scan loop. These are
// counted and reported to the session's observer, never returned from Run;
// one unreadable file must not abort a tree scan.
type FileAccessError struct {
	Path pathkey.Key
	Op   string // "read" or "scan"
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}
