// Package scan runs rule scans over file trees and records the results.
//
// A Session drives one scan at a time through a fixed sequence: validate
// prerequisites, compile the rule source, walk the tree while scanning each
// file, finalize. The loop is single-goroutine and yields cooperatively at a
// fixed file cadence, where cancellation is observed and progress is
// reported. Cancellation is not an error state: whatever was scanned before
// the checkpoint is returned alongside ctx.Err().
package scan

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/harrison/yarascope/internal/engine"
	"github.com/harrison/yarascope/internal/exclusion"
	"github.com/harrison/yarascope/internal/pathkey"
	"github.com/harrison/yarascope/internal/walker"
)

// DefaultProgressEvery is the cooperative checkpoint cadence: after every
// tenth processed file the session reports progress and checks for
// cancellation.
const DefaultProgressEvery = 10

// State names the phase a session is in. Transitions run strictly
// Idle → Compiling → Scanning → Finalizing → Idle.
type State int

const (
	StateIdle State = iota
	StateCompiling
	StateScanning
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCompiling:
		return "compiling"
	case StateScanning:
		return "scanning"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Stats summarizes one scan run. Scanned counts files that were read and
// matched cleanly (hit or miss), Matched the subset with at least one rule
// hit, Errors every per-file or listing failure that was skipped over.
type Stats struct {
	Scanned  int
	Matched  int
	Errors   int
	Duration time.Duration
}

// ProgressFunc receives the running scanned count and the most recently
// processed file at every checkpoint.
type ProgressFunc func(scanned int, current pathkey.Key)

// Options carries the optional collaborators of a Session.
type Options struct {
	// Walker enumerates files; nil means the local filesystem.
	Walker *walker.Walker
	// Progress is invoked at every checkpoint; nil disables reporting.
	Progress ProgressFunc
	// OnFileError observes per-file failures as *FileAccessError; nil means
	// failures are only counted.
	OnFileError func(error)
	// ProgressEvery overrides the checkpoint cadence; values below 1 fall
	// back to DefaultProgressEvery.
	ProgressEvery int
}

// Session owns one scan pipeline. It is single-owner: Run must not be called
// concurrently, and the exclusion set passed to Run belongs to the session
// for the duration of the call.
type Session struct {
	compiler      engine.Compiler
	walker        *walker.Walker
	progress      ProgressFunc
	onFileError   func(error)
	progressEvery int
	state         State
}

// NewSession returns a Session that compiles through compiler and scans with
// the collaborators from opts.
func NewSession(compiler engine.Compiler, opts Options) *Session {
	w := opts.Walker
	if w == nil {
		w = walker.New()
	}
	every := opts.ProgressEvery
	if every < 1 {
		every = DefaultProgressEvery
	}
	return &Session{
		compiler:      compiler,
		walker:        w,
		progress:      opts.Progress,
		onFileError:   opts.OnFileError,
		progressEvery: every,
		state:         StateIdle,
	}
}

// State reports the current phase.
func (s *Session) State() State {
	return s.state
}

// Run executes one scan: compile ruleSource, walk root honoring excl, scan
// every yielded file. The returned store is freshly created for this run and
// always non-nil.
//
// Prerequisite failures return *PrerequisiteError before the engine or the
// filesystem is touched. Compile failures return *engine.CompileError before
// any file is read. Per-file read and scan failures are counted in
// Stats.Errors and never abort the run. When ctx is cancelled the walk stops
// at the next checkpoint and the partial store and stats are returned
// together with ctx.Err().
func (s *Session) Run(ctx context.Context, ruleSource string, root pathkey.Key, excl *exclusion.Set) (Stats, *ResultStore, error) {
	store := NewResultStore()
	var stats Stats

	defer func() { s.state = StateIdle }()

	if strings.TrimSpace(ruleSource) == "" {
		return stats, store, &PrerequisiteError{Reason: "no rule source provided"}
	}
	if root == "" {
		return stats, store, &PrerequisiteError{Reason: "no scan root selected"}
	}

	start := time.Now()

	s.state = StateCompiling
	rules, err := s.compiler.Compile(ruleSource)
	if err != nil {
		return stats, store, err
	}
	defer engine.Release(rules)

	s.state = StateScanning
	processed := 0
	walkStats, walkErr := s.walker.Walk(root, excl, func(path pathkey.Key) error {
		s.scanFile(path, rules, store, &stats)

		processed++
		if processed%s.progressEvery == 0 {
			if s.progress != nil {
				s.progress(stats.Scanned, path)
			}
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		return nil
	})
	stats.Errors += walkStats.Errors

	s.state = StateFinalizing
	stats.Duration = time.Since(start)

	if walkErr != nil {
		return stats, store, walkErr
	}
	return stats, store, nil
}

// scanFile reads, hashes, and matches a single file. Failures are counted
// and reported, never returned.
func (s *Session) scanFile(path pathkey.Key, rules engine.Rules, store *ResultStore, stats *Stats) {
	data, err := os.ReadFile(path.String())
	if err != nil {
		stats.Errors++
		s.reportFileError(&FileAccessError{Path: path, Op: "read", Err: err})
		return
	}

	result, err := rules.Scan(data)
	if err != nil {
		stats.Errors++
		s.reportFileError(&FileAccessError{Path: path, Op: "scan", Err: err})
		return
	}

	stats.Scanned++
	hashes := ComputeHashes(data)

	if len(result.Matches) > 0 {
		stats.Matched++
		store.AddHit(Hit{
			Filename: path.Base(),
			Path:     path,
			Hashes:   hashes,
			Data:     data,
			Rules:    engine.NormalizeAll(result.Matches),
		})
		return
	}

	store.AddMiss(Miss{Filename: path.Base(), Path: path, Hashes: hashes})
}

func (s *Session) reportFileError(err error) {
	if s.onFileError != nil {
		s.onFileError(err)
	}
}
