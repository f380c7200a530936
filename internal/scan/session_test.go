package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/yarascope/internal/engine"
	"github.com/harrison/yarascope/internal/exclusion"
	"github.com/harrison/yarascope/internal/pathkey"
	"github.com/harrison/yarascope/internal/walker"
)

// stubCompiler hands out canned rules and records whether it was invoked.
type stubCompiler struct {
	rules engine.Rules
	err   error
	calls int
}

func (c *stubCompiler) Compile(source string) (engine.Rules, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.rules, nil
}

// stubRules matches buffers through an injected function.
type stubRules struct {
	match   func(data []byte) []engine.RuleMatch
	scanErr func(data []byte) error
}

func (r *stubRules) Scan(data []byte) (engine.Result, error) {
	if r.scanErr != nil {
		if err := r.scanErr(data); err != nil {
			return engine.Result{}, err
		}
	}
	if r.match == nil {
		return engine.Result{}, nil
	}
	return engine.Result{Matches: r.match(data)}, nil
}

// countingLister counts directory listings to prove what was never touched.
type countingLister struct {
	calls int
}

func (c *countingLister) ReadDir(path string) ([]fs.DirEntry, error) {
	c.calls++
	return os.ReadDir(path)
}

// substringRules builds the two-rule fixture used across session tests:
// R1 (tag T1) fires on "alpha", R2 (tags T1, T2) fires on "beta".
func substringRules() *stubRules {
	return &stubRules{
		match: func(data []byte) []engine.RuleMatch {
			var out []engine.RuleMatch
			if i := bytes.Index(data, []byte("alpha")); i >= 0 {
				out = append(out, engine.RuleMatch{
					Identifier: "R1",
					Namespace:  "test",
					Tags:       []string{"T1"},
					Patterns: []engine.PatternMatch{{
						Identifier: "$a",
						Matches:    []engine.Span{{Offset: uint64(i), Length: 5}},
					}},
				})
			}
			if i := bytes.Index(data, []byte("beta")); i >= 0 {
				out = append(out, engine.RuleMatch{
					Identifier: "R2",
					Namespace:  "test",
					Tags:       []string{"T1", "T2"},
					Patterns: []engine.PatternMatch{{
						Identifier: "$b",
						Matches:    []engine.Span{{Offset: uint64(i), Length: 4}},
					}},
				})
			}
			return out
		},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestRunRecordsHitsAndMisses(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "a.txt"), "xx alpha yy")
	writeFile(t, filepath.Join(tmp, "b.txt"), "alpha and beta")
	writeFile(t, filepath.Join(tmp, "c.txt"), "clean content")

	session := NewSession(&stubCompiler{rules: substringRules()}, Options{})
	stats, store, err := session.Run(context.Background(), "rule source", pathkey.MustNew(tmp), exclusion.NewSet())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 0, stats.Errors)

	hits := store.Hits()
	require.Len(t, hits, 2)
	assert.Equal(t, "a.txt", hits[0].Filename, "hits keep walk order")
	assert.Equal(t, "b.txt", hits[1].Filename)

	misses := store.Misses()
	require.Len(t, misses, 1)
	assert.Equal(t, "c.txt", misses[0].Filename)

	// One rule on a, two on b.
	require.Len(t, hits[0].Rules, 1)
	assert.Equal(t, "R1", hits[0].Rules[0].Identifier)
	require.Len(t, hits[1].Rules, 2)
	assert.Equal(t, "R1", hits[1].Rules[0].Identifier)
	assert.Equal(t, "R2", hits[1].Rules[1].Identifier)

	// The hit keeps the exact scanned bytes and their digests.
	assert.Equal(t, []byte("xx alpha yy"), hits[0].Data)
	assert.Equal(t, ComputeHashes([]byte("xx alpha yy")), hits[0].Hashes)
	assert.Equal(t, ComputeHashes([]byte("clean content")), misses[0].Hashes)
}

func TestRunEmptyRuleSource(t *testing.T) {
	compiler := &stubCompiler{rules: substringRules()}
	session := NewSession(compiler, Options{})

	_, store, err := session.Run(context.Background(), "   \n\t", pathkey.MustNew(t.TempDir()), exclusion.NewSet())

	var pre *PrerequisiteError
	require.True(t, errors.As(err, &pre))
	assert.Contains(t, pre.Reason, "rule source")
	assert.Equal(t, 0, compiler.calls, "the engine must not be invoked")
	require.NotNil(t, store)
	assert.Equal(t, 0, store.Len())
}

func TestRunEmptyRoot(t *testing.T) {
	compiler := &stubCompiler{rules: substringRules()}
	session := NewSession(compiler, Options{})

	_, _, err := session.Run(context.Background(), "rule source", pathkey.Key(""), exclusion.NewSet())

	var pre *PrerequisiteError
	require.True(t, errors.As(err, &pre))
	assert.Contains(t, pre.Reason, "scan root")
	assert.Equal(t, 0, compiler.calls)
}

func TestRunCompileErrorAbortsBeforeFilesystem(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "a.txt"), "alpha")

	lister := &countingLister{}
	compiler := &stubCompiler{err: &engine.CompileError{Detail: "line 1: syntax error"}}
	session := NewSession(compiler, Options{Walker: walker.NewWithLister(lister)})

	stats, store, err := session.Run(context.Background(), "rule broken {", pathkey.MustNew(tmp), exclusion.NewSet())

	var ce *engine.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "line 1: syntax error", ce.Detail)
	assert.Equal(t, 0, lister.calls, "no directory may be listed after a compile failure")
	assert.Equal(t, 0, stats.Scanned)
	assert.Equal(t, 0, store.Len())
}

func TestRunNormalizesConditionOnlyMatches(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "a.txt"), "anything")

	rules := &stubRules{
		match: func(data []byte) []engine.RuleMatch {
			return []engine.RuleMatch{{Identifier: "filesize_only"}}
		},
	}
	session := NewSession(&stubCompiler{rules: rules}, Options{})

	_, store, err := session.Run(context.Background(), "rule source", pathkey.MustNew(tmp), exclusion.NewSet())
	require.NoError(t, err)

	hits := store.Hits()
	require.Len(t, hits, 1)
	require.Len(t, hits[0].Rules, 1)
	patterns := hits[0].Rules[0].Patterns
	require.Len(t, patterns, 1)
	assert.Equal(t, engine.ConditionOnlyPattern, patterns[0].Identifier)
	assert.Empty(t, patterns[0].Matches)
}

func TestRunCancellationReturnsPartialResults(t *testing.T) {
	tmp := t.TempDir()
	for i := 0; i < 25; i++ {
		writeFile(t, filepath.Join(tmp, fmt.Sprintf("f%02d.txt", i)), "clean")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var checkpoints int
	session := NewSession(&stubCompiler{rules: &stubRules{}}, Options{
		Progress: func(scanned int, current pathkey.Key) {
			checkpoints++
			if scanned == 10 {
				cancel()
			}
		},
	})

	stats, store, err := session.Run(ctx, "rule source", pathkey.MustNew(tmp), exclusion.NewSet())

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, checkpoints, "cancellation lands at the first checkpoint")
	assert.Equal(t, 10, stats.Scanned, "exactly one checkpoint interval was processed")
	assert.Equal(t, 10, store.Len(), "partial results stay valid")
}

func TestRunProgressCadence(t *testing.T) {
	tmp := t.TempDir()
	for i := 0; i < 35; i++ {
		writeFile(t, filepath.Join(tmp, fmt.Sprintf("f%02d.txt", i)), "clean")
	}

	var reported []int
	session := NewSession(&stubCompiler{rules: &stubRules{}}, Options{
		Progress: func(scanned int, current pathkey.Key) {
			reported = append(reported, scanned)
		},
	})

	_, _, err := session.Run(context.Background(), "rule source", pathkey.MustNew(tmp), exclusion.NewSet())
	require.NoError(t, err)

	assert.Equal(t, []int{10, 20, 30}, reported, "progress fires every ten files, not at the tail")
}

func TestRunCountsReadErrors(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("dangling symlinks are not reliably creatable on Windows")
	}

	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "good.txt"), "clean")
	require.NoError(t, os.Symlink(filepath.Join(tmp, "missing-target"), filepath.Join(tmp, "dangling")))

	var observed []error
	session := NewSession(&stubCompiler{rules: &stubRules{}}, Options{
		OnFileError: func(err error) { observed = append(observed, err) },
	})

	stats, store, err := session.Run(context.Background(), "rule source", pathkey.MustNew(tmp), exclusion.NewSet())
	require.NoError(t, err, "per-file failures must not abort the run")

	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, store.Len())

	require.Len(t, observed, 1)
	var fae *FileAccessError
	require.True(t, errors.As(observed[0], &fae))
	assert.Equal(t, "read", fae.Op)
}

func TestRunCountsScanErrors(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "ok.txt"), "clean")
	writeFile(t, filepath.Join(tmp, "poison.txt"), "poison payload")

	rules := &stubRules{
		scanErr: func(data []byte) error {
			if bytes.Contains(data, []byte("poison")) {
				return errors.New("engine choked")
			}
			return nil
		},
	}

	var observed []error
	session := NewSession(&stubCompiler{rules: rules}, Options{
		OnFileError: func(err error) { observed = append(observed, err) },
	})

	stats, store, err := session.Run(context.Background(), "rule source", pathkey.MustNew(tmp), exclusion.NewSet())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, store.Len(), "the failed file is not recorded")

	require.Len(t, observed, 1)
	var fae *FileAccessError
	require.True(t, errors.As(observed[0], &fae))
	assert.Equal(t, "scan", fae.Op)
}

func TestRunHonorsExclusions(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "keep.txt"), "alpha")
	writeFile(t, filepath.Join(tmp, "skip", "hidden.txt"), "alpha")

	excl := exclusion.NewSet()
	excl.Exclude(pathkey.MustNew(filepath.Join(tmp, "skip")))

	session := NewSession(&stubCompiler{rules: substringRules()}, Options{})
	stats, store, err := session.Run(context.Background(), "rule source", pathkey.MustNew(tmp), excl)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Scanned)
	require.Len(t, store.Hits(), 1)
	assert.Equal(t, "keep.txt", store.Hits()[0].Filename)
}

func TestRunMissingRootCountsAsListingError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	session := NewSession(&stubCompiler{rules: &stubRules{}}, Options{})
	stats, store, err := session.Run(context.Background(), "rule source", pathkey.MustNew(missing), exclusion.NewSet())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 0, store.Len())
}

func TestSessionStateTransitions(t *testing.T) {
	tmp := t.TempDir()
	for i := 0; i < 10; i++ {
		writeFile(t, filepath.Join(tmp, fmt.Sprintf("f%d.txt", i)), "clean")
	}

	var session *Session
	var duringScan State
	session = NewSession(&stubCompiler{rules: &stubRules{}}, Options{
		Progress: func(scanned int, current pathkey.Key) {
			duringScan = session.State()
		},
	})

	assert.Equal(t, StateIdle, session.State())

	_, _, err := session.Run(context.Background(), "rule source", pathkey.MustNew(tmp), exclusion.NewSet())
	require.NoError(t, err)

	assert.Equal(t, StateScanning, duringScan, "checkpoints run inside the scanning phase")
	assert.Equal(t, StateIdle, session.State(), "the session returns to idle")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "compiling", StateCompiling.String())
	assert.Equal(t, "scanning", StateScanning.String())
	assert.Equal(t, "finalizing", StateFinalizing.String())
	assert.Equal(t, "unknown", State(99).String())
}
