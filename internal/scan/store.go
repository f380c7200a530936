package scan

import (
	"github.com/harrison/yarascope/internal/engine"
	"github.com/harrison/yarascope/internal/pathkey"
)

// Hit records one file that matched at least one rule. Data holds exactly the
// bytes that were scanned, so offset and length lookups for previews never
// re-read the file; the buffer is owned by the Hit and never shared with
// another record.
type Hit struct {
	Filename string
	Path     pathkey.Key
	Hashes   ContentHashes
	Data     []byte
	Rules    []engine.RuleMatch
}

// Miss records a file that was scanned clean. No content is retained.
type Miss struct {
	Filename string
	Path     pathkey.Key
	Hashes   ContentHashes
}

// ResultStore collects the outcome of a single scan. It is append-only: a new
// store is created per run and records are never mutated after insertion.
// Append order is the walker's visit order.
type ResultStore struct {
	hits   []Hit
	misses []Miss
}

// NewResultStore returns an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{}
}

// AddHit appends a matched-file record.
func (s *ResultStore) AddHit(h Hit) {
	s.hits = append(s.hits, h)
}

// AddMiss appends a clean-file record.
func (s *ResultStore) AddMiss(m Miss) {
	s.misses = append(s.misses, m)
}

// Hits returns the matched files in insertion order. The slice is shared
// with the store; callers must treat it as read-only.
func (s *ResultStore) Hits() []Hit {
	return s.hits
}

// Misses returns the clean files in insertion order. The slice is shared
// with the store; callers must treat it as read-only.
func (s *ResultStore) Misses() []Miss {
	return s.misses
}

// Len returns the total number of recorded files.
func (s *ResultStore) Len() int {
	return len(s.hits) + len(s.misses)
}
