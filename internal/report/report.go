// Package report renders scan results for people and for machines: a console
// summary with match details and correlation trees, a JSON export, and a
// standalone HTML report.
package report

import (
	"sort"
	"time"

	"github.com/harrison/yarascope/internal/correlate"
	"github.com/harrison/yarascope/internal/scan"
)

// Data bundles everything one scan produced for rendering.
type Data struct {
	RuleFile  string
	Root      string
	ScanID    string
	CreatedAt time.Time
	Stats     scan.Stats
	Hits      []scan.Hit
	Misses    []scan.Miss
	Index     *correlate.Index
	Excluded  []string
}

// New assembles report data from a finished scan run. The correlation index
// is built with nothing selected; Excluded lists the effective exclusions.
func New(ruleFile string, root string, stats scan.Stats, store *scan.ResultStore, excluded []string) *Data {
	return &Data{
		RuleFile:  ruleFile,
		Root:      root,
		CreatedAt: time.Now(),
		Stats:     stats,
		Hits:      store.Hits(),
		Misses:    store.Misses(),
		Index:     correlate.Build(store.Hits(), nil),
		Excluded:  excluded,
	}
}

// metadataKeys returns the metadata map's keys in sorted order so rendering
// is deterministic.
func metadataKeys(metadata map[string]interface{}) []string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
