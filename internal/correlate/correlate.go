// Package correlate groups scan hits by rule and by tag.
//
// The index answers "which files did rule X flag" and "which file/rule pairs
// carry tag Y" for result exploration. It is rebuilt from scratch after every
// scan and whenever the selection changes; building is cheap relative to
// scanning and rebuilding keeps the index trivially consistent with the
// store. Grouping depends only on the hits; the selection decides nothing but
// the Selected flags and the ordering inside buckets.
package correlate

import (
	"sort"

	"github.com/harrison/yarascope/internal/pathkey"
	"github.com/harrison/yarascope/internal/scan"
)

// FileRef points at one matched file inside a bucket.
type FileRef struct {
	Filename string
	Path     pathkey.Key
	Selected bool
}

// TagFileRef is a FileRef plus the rule that carried the tag. The same file
// appears once per matched rule under a tag, so a file flagged by two tagged
// rules shows up twice in that tag's bucket.
type TagFileRef struct {
	FileRef
	Rule string
}

// RuleBucket lists every file one rule flagged, each file at most once no
// matter how many patterns of the rule hit it.
type RuleBucket struct {
	Rule  string
	Files []FileRef
}

// TagBucket lists the file/rule pairs sharing one tag.
type TagBucket struct {
	Tag   string
	Files []TagFileRef
}

// Index is the correlation view over one scan's hits.
//
// Buckets are ordered by descending file count with ties broken by ascending
// identifier; files inside a bucket put selected entries first, then sort by
// filename.
type Index struct {
	Rules []RuleBucket
	Tags  []TagBucket
}

type tagEntry struct {
	path pathkey.Key
	rule string
}

// Build constructs the index for hits. selection marks which paths the user
// currently has selected; a nil map means nothing is selected. Build is pure:
// the same hits and selection always produce the same index.
func Build(hits []scan.Hit, selection map[pathkey.Key]bool) *Index {
	var ruleOrder []string
	ruleFiles := make(map[string][]FileRef)
	ruleSeen := make(map[string]map[pathkey.Key]struct{})

	var tagOrder []string
	tagFiles := make(map[string][]TagFileRef)
	tagSeen := make(map[string]map[tagEntry]struct{})

	for _, hit := range hits {
		ref := FileRef{
			Filename: hit.Filename,
			Path:     hit.Path,
			Selected: selection[hit.Path],
		}

		for _, rule := range hit.Rules {
			seen, ok := ruleSeen[rule.Identifier]
			if !ok {
				seen = make(map[pathkey.Key]struct{})
				ruleSeen[rule.Identifier] = seen
				ruleOrder = append(ruleOrder, rule.Identifier)
			}
			if _, dup := seen[hit.Path]; !dup {
				seen[hit.Path] = struct{}{}
				ruleFiles[rule.Identifier] = append(ruleFiles[rule.Identifier], ref)
			}

			for _, tag := range rule.Tags {
				seen, ok := tagSeen[tag]
				if !ok {
					seen = make(map[tagEntry]struct{})
					tagSeen[tag] = seen
					tagOrder = append(tagOrder, tag)
				}
				entry := tagEntry{path: hit.Path, rule: rule.Identifier}
				if _, dup := seen[entry]; dup {
					continue
				}
				seen[entry] = struct{}{}
				tagFiles[tag] = append(tagFiles[tag], TagFileRef{FileRef: ref, Rule: rule.Identifier})
			}
		}
	}

	idx := &Index{
		Rules: make([]RuleBucket, 0, len(ruleOrder)),
		Tags:  make([]TagBucket, 0, len(tagOrder)),
	}

	for _, rule := range ruleOrder {
		files := ruleFiles[rule]
		sortFileRefs(files)
		idx.Rules = append(idx.Rules, RuleBucket{Rule: rule, Files: files})
	}
	sort.SliceStable(idx.Rules, func(i, j int) bool {
		if len(idx.Rules[i].Files) != len(idx.Rules[j].Files) {
			return len(idx.Rules[i].Files) > len(idx.Rules[j].Files)
		}
		return idx.Rules[i].Rule < idx.Rules[j].Rule
	})

	for _, tag := range tagOrder {
		files := tagFiles[tag]
		sortTagFileRefs(files)
		idx.Tags = append(idx.Tags, TagBucket{Tag: tag, Files: files})
	}
	sort.SliceStable(idx.Tags, func(i, j int) bool {
		if len(idx.Tags[i].Files) != len(idx.Tags[j].Files) {
			return len(idx.Tags[i].Files) > len(idx.Tags[j].Files)
		}
		return idx.Tags[i].Tag < idx.Tags[j].Tag
	})

	return idx
}

// sortFileRefs orders selected entries first, then by filename; the stable
// sort preserves encounter order for files sharing a name.
func sortFileRefs(files []FileRef) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Selected != files[j].Selected {
			return files[i].Selected
		}
		return files[i].Filename < files[j].Filename
	})
}

func sortTagFileRefs(files []TagFileRef) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Selected != files[j].Selected {
			return files[i].Selected
		}
		return files[i].Filename < files[j].Filename
	})
}
