package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/harrison/yarascope/internal/engine"
	"github.com/harrison/yarascope/internal/preview"
	"github.com/harrison/yarascope/internal/scan"
)

// jsonReport is the machine-readable shape of a scan report.
type jsonReport struct {
	RuleFile  string     `json:"rule_file"`
	Root      string     `json:"root"`
	ScanID    string     `json:"scan_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Stats     jsonStats  `json:"stats"`
	Excluded  []string   `json:"excluded,omitempty"`
	Hits      []jsonHit  `json:"hits"`
	Misses    []jsonMiss `json:"misses"`
}

type jsonStats struct {
	Scanned    int   `json:"scanned"`
	Matched    int   `json:"matched"`
	Errors     int   `json:"errors"`
	DurationMs int64 `json:"duration_ms"`
}

type jsonHit struct {
	Filename string     `json:"filename"`
	Path     string     `json:"path"`
	MD5      string     `json:"md5"`
	SHA1     string     `json:"sha1"`
	SHA256   string     `json:"sha256"`
	Rules    []jsonRule `json:"rules"`
}

type jsonMiss struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	MD5      string `json:"md5"`
	SHA1     string `json:"sha1"`
	SHA256   string `json:"sha256"`
}

type jsonRule struct {
	Identifier string                 `json:"identifier"`
	Namespace  string                 `json:"namespace,omitempty"`
	Tags       []string               `json:"tags,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Patterns   []jsonPattern          `json:"patterns"`
}

type jsonPattern struct {
	Identifier    string     `json:"identifier"`
	ConditionOnly bool       `json:"condition_only,omitempty"`
	Spans         []jsonSpan `json:"spans,omitempty"`
}

type jsonSpan struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
	Text   string `json:"text"`
	Hex    string `json:"hex"`
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, d *Data) error {
	out := jsonReport{
		RuleFile:  d.RuleFile,
		Root:      d.Root,
		ScanID:    d.ScanID,
		CreatedAt: d.CreatedAt,
		Stats: jsonStats{
			Scanned:    d.Stats.Scanned,
			Matched:    d.Stats.Matched,
			Errors:     d.Stats.Errors,
			DurationMs: d.Stats.Duration.Milliseconds(),
		},
		Excluded: d.Excluded,
		Hits:     make([]jsonHit, 0, len(d.Hits)),
		Misses:   make([]jsonMiss, 0, len(d.Misses)),
	}

	for _, hit := range d.Hits {
		out.Hits = append(out.Hits, convertHit(hit))
	}
	for _, miss := range d.Misses {
		out.Misses = append(out.Misses, jsonMiss{
			Filename: miss.Filename,
			Path:     miss.Path.String(),
			MD5:      miss.Hashes.MD5,
			SHA1:     miss.Hashes.SHA1,
			SHA256:   miss.Hashes.SHA256,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func convertHit(hit scan.Hit) jsonHit {
	jh := jsonHit{
		Filename: hit.Filename,
		Path:     hit.Path.String(),
		MD5:      hit.Hashes.MD5,
		SHA1:     hit.Hashes.SHA1,
		SHA256:   hit.Hashes.SHA256,
		Rules:    make([]jsonRule, 0, len(hit.Rules)),
	}

	for _, rule := range hit.Rules {
		jr := jsonRule{
			Identifier: rule.Identifier,
			Namespace:  rule.Namespace,
			Tags:       rule.Tags,
			Metadata:   rule.Metadata,
			Patterns:   make([]jsonPattern, 0, len(rule.Patterns)),
		}
		for _, pattern := range rule.Patterns {
			jr.Patterns = append(jr.Patterns, convertPattern(hit.Data, pattern))
		}
		jh.Rules = append(jh.Rules, jr)
	}

	return jh
}

func convertPattern(data []byte, pattern engine.PatternMatch) jsonPattern {
	jp := jsonPattern{Identifier: pattern.Identifier}
	if pattern.IsConditionOnly() {
		jp.ConditionOnly = true
		return jp
	}

	for _, span := range pattern.Matches {
		p := preview.Build(data, span.Offset, span.Length)
		jp.Spans = append(jp.Spans, jsonSpan{
			Offset: span.Offset,
			Length: span.Length,
			Text:   p.Text,
			Hex:    p.Hex,
		})
	}
	return jp
}
