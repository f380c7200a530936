package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/harrison/yarascope/internal/engine"
	"github.com/harrison/yarascope/internal/preview"
)

const htmlPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>YARA Scan Report - %s</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; color: #24292f; }
h1, h2, h3 { border-bottom: 1px solid #d0d7de; padding-bottom: .3em; }
code { background: #f6f8fa; padding: .2em .4em; border-radius: 4px; font-size: 85%%; }
pre { background: #f6f8fa; padding: 1em; border-radius: 6px; overflow-x: auto; }
pre code { background: none; padding: 0; }
ul { line-height: 1.6; }
</style>
</head>
<body>
%s</body>
</html>
`

// WriteHTML writes a standalone HTML report: the report content is composed
// as markdown and rendered through goldmark, then wrapped in a minimal page.
func WriteHTML(w io.Writer, d *Data) error {
	md := buildMarkdown(d)

	var body bytes.Buffer
	if err := goldmark.Convert([]byte(md), &body); err != nil {
		return fmt.Errorf("render report markdown: %w", err)
	}

	page := fmt.Sprintf(htmlPage, html.EscapeString(d.RuleFile), body.String())
	if _, err := io.WriteString(w, page); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// buildMarkdown composes the report document. Core CommonMark only, so
// key/value facts go in bullet lists rather than tables.
func buildMarkdown(d *Data) string {
	var sb strings.Builder

	sb.WriteString("# YARA Scan Report\n\n")
	fmt.Fprintf(&sb, "- Rules: `%s`\n", d.RuleFile)
	fmt.Fprintf(&sb, "- Root: `%s`\n", d.Root)
	fmt.Fprintf(&sb, "- Date: %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
	if d.ScanID != "" {
		fmt.Fprintf(&sb, "- Scan ID: `%s`\n", d.ScanID)
	}
	sb.WriteString("\n## Summary\n\n")
	fmt.Fprintf(&sb, "- Files scanned: %d\n", d.Stats.Scanned)
	fmt.Fprintf(&sb, "- Matched: %d\n", d.Stats.Matched)
	fmt.Fprintf(&sb, "- Errors: %d\n", d.Stats.Errors)
	fmt.Fprintf(&sb, "- Duration: %s\n", d.Stats.Duration)

	if len(d.Excluded) > 0 {
		sb.WriteString("\n## Exclusions\n\n")
		for _, path := range d.Excluded {
			fmt.Fprintf(&sb, "- `%s`\n", path)
		}
	}

	if len(d.Hits) > 0 {
		sb.WriteString("\n## Matches\n")
		for _, hit := range d.Hits {
			fmt.Fprintf(&sb, "\n### %s\n\n", hit.Filename)
			fmt.Fprintf(&sb, "- Path: `%s`\n", hit.Path)
			fmt.Fprintf(&sb, "- MD5: `%s`\n", hit.Hashes.MD5)
			fmt.Fprintf(&sb, "- SHA1: `%s`\n", hit.Hashes.SHA1)
			fmt.Fprintf(&sb, "- SHA256: `%s`\n", hit.Hashes.SHA256)

			for _, rule := range hit.Rules {
				fmt.Fprintf(&sb, "\n**%s**%s\n\n", rule.Identifier, formatTags(rule.Tags))
				for _, key := range metadataKeys(rule.Metadata) {
					fmt.Fprintf(&sb, "- meta %s = %v\n", key, rule.Metadata[key])
				}
				writeMarkdownPatterns(&sb, hit.Data, rule.Patterns)
			}
		}
	}

	if d.Index != nil && len(d.Index.Rules) > 0 {
		sb.WriteString("\n## Files by rule\n\n")
		for _, bucket := range d.Index.Rules {
			fmt.Fprintf(&sb, "- **%s** (%d)\n", bucket.Rule, len(bucket.Files))
			for _, file := range bucket.Files {
				fmt.Fprintf(&sb, "  - `%s`\n", file.Filename)
			}
		}

		if len(d.Index.Tags) > 0 {
			sb.WriteString("\n## Files by tag\n\n")
			for _, bucket := range d.Index.Tags {
				fmt.Fprintf(&sb, "- **%s** (%d)\n", bucket.Tag, len(bucket.Files))
				for _, file := range bucket.Files {
					fmt.Fprintf(&sb, "  - `%s` (%s)\n", file.Filename, file.Rule)
				}
			}
		}
	}

	return sb.String()
}

// writeMarkdownPatterns emits one fenced block per pattern with its
// occurrences, mirroring the console previews.
func writeMarkdownPatterns(sb *strings.Builder, data []byte, patterns []engine.PatternMatch) {
	sb.WriteString("\n```\n")
	for _, pattern := range patterns {
		if pattern.IsConditionOnly() {
			p := preview.ConditionOnly()
			fmt.Fprintf(sb, "%s\n", p.Text)
			continue
		}
		for _, span := range pattern.Matches {
			p := preview.Build(data, span.Offset, span.Length)
			fmt.Fprintf(sb, "%s @ %s: %s\n", pattern.Identifier, preview.FormatOffset(span.Offset), p.Text)
			fmt.Fprintf(sb, "  %s\n", p.Hex)
		}
	}
	sb.WriteString("```\n")
}
