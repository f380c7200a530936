package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/disiqueira/gotree/v3"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/yarascope/internal/engine"
	"github.com/harrison/yarascope/internal/preview"
)

// Console writes human-readable scan results. Output is colorized when the
// writer is a terminal.
type Console struct {
	out   io.Writer
	color bool
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer) *Console {
	colorOutput := false
	if f, ok := out.(*os.File); ok {
		colorOutput = isatty.IsTerminal(f.Fd())
	}
	return &Console{out: out, color: colorOutput}
}

// paint colorizes s when the writer is a terminal, otherwise returns it as-is.
func (c *Console) paint(attr color.Attribute, s string) string {
	if !c.color {
		return s
	}
	return color.New(attr).Sprint(s)
}

// WriteSummary prints the end-of-scan counters.
func (c *Console) WriteSummary(d *Data) {
	fmt.Fprintln(c.out, c.paint(color.Bold, "=== Scan Summary ==="))
	fmt.Fprintf(c.out, "Rules: %s\n", d.RuleFile)
	fmt.Fprintf(c.out, "Root: %s\n", d.Root)
	fmt.Fprintf(c.out, "Files scanned: %d\n", d.Stats.Scanned)

	matched := fmt.Sprintf("Matched: %d", d.Stats.Matched)
	if d.Stats.Matched > 0 {
		matched = c.paint(color.FgRed, matched)
	} else {
		matched = c.paint(color.FgGreen, matched)
	}
	fmt.Fprintln(c.out, matched)

	errLine := fmt.Sprintf("Errors: %d", d.Stats.Errors)
	if d.Stats.Errors > 0 {
		errLine = c.paint(color.FgYellow, errLine)
	}
	fmt.Fprintln(c.out, errLine)

	fmt.Fprintf(c.out, "Duration: %s\n", d.Stats.Duration.Round(time.Millisecond))

	if len(d.Excluded) > 0 {
		fmt.Fprintf(c.out, "Exclusions: %d\n", len(d.Excluded))
	}
	if d.ScanID != "" {
		fmt.Fprintf(c.out, "Scan ID: %s\n", d.ScanID)
	}
}

// WriteMatchDetails prints one block per matched file: hashes, then each
// rule with its tags and metadata, then each pattern occurrence with offset
// and text/hex previews.
func (c *Console) WriteMatchDetails(d *Data) {
	if len(d.Hits) == 0 {
		return
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.paint(color.Bold, "=== Match Details ==="))

	for _, hit := range d.Hits {
		fmt.Fprintln(c.out)
		fmt.Fprintf(c.out, "%s (%s)\n", c.paint(color.FgRed, hit.Filename), hit.Path)
		fmt.Fprintf(c.out, "  md5: %s\n", hit.Hashes.MD5)
		fmt.Fprintf(c.out, "  sha1: %s\n", hit.Hashes.SHA1)
		fmt.Fprintf(c.out, "  sha256: %s\n", hit.Hashes.SHA256)

		for _, rule := range hit.Rules {
			fmt.Fprintf(c.out, "  %s%s\n", c.paint(color.Bold, rule.Identifier), formatTags(rule.Tags))
			for _, key := range metadataKeys(rule.Metadata) {
				fmt.Fprintf(c.out, "    meta %s = %v\n", key, rule.Metadata[key])
			}

			for _, pattern := range rule.Patterns {
				c.writePattern(hit.Data, pattern)
			}
		}
	}
}

// writePattern prints one pattern's occurrences, or the condition-only
// placeholder line.
func (c *Console) writePattern(data []byte, pattern engine.PatternMatch) {
	if pattern.IsConditionOnly() {
		p := preview.ConditionOnly()
		fmt.Fprintf(c.out, "    %s\n", p.Text)
		return
	}

	for _, span := range pattern.Matches {
		p := preview.Build(data, span.Offset, span.Length)
		fmt.Fprintf(c.out, "    %s @ %s: %s\n", pattern.Identifier, preview.FormatOffset(span.Offset), p.Text)
		fmt.Fprintf(c.out, "      %s\n", p.Hex)
	}
}

// WriteCorrelation prints the rule and tag groupings as trees.
func (c *Console) WriteCorrelation(d *Data) {
	if d.Index == nil || len(d.Index.Rules) == 0 {
		return
	}

	fmt.Fprintln(c.out)
	ruleTree := gotree.New(c.paint(color.Bold, "Matches by rule"))
	for _, bucket := range d.Index.Rules {
		node := ruleTree.Add(fmt.Sprintf("%s (%d)", bucket.Rule, len(bucket.Files)))
		for _, file := range bucket.Files {
			node.Add(file.Filename)
		}
	}
	fmt.Fprint(c.out, ruleTree.Print())

	if len(d.Index.Tags) > 0 {
		tagTree := gotree.New(c.paint(color.Bold, "Matches by tag"))
		for _, bucket := range d.Index.Tags {
			node := tagTree.Add(fmt.Sprintf("%s (%d)", bucket.Tag, len(bucket.Files)))
			for _, file := range bucket.Files {
				node.Add(fmt.Sprintf("%s (%s)", file.Filename, file.Rule))
			}
		}
		fmt.Fprint(c.out, tagTree.Print())
	}
}

// WriteAll prints summary, match details, and correlation in order.
func (c *Console) WriteAll(d *Data) {
	c.WriteSummary(d)
	c.WriteMatchDetails(d)
	c.WriteCorrelation(d)
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " [" + strings.Join(tags, ", ") + "]"
}
