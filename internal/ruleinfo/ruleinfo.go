// Package ruleinfo summarizes rule source without compiling it.
//
// The analysis is textual: it recognizes rule headers, section markers, and
// declarations well enough to report counts and tags. Real syntax checking
// stays with the engine; these numbers are advisory and cheap to compute.
package ruleinfo

import (
	"fmt"
	"regexp"
	"strings"
)

// RuleInfo summarizes one rule declaration.
type RuleInfo struct {
	Name         string
	Tags         []string
	Strings      int
	Meta         int
	HasCondition bool
	Private      bool
	Global       bool
}

// Info summarizes a whole rule source.
type Info struct {
	Rules        []RuleInfo
	Imports      []string
	TotalStrings int
	TotalTags    int
}

// Summary returns the one-line digest shown after analysis.
func (i *Info) Summary() string {
	return fmt.Sprintf("%d rules, %d strings, %d tags", len(i.Rules), i.TotalStrings, i.TotalTags)
}

var (
	ruleHeaderRe = regexp.MustCompile(`^\s*((?:private\s+|global\s+)*)rule\s+([A-Za-z_][A-Za-z0-9_]*)\s*(?::([^{]*))?`)
	importRe     = regexp.MustCompile(`^\s*import\s+"([^"]+)"`)
	sectionRe    = regexp.MustCompile(`^\s*(meta|strings|condition)\s*:`)
	stringDefRe  = regexp.MustCompile(`^\s*\$[A-Za-z0-9_]*\s*=`)
	metaDefRe    = regexp.MustCompile(`^\s*[A-Za-z_][A-Za-z0-9_]*\s*=`)
)

// Analyze scans source line by line after removing comments. Rule boundaries
// are detected by headers rather than brace matching, so hex strings
// containing braces do not confuse the count.
func Analyze(source string) *Info {
	info := &Info{}

	var current *RuleInfo
	section := ""
	flush := func() {
		if current != nil {
			info.Rules = append(info.Rules, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(stripComments(source), "\n") {
		if current == nil {
			if m := importRe.FindStringSubmatch(line); m != nil {
				info.Imports = append(info.Imports, m[1])
				continue
			}
		}

		if m := ruleHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			r := RuleInfo{
				Name:    m[2],
				Private: strings.Contains(m[1], "private"),
				Global:  strings.Contains(m[1], "global"),
			}
			if tags := strings.Fields(m[3]); len(tags) > 0 {
				r.Tags = tags
			}
			current = &r
			section = ""
			continue
		}

		if current == nil {
			continue
		}

		if m := sectionRe.FindStringSubmatch(line); m != nil {
			section = m[1]
			// Declarations may trail the marker on the same line.
			line = line[strings.Index(line, ":")+1:]
		}

		switch section {
		case "strings":
			if stringDefRe.MatchString(line) {
				current.Strings++
			}
		case "meta":
			if metaDefRe.MatchString(line) {
				current.Meta++
			}
		case "condition":
			if trimmed := strings.TrimSpace(line); trimmed != "" && trimmed != "}" {
				current.HasCondition = true
			}
		}
	}
	flush()

	for _, r := range info.Rules {
		info.TotalStrings += r.Strings
		info.TotalTags += len(r.Tags)
	}
	return info
}

// stripComments removes // and /* */ comments while leaving quoted strings
// intact, so URLs and escaped quotes inside patterns survive.
func stripComments(source string) string {
	var b strings.Builder
	b.Grow(len(source))

	inBlock := false
	inQuote := false
	escaped := false

	for i := 0; i < len(source); i++ {
		c := source[i]

		if inBlock {
			if c == '*' && i+1 < len(source) && source[i+1] == '/' {
				inBlock = false
				i++
			} else if c == '\n' {
				b.WriteByte('\n')
			}
			continue
		}

		if inQuote {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"', c == '\n':
				inQuote = false
			}
			continue
		}

		switch c {
		case '"':
			inQuote = true
			b.WriteByte(c)
		case '/':
			if i+1 < len(source) && source[i+1] == '/' {
				j := strings.IndexByte(source[i:], '\n')
				if j < 0 {
					i = len(source)
				} else {
					i += j - 1
				}
				continue
			}
			if i+1 < len(source) && source[i+1] == '*' {
				inBlock = true
				i++
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
