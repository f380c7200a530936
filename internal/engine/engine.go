// Package engine defines the boundary between yarascope and the rule
// matching engine.
//
// Everything above this package treats compiled rules as opaque: rule syntax,
// compilation, and byte-level matching belong to the engine implementation
// (see the yara subpackage). The result shapes here are the only vocabulary
// the scanner, the correlation index, and the reports ever see.
package engine

import "fmt"

// Compiler turns rule source text into an executable rule set.
type Compiler interface {
	Compile(source string) (Rules, error)
}

// Rules matches compiled rules against in-memory file contents.
type Rules interface {
	Scan(data []byte) (Result, error)
}

// Result is the outcome of scanning one buffer.
type Result struct {
	Matches []RuleMatch
}

// RuleMatch describes one rule that matched a buffer.
type RuleMatch struct {
	Identifier string
	Namespace  string
	Tags       []string
	Metadata   map[string]any
	Patterns   []PatternMatch
}

// PatternMatch groups the byte spans found for one string pattern of a rule.
type PatternMatch struct {
	Identifier string
	Matches    []Span
}

// Span locates one pattern occurrence inside the scanned buffer.
type Span struct {
	Offset uint64
	Length uint64
}

// ConditionOnlyPattern is the placeholder identifier inserted for rules whose
// condition matched without any string pattern, such as filesize-only rules.
// Consumers must never use it to index into file bytes.
const ConditionOnlyPattern = "<condition-only>"

// IsConditionOnly reports whether p is the placeholder for a rule that
// matched on its condition alone.
func (p PatternMatch) IsConditionOnly() bool {
	return p.Identifier == ConditionOnlyPattern
}

// Normalize guarantees that a rule match carries at least one pattern entry,
// inserting the condition-only placeholder with an empty span list when the
// engine reported none. Downstream display code relies on this and never
// special-cases empty pattern lists.
func Normalize(m RuleMatch) RuleMatch {
	if len(m.Patterns) == 0 {
		m.Patterns = []PatternMatch{{Identifier: ConditionOnlyPattern}}
	}
	return m
}

// NormalizeAll applies Normalize to every match in place and returns the
// slice for chaining.
func NormalizeAll(matches []RuleMatch) []RuleMatch {
	for i := range matches {
		matches[i] = Normalize(matches[i])
	}
	return matches
}

// Release frees native resources when the rule set holds any. Rule sets
// implemented in pure Go ignore it; nil is allowed.
func Release(r Rules) {
	if d, ok := r.(interface{ Destroy() }); ok {
		d.Destroy()
	}
}

// CompileError reports that rule source was rejected by the engine. Detail
// preserves the engine's own message, including line information when the
// engine provides it.
type CompileError struct {
	Detail string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("rule compilation failed: %s", e.Detail)
}
