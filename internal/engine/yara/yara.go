// Package yara implements the engine interfaces on top of the libyara
// bindings from github.com/hillu/go-yara.
package yara

import (
	"fmt"
	"strings"
	"time"

	goyara "github.com/hillu/go-yara/v4"

	"github.com/harrison/yarascope/internal/engine"
)

// DefaultNamespace is the namespace rule sources are compiled into.
const DefaultNamespace = "yarascope"

// DefaultTimeout bounds the scan of a single buffer.
const DefaultTimeout = 30 * time.Second

// Compiler compiles YARA source through libyara. A fresh libyara compiler is
// created per Compile call; libyara compilers cannot be reused after a
// failed add.
type Compiler struct {
	namespace string
	timeout   time.Duration
}

// NewCompiler returns a Compiler with the default namespace and scan timeout.
func NewCompiler() *Compiler {
	return NewCompilerWithOptions(DefaultNamespace, DefaultTimeout)
}

// NewCompilerWithOptions returns a Compiler with an explicit namespace and
// scan timeout. Empty or non-positive values fall back to the defaults.
func NewCompilerWithOptions(namespace string, timeout time.Duration) *Compiler {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Compiler{namespace: namespace, timeout: timeout}
}

// Compile parses source into an executable rule set. Rejected source comes
// back as *engine.CompileError carrying libyara's message, with line numbers
// when libyara reports them.
func (c *Compiler) Compile(source string) (engine.Rules, error) {
	yc, err := goyara.NewCompiler()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rule compiler: %w", err)
	}
	defer yc.Destroy()

	if err := yc.AddString(source, c.namespace); err != nil {
		return nil, &engine.CompileError{Detail: compileDetail(yc, err)}
	}

	rules, err := yc.GetRules()
	if err != nil {
		return nil, &engine.CompileError{Detail: compileDetail(yc, err)}
	}

	return &ruleSet{rules: rules, timeout: c.timeout}, nil
}

// compileDetail prefers libyara's accumulated per-line messages over the
// generic error string.
func compileDetail(yc *goyara.Compiler, err error) string {
	if len(yc.Errors) == 0 {
		return err.Error()
	}
	lines := make([]string, 0, len(yc.Errors))
	for _, msg := range yc.Errors {
		if msg.Line > 0 {
			lines = append(lines, fmt.Sprintf("line %d: %s", msg.Line, msg.Text))
		} else {
			lines = append(lines, msg.Text)
		}
	}
	return strings.Join(lines, "; ")
}

// ruleSet wraps compiled libyara rules.
type ruleSet struct {
	rules   *goyara.Rules
	timeout time.Duration
}

// Scan matches the compiled rules against data. Fast mode stays off: every
// occurrence of every string is reported, and the spans feed offset-based
// previews later.
func (r *ruleSet) Scan(data []byte) (engine.Result, error) {
	var raw goyara.MatchRules
	if err := r.rules.ScanMem(data, 0, r.timeout, &raw); err != nil {
		return engine.Result{}, fmt.Errorf("scan failed: %w", err)
	}
	return engine.Result{Matches: convertMatches(raw)}, nil
}

// Destroy releases the libyara rule handle ahead of the finalizer go-yara
// sets, so native memory stays bounded during long runs.
func (r *ruleSet) Destroy() {
	if r.rules != nil {
		r.rules.Destroy()
		r.rules = nil
	}
}

func convertMatches(raw goyara.MatchRules) []engine.RuleMatch {
	matches := make([]engine.RuleMatch, 0, len(raw))
	for _, m := range raw {
		rm := engine.RuleMatch{
			Identifier: m.Rule,
			Namespace:  m.Namespace,
			Tags:       append([]string(nil), m.Tags...),
			Metadata:   make(map[string]any, len(m.Metas)),
			Patterns:   groupStrings(m.Strings),
		}
		for _, meta := range m.Metas {
			rm.Metadata[meta.Identifier] = meta.Value
		}
		matches = append(matches, rm)
	}
	return matches
}

// groupStrings folds libyara's flat match list into one PatternMatch per
// string identifier, preserving first-seen order.
func groupStrings(strs []goyara.MatchString) []engine.PatternMatch {
	var order []string
	grouped := make(map[string][]engine.Span)

	for _, s := range strs {
		if _, seen := grouped[s.Name]; !seen {
			order = append(order, s.Name)
		}
		grouped[s.Name] = append(grouped[s.Name], engine.Span{
			Offset: s.Offset,
			Length: uint64(len(s.Data)),
		})
	}

	patterns := make([]engine.PatternMatch, 0, len(order))
	for _, name := range order {
		patterns = append(patterns, engine.PatternMatch{Identifier: name, Matches: grouped[name]})
	}
	return patterns
}
