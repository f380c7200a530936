package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeInsertsConditionOnlyPlaceholder(t *testing.T) {
	m := RuleMatch{Identifier: "filesize_only"}

	got := Normalize(m)

	require.Len(t, got.Patterns, 1)
	assert.Equal(t, ConditionOnlyPattern, got.Patterns[0].Identifier)
	assert.Empty(t, got.Patterns[0].Matches)
	assert.True(t, got.Patterns[0].IsConditionOnly())
}

func TestNormalizeKeepsRealPatterns(t *testing.T) {
	m := RuleMatch{
		Identifier: "with_strings",
		Patterns: []PatternMatch{
			{Identifier: "$a", Matches: []Span{{Offset: 4, Length: 3}}},
		},
	}

	got := Normalize(m)

	require.Len(t, got.Patterns, 1)
	assert.Equal(t, "$a", got.Patterns[0].Identifier)
	assert.False(t, got.Patterns[0].IsConditionOnly())
}

func TestNormalizeIsIdempotent(t *testing.T) {
	m := Normalize(RuleMatch{Identifier: "r"})
	again := Normalize(m)
	assert.Equal(t, m, again)
}

func TestNormalizeAll(t *testing.T) {
	matches := []RuleMatch{
		{Identifier: "bare"},
		{Identifier: "full", Patterns: []PatternMatch{{Identifier: "$x"}}},
	}

	got := NormalizeAll(matches)

	require.Len(t, got, 2)
	assert.Equal(t, ConditionOnlyPattern, got[0].Patterns[0].Identifier)
	assert.Equal(t, "$x", got[1].Patterns[0].Identifier)
}

func TestCompileErrorMessage(t *testing.T) {
	err := &CompileError{Detail: "line 3: syntax error, unexpected identifier"}

	assert.Contains(t, err.Error(), "rule compilation failed")
	assert.Contains(t, err.Error(), "line 3")

	var ce *CompileError
	wrapped := fmt.Errorf("compiling rules: %w", err)
	require.True(t, errors.As(wrapped, &ce))
	assert.Equal(t, err.Detail, ce.Detail)
}

type destroyableRules struct {
	destroyed bool
}

func (d *destroyableRules) Scan(data []byte) (Result, error) { return Result{}, nil }
func (d *destroyableRules) Destroy()                         { d.destroyed = true }

type plainRules struct{}

func (plainRules) Scan(data []byte) (Result, error) { return Result{}, nil }

func TestRelease(t *testing.T) {
	d := &destroyableRules{}
	Release(d)
	assert.True(t, d.destroyed)

	// Rule sets without native resources are ignored, as is nil.
	Release(plainRules{})
	Release(nil)
}
