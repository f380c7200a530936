package ruleinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeMultiRuleSource(t *testing.T) {
	source := `
import "pe"
import "math"

rule first : trojan windows
{
    meta:
        author = "analyst"
        score = 9
    strings:
        $a = "evil"
        $b = { 4D 5A 90 00 }
    condition:
        $a or $b
}

private rule helper
{
    strings:
        $x = "fragment"
    condition:
        $x
}
`
	info := Analyze(source)

	assert.Equal(t, []string{"pe", "math"}, info.Imports)
	require.Len(t, info.Rules, 2)

	first := info.Rules[0]
	assert.Equal(t, "first", first.Name)
	assert.Equal(t, []string{"trojan", "windows"}, first.Tags)
	assert.Equal(t, 2, first.Strings)
	assert.Equal(t, 2, first.Meta)
	assert.True(t, first.HasCondition)
	assert.False(t, first.Private)

	helper := info.Rules[1]
	assert.Equal(t, "helper", helper.Name)
	assert.Empty(t, helper.Tags)
	assert.Equal(t, 1, helper.Strings)
	assert.True(t, helper.Private)

	assert.Equal(t, 3, info.TotalStrings)
	assert.Equal(t, 2, info.TotalTags)
	assert.Equal(t, "2 rules, 3 strings, 2 tags", info.Summary())
}

func TestAnalyzeConditionOnlyRule(t *testing.T) {
	source := `
rule small_file
{
    condition:
        filesize < 100
}
`
	info := Analyze(source)

	require.Len(t, info.Rules, 1)
	assert.Equal(t, 0, info.Rules[0].Strings)
	assert.Equal(t, 0, info.Rules[0].Meta)
	assert.True(t, info.Rules[0].HasCondition)
}

func TestAnalyzeIgnoresComments(t *testing.T) {
	source := `
// rule commented_out { condition: true }
/*
rule also_hidden
{
    condition: true
}
*/
rule real_one
{
    strings:
        $url = "http://example.com/path" // trailing comment
    condition:
        $url
}
`
	info := Analyze(source)

	require.Len(t, info.Rules, 1)
	assert.Equal(t, "real_one", info.Rules[0].Name)
	assert.Equal(t, 1, info.Rules[0].Strings, "the // inside the quoted URL must not truncate the line")
}

func TestAnalyzeAnonymousString(t *testing.T) {
	source := `
rule anon
{
    strings:
        $ = "unnamed"
    condition:
        any of them
}
`
	info := Analyze(source)

	require.Len(t, info.Rules, 1)
	assert.Equal(t, 1, info.Rules[0].Strings)
}

func TestAnalyzeHexStringBracesDoNotSplitRules(t *testing.T) {
	source := `
rule hexed
{
    strings:
        $h = { DE AD BE EF }
    condition:
        $h
}

rule after
{
    condition:
        true
}
`
	info := Analyze(source)

	require.Len(t, info.Rules, 2)
	assert.Equal(t, "hexed", info.Rules[0].Name)
	assert.Equal(t, "after", info.Rules[1].Name)
}

func TestAnalyzeInlineSectionContent(t *testing.T) {
	source := `
rule compact
{
    meta: author = "x"
    strings: $a = "y"
    condition: $a
}
`
	info := Analyze(source)

	require.Len(t, info.Rules, 1)
	assert.Equal(t, 1, info.Rules[0].Meta)
	assert.Equal(t, 1, info.Rules[0].Strings)
	assert.True(t, info.Rules[0].HasCondition)
}

func TestAnalyzeEmptySource(t *testing.T) {
	info := Analyze("")

	assert.Empty(t, info.Rules)
	assert.Empty(t, info.Imports)
	assert.Equal(t, "0 rules, 0 strings, 0 tags", info.Summary())
}

func TestAnalyzeGlobalModifier(t *testing.T) {
	source := `
global rule gatekeeper
{
    condition:
        filesize < 10MB
}
`
	info := Analyze(source)

	require.Len(t, info.Rules, 1)
	assert.True(t, info.Rules[0].Global)
	assert.False(t, info.Rules[0].Private)
}
