package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completeDoc = `# TDD Strategy

## Purpose

Explain how the team writes tests first.

## Key Concepts

Red, green, refactor.

## Best Practices

- Write the failing test before the code.
- Keep each test focused on one behaviour.

` + "```go\nfunc TestAdd(t *testing.T) {}\n```" + `

## Summary

Tests drive the design.
`

func issuesByRule(res Result, rule string) []Issue {
	var out []Issue
	for _, is := range res.Issues {
		if is.Rule == rule {
			out = append(out, is)
		}
	}
	return out
}

func TestValidate_CompleteDocumentPasses(t *testing.T) {
	res := Validate(completeDoc)
	assert.True(t, res.Passed)
	assert.Empty(t, res.Errors())
	assert.Empty(t, res.Issues, "unexpected issues: %+v", res.Issues)
}

func TestValidate_MissingPurpose(t *testing.T) {
	doc := strings.Replace(completeDoc, "## Purpose\n\nExplain how the team writes tests first.\n\n", "", 1)
	res := Validate(doc)

	assert.False(t, res.Passed)
	errs := res.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, KindMissingSection, errs[0].Kind)
	assert.Equal(t, "Purpose", errs[0].Section)
	assert.Equal(t, RuleRequiredSections, errs[0].Rule)
	assert.Equal(t, Position{Line: 0, Column: 0}, errs[0].Range.Start)
}

func TestValidate_MissingSectionsAnchoredAfterFrontMatter(t *testing.T) {
	res := Validate("---\ntitle: x\n---\n# Only a title\n\n- Use it.\n")
	errs := res.Errors()
	require.Len(t, errs, len(DefaultRequiredSections))
	for _, e := range errs {
		assert.Equal(t, 3, e.Range.Start.Line)
	}
}

func TestValidate_SectionMatching(t *testing.T) {
	tests := []struct {
		heading string
		section string
		want    bool
	}{
		{"Purpose", "Purpose", true},
		{"purpose", "Purpose", true},
		{"Summary: what to remember", "Summary", true},
		{"Summary (short)", "Summary", true},
		{"Summarys", "Summary", false},
		{"Key Concepts and Terms", "Key Concepts", true},
		{"Purposeful design", "Purpose", false},
		{"Best", "Best Practices", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesSection(tt.heading, tt.section), "%q vs %q", tt.heading, tt.section)
	}
}

func TestValidate_ActionableGuidance(t *testing.T) {
	prose := "# Doc\n\n## Purpose\n\nText.\n\n## Key Concepts\n\nText.\n\n## Best Practices\n\nThings are good.\n\n## Summary\n\nDone.\n"
	res := Validate(prose)
	assert.True(t, res.Passed, "warnings never fail validation")
	warns := issuesByRule(res, RuleActionableGuidance)
	require.Len(t, warns, 1)
	assert.Equal(t, SeverityWarning, warns[0].Severity)
	assert.Equal(t, KindPoorContentQuality, warns[0].Kind)
	assert.Contains(t, warns[0].Message, "lacks actionable guidance")

	// A plain descriptive bullet list is not an instruction.
	res = Validate(prose + "\n- apples\n- pears\n")
	assert.Len(t, issuesByRule(res, RuleActionableGuidance), 1)

	res = Validate(prose + "\n- Avoid global state.\n")
	assert.Empty(t, issuesByRule(res, RuleActionableGuidance))

	res = Validate(prose + "\n1. Run the suite.\n")
	assert.Empty(t, issuesByRule(res, RuleActionableGuidance))

	res = Validate(prose + "\n- [ ] tests added\n")
	assert.Empty(t, issuesByRule(res, RuleActionableGuidance))

	res = Validate(prose + "\n~~~\nmake test\n~~~\n")
	assert.Empty(t, issuesByRule(res, RuleActionableGuidance))
}

func TestValidate_HeadingIncrement(t *testing.T) {
	doc := "# Title\n### Deep\n" + completeDoc
	res := Validate(doc)
	warns := issuesByRule(res, RuleHeadingIncrement)
	require.Len(t, warns, 1)
	assert.Equal(t, 1, warns[0].Range.Start.Line)
	assert.Equal(t, KindFormattingIssue, warns[0].Kind)
	assert.Contains(t, warns[0].Message, "H1 to H3")

	// Going back up any number of levels is fine.
	res = Validate("# A\n## B\n### C\n# D\n## E\n")
	assert.Empty(t, issuesByRule(res, RuleHeadingIncrement))
}

func TestValidate_HeadingsInsideCodeAreIgnored(t *testing.T) {
	doc := "# Title\n\n```\n### not a heading\n## Purpose\n```\n"
	d := Parse(doc)
	require.Len(t, d.Headings, 1)
	assert.Equal(t, 1, d.CodeBlocks)

	res := Validate(doc)
	assert.Empty(t, issuesByRule(res, RuleHeadingIncrement))
	assert.Len(t, res.Errors(), len(DefaultRequiredSections))
}

func TestValidate_EmptySection(t *testing.T) {
	doc := strings.Replace(completeDoc, "Red, green, refactor.\n", "", 1)
	res := Validate(doc)
	warns := issuesByRule(res, RuleEmptySection)
	require.Len(t, warns, 1)
	assert.Equal(t, "Key Concepts", warns[0].Section)

	// Subsections count as content.
	doc = strings.Replace(completeDoc, "Red, green, refactor.\n", "### Red\n\nFail first.\n", 1)
	assert.Empty(t, issuesByRule(Validate(doc), RuleEmptySection))
}

func TestValidate_UnclosedFence(t *testing.T) {
	res := Validate(completeDoc + "\n```bash\necho open\n")
	warns := issuesByRule(res, RuleUnclosedCodeFence)
	require.Len(t, warns, 1)
	assert.Greater(t, warns[0].Range.Start.Line, 20)
}

func TestValidate_FrontMatter(t *testing.T) {
	res := Validate("---\ntitle: ok\ntags: [a, b]\n---\n" + completeDoc)
	assert.Empty(t, issuesByRule(res, RuleFrontMatter))

	res = Validate("---\ntitle: [unclosed\n---\n" + completeDoc)
	warns := issuesByRule(res, RuleFrontMatter)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Message, "not valid YAML")

	res = Validate("---\ntitle: x\n" + completeDoc)
	warns = issuesByRule(res, RuleFrontMatter)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Message, "not terminated")
	assert.Empty(t, res.Errors(), "unterminated front matter is rescanned as content")
}

func TestValidate_IssuesOrderedByPosition(t *testing.T) {
	res := Validate("# A\n### B\n\n```\nopen\n")
	require.NotEmpty(t, res.Issues)
	for i := 1; i < len(res.Issues); i++ {
		prev, cur := res.Issues[i-1].Range.Start, res.Issues[i].Range.Start
		assert.True(t, prev.Line < cur.Line || (prev.Line == cur.Line && prev.Column <= cur.Column))
	}
}

func TestNew_Options(t *testing.T) {
	v, err := New(Options{RequiredSections: []string{"Overview"}, DisabledRules: []string{RuleActionableGuidance}})
	require.NoError(t, err)
	assert.NotContains(t, v.RuleNames(), RuleActionableGuidance)

	res := v.Validate("# Doc\n\n## Overview\n\nText only.\n")
	assert.True(t, res.Passed)
	assert.Empty(t, res.Issues)

	_, err = New(Options{DisabledRules: []string{"no-such-rule"}})
	assert.Error(t, err)

	custom := RuleFunc{RuleName: "no-todo", Fn: func(ctx *Context) []Issue {
		return []Issue{{Severity: SeverityError, Kind: KindPoorContentQuality, Message: "todo"}}
	}}
	v, err = New(Options{Rules: []Rule{custom}})
	require.NoError(t, err)
	res = v.Validate("anything")
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "no-todo", res.Issues[0].Rule)
	assert.False(t, res.Passed)

	_, err = New(Options{Rules: []Rule{custom, custom}})
	assert.Error(t, err)
}

func TestValidate_EmptyInput(t *testing.T) {
	res := Validate("")
	assert.False(t, res.Passed)
	assert.Len(t, res.Errors(), len(DefaultRequiredSections))
}

func TestValidate_LargeDocumentIsFast(t *testing.T) {
	var b strings.Builder
	b.WriteString(completeDoc)
	for b.Len() < 1<<20 {
		b.WriteString("## Detail\n\nSome prose (a+)+ with .* symbols that goes on for a while.\n- Use short functions.\n")
	}
	start := time.Now()
	res := Validate(b.String())
	elapsed := time.Since(start)

	assert.True(t, res.Passed)
	assert.Less(t, elapsed, time.Second)
}

func TestParse_CRLF(t *testing.T) {
	d := Parse("# Title\r\n\r\n## Purpose\r\nText\r\n")
	require.Len(t, d.Headings, 2)
	assert.Equal(t, "Purpose", d.Headings[1].Text)
	assert.Equal(t, 1, d.Headings[1].BodyLines)
	assert.Equal(t, 4, d.Lines)
}
