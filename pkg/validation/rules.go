package validation

import (
	"fmt"
	"strings"
)

// Context is what a rule sees.
type Context struct {
	Doc              *Document
	RequiredSections []string
}

// docStart anchors document-level issues on the first content line.
func (c *Context) docStart() Range {
	return lineRange(c.Doc.ContentStart, 0, 0)
}

// findSection returns the first heading matching section.
func (c *Context) findSection(section string) (Heading, bool) {
	for _, h := range c.Doc.Headings {
		if matchesSection(h.Text, section) {
			return h, true
		}
	}
	return Heading{}, false
}

// Rule is a named check over a parsed document.
type Rule interface {
	Name() string
	Check(ctx *Context) []Issue
}

// RuleFunc adapts a function into a Rule.
type RuleFunc struct {
	RuleName string
	Fn       func(ctx *Context) []Issue
}

func (r RuleFunc) Name() string               { return r.RuleName }
func (r RuleFunc) Check(ctx *Context) []Issue { return r.Fn(ctx) }

// Rule names.
const (
	RuleRequiredSections   = "required-sections"
	RuleActionableGuidance = "actionable-guidance"
	RuleHeadingIncrement   = "heading-increment"
	RuleEmptySection       = "empty-section"
	RuleUnclosedCodeFence  = "unclosed-code-fence"
	RuleFrontMatter        = "front-matter"
)

// DefaultRules returns the built-in rules.
func DefaultRules() []Rule {
	return []Rule{
		RuleFunc{RuleRequiredSections, checkRequiredSections},
		RuleFunc{RuleActionableGuidance, checkActionableGuidance},
		RuleFunc{RuleHeadingIncrement, checkHeadingIncrement},
		RuleFunc{RuleEmptySection, checkEmptySections},
		RuleFunc{RuleUnclosedCodeFence, checkUnclosedFence},
		RuleFunc{RuleFrontMatter, checkFrontMatter},
	}
}

func checkRequiredSections(ctx *Context) []Issue {
	var issues []Issue
	for _, s := range ctx.RequiredSections {
		if _, ok := ctx.findSection(s); ok {
			continue
		}
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Kind:       KindMissingSection,
			Section:    s,
			Range:      ctx.docStart(),
			Message:    fmt.Sprintf("missing required section %q", s),
			Suggestion: fmt.Sprintf("add a \"## %s\" heading", s),
		})
	}
	return issues
}

func checkActionableGuidance(ctx *Context) []Issue {
	d := ctx.Doc
	if d.CodeBlocks > 0 || d.ImperativeBullets > 0 {
		return nil
	}
	return []Issue{{
		Severity:   SeverityWarning,
		Kind:       KindPoorContentQuality,
		Range:      ctx.docStart(),
		Message:    "document lacks actionable guidance",
		Suggestion: "add a code example or a bullet list of concrete instructions (\"- Use ...\", \"- Avoid ...\")",
	}}
}

func checkHeadingIncrement(ctx *Context) []Issue {
	var issues []Issue
	hs := ctx.Doc.Headings
	for i := 1; i < len(hs); i++ {
		prev, cur := hs[i-1], hs[i]
		if cur.Level <= prev.Level+1 {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Kind:     KindFormattingIssue,
			Section:  cur.Text,
			Range:    lineRange(cur.Line, cur.Column, cur.Width),
			Message:  fmt.Sprintf("heading level jumps from H%d to H%d", prev.Level, cur.Level),
			Suggestion: fmt.Sprintf("use %s %s or add the missing intermediate heading",
				strings.Repeat("#", prev.Level+1), cur.Text),
		})
	}
	return issues
}

func checkEmptySections(ctx *Context) []Issue {
	var issues []Issue
	for _, s := range ctx.RequiredSections {
		h, ok := ctx.findSection(s)
		if !ok || h.BodyLines > 0 {
			continue
		}
		issues = append(issues, Issue{
			Severity:   SeverityWarning,
			Kind:       KindPoorContentQuality,
			Section:    s,
			Range:      lineRange(h.Line, h.Column, h.Width),
			Message:    fmt.Sprintf("section %q has no content", s),
			Suggestion: "fill in the section or remove it from the required list",
		})
	}
	return issues
}

func checkUnclosedFence(ctx *Context) []Issue {
	f := ctx.Doc.UnclosedFence
	if f == nil {
		return nil
	}
	return []Issue{{
		Severity:   SeverityWarning,
		Kind:       KindFormattingIssue,
		Range:      lineRange(f.Line, f.Column, f.Width),
		Message:    "code fence is never closed",
		Suggestion: "close the block with a matching fence line",
	}}
}

func checkFrontMatter(ctx *Context) []Issue {
	fm := ctx.Doc.FrontMatter
	switch {
	case fm == nil:
		return nil
	case !fm.Terminated:
		return []Issue{{
			Severity:   SeverityWarning,
			Kind:       KindFormattingIssue,
			Range:      lineRange(fm.StartLine, 0, 3),
			Message:    "front matter is not terminated",
			Suggestion: "close the front matter with a line containing only ---",
		}}
	case fm.Err != nil:
		return []Issue{{
			Severity:   SeverityWarning,
			Kind:       KindFormattingIssue,
			Range:      Range{Start: Position{Line: fm.StartLine}, End: Position{Line: fm.EndLine, Column: 3}},
			Message:    "front matter is not valid YAML: " + fm.Err.Error(),
			Suggestion: "fix the YAML between the --- lines",
		}}
	}
	return nil
}
