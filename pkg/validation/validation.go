// Package validation checks guidance documents for required structure and
// basic content quality.
//
// A document is scanned once into a Document model; named rules then inspect
// the model and report issues. Results are values: a failing document is not
// an error.
package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fulmenhq/guidekit/pkg/logger"
)

// Severity of an issue. Only errors fail validation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Kind classifies what an issue is about.
type Kind string

const (
	KindMissingSection     Kind = "missing-section"
	KindPoorContentQuality Kind = "poor-content-quality"
	KindFormattingIssue    Kind = "formatting-issue"
)

// Position is a zero-based line and column (in runes).
type Position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// Range is a span of text an issue is anchored to.
type Range struct {
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end" yaml:"end"`
}

func lineRange(line, col, width int) Range {
	return Range{Start: Position{Line: line, Column: col}, End: Position{Line: line, Column: width}}
}

// Issue is one finding.
type Issue struct {
	Rule       string   `json:"rule" yaml:"rule"`
	Severity   Severity `json:"severity" yaml:"severity"`
	Kind       Kind     `json:"kind" yaml:"kind"`
	Section    string   `json:"section,omitempty" yaml:"section,omitempty"`
	Range      Range    `json:"range" yaml:"range"`
	Message    string   `json:"message" yaml:"message"`
	Suggestion string   `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// Result lists issues ordered by position.
type Result struct {
	Issues []Issue `json:"issues" yaml:"issues"`
	Passed bool    `json:"passed" yaml:"passed"`
}

// Errors returns the error-severity issues.
func (r Result) Errors() []Issue { return r.bySeverity(SeverityError) }

// Warnings returns the warning-severity issues.
func (r Result) Warnings() []Issue { return r.bySeverity(SeverityWarning) }

func (r Result) bySeverity(s Severity) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == s {
			out = append(out, is)
		}
	}
	return out
}

// DefaultRequiredSections are checked when no sections are configured.
var DefaultRequiredSections = []string{"Purpose", "Key Concepts", "Best Practices", "Summary"}

// Options configure a Validator.
type Options struct {
	RequiredSections []string
	// DisabledRules names rules to skip.
	DisabledRules []string
	// Rules replaces the default rule set when non-nil.
	Rules []Rule
}

// Validator runs a fixed set of rules.
type Validator struct {
	rules    []Rule
	sections []string
}

// New returns a validator. Unknown names in DisabledRules are an error so a
// typo in configuration does not silently keep a rule on.
func New(opts Options) (*Validator, error) {
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	known := make(map[string]bool, len(rules))
	for _, r := range rules {
		if known[r.Name()] {
			return nil, fmt.Errorf("duplicate validation rule %q", r.Name())
		}
		known[r.Name()] = true
	}
	disabled := make(map[string]bool, len(opts.DisabledRules))
	for _, name := range opts.DisabledRules {
		if !known[name] {
			return nil, fmt.Errorf("unknown validation rule %q", name)
		}
		disabled[name] = true
	}

	v := &Validator{sections: opts.RequiredSections}
	if len(v.sections) == 0 {
		v.sections = DefaultRequiredSections
	}
	for _, r := range rules {
		if !disabled[r.Name()] {
			v.rules = append(v.rules, r)
		}
	}
	return v, nil
}

// Default returns a validator with the default rules and sections.
func Default() *Validator {
	v, _ := New(Options{})
	return v
}

// RuleNames lists the active rules.
func (v *Validator) RuleNames() []string {
	names := make([]string, 0, len(v.rules))
	for _, r := range v.rules {
		names = append(names, r.Name())
	}
	return names
}

// Validate checks text.
func (v *Validator) Validate(text string) Result {
	start := time.Now()
	doc := Parse(text)
	ctx := &Context{Doc: doc, RequiredSections: v.sections}

	var issues []Issue
	for _, r := range v.rules {
		for _, is := range r.Check(ctx) {
			is.Rule = r.Name()
			issues = append(issues, is)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i].Range.Start, issues[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})

	res := Result{Issues: issues, Passed: true}
	for _, is := range issues {
		if is.Severity == SeverityError {
			res.Passed = false
			break
		}
	}
	if res.Issues == nil {
		res.Issues = []Issue{}
	}
	logger.Debug("document validated",
		logger.Int("lines", doc.Lines),
		logger.Int("issues", len(issues)),
		logger.Bool("passed", res.Passed),
		logger.Duration("elapsed", time.Since(start)))
	return res
}

// Validate checks text with the default validator.
func Validate(text string) Result {
	return Default().Validate(text)
}

// matchesSection reports whether a heading names section: equal ignoring case,
// or starting with it followed by a non-letter ("Summary: key points").
func matchesSection(heading, section string) bool {
	h, s := strings.ToLower(strings.TrimSpace(heading)), strings.ToLower(section)
	if h == s {
		return true
	}
	if !strings.HasPrefix(h, s) {
		return false
	}
	next := h[len(s)]
	return !(next >= 'a' && next <= 'z')
}
