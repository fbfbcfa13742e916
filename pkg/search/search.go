// Package search finds guidance content by literal, case-insensitive substring.
//
// Queries are never compiled as patterns. Matching is a plain substring test
// on Unicode case-folded text, so the cost is linear in the scanned bytes and
// metacharacters in the query match themselves.
package search

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/fulmenhq/guidekit/pkg/catalog"
	"github.com/fulmenhq/guidekit/pkg/guideerr"
	"github.com/fulmenhq/guidekit/pkg/logger"
)

// ErrQueryTooLong is returned for queries above Options.MaxQueryLength.
var ErrQueryTooLong = fmt.Errorf("%w: query too long", guideerr.ErrInvalidQuery)

// Defaults for Options fields left at zero.
const (
	DefaultContextLines   = 2
	DefaultMaxQueryLength = 256
	DefaultMaxResults     = 100
	DefaultMaxScanBytes   = 2 << 20
	DefaultConcurrency    = 4
	snippetWidth          = 160
)

// Field scores. A framework's relevance is the sum over its matching fields,
// with at most maxScoredLines content lines counted.
const (
	scoreName        = 100
	scoreID          = 80
	scoreTag         = 60
	scoreDescription = 50
	scoreContentLine = 10
	maxScoredLines   = 5
)

// Kind says where a match was found.
type Kind string

const (
	KindDescriptor Kind = "descriptor"
	KindDocument   Kind = "document"
)

// Result is one matching field or line.
type Result struct {
	Source      string   `json:"source" yaml:"source"`
	FrameworkID string   `json:"frameworkId" yaml:"frameworkId"`
	Kind        Kind     `json:"kind" yaml:"kind"`
	Field       string   `json:"field" yaml:"field"`
	// Line is zero-based; only set for document matches.
	Line    int      `json:"line" yaml:"line"`
	Snippet string   `json:"snippet" yaml:"snippet"`
	Before  []string `json:"before,omitempty" yaml:"before,omitempty"`
	After   []string `json:"after,omitempty" yaml:"after,omitempty"`
	// Score is the relevance of the framework the result belongs to.
	Score int `json:"score" yaml:"score"`
}

// Document is an installed document to scan.
type Document struct {
	FrameworkID string
	Source      string
	Read        func(ctx context.Context) ([]byte, error)
}

// Corpus is what a search runs over.
type Corpus struct {
	Descriptors []catalog.Descriptor
	Documents   []Document
}

// Options tune a search. Zero values take the defaults.
type Options struct {
	IncludeContent bool
	// ContextLines before and after a content match; negative disables context.
	ContextLines   int
	MaxQueryLength int
	MaxResults     int
	MaxScanBytes   int
	Concurrency    int
}

func (o Options) withDefaults() Options {
	if o.ContextLines == 0 {
		o.ContextLines = DefaultContextLines
	} else if o.ContextLines < 0 {
		o.ContextLines = 0
	}
	if o.MaxQueryLength <= 0 {
		o.MaxQueryLength = DefaultMaxQueryLength
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.MaxScanBytes <= 0 {
		o.MaxScanBytes = DefaultMaxScanBytes
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// Engine runs searches with fixed options.
type Engine struct {
	opts Options
}

// NewEngine returns an engine.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// WithContent returns a copy of e with IncludeContent set to include.
func (e *Engine) WithContent(include bool) *Engine {
	opts := e.opts
	opts.IncludeContent = include
	return &Engine{opts: opts}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Search matches query against corpus. A blank query yields no results.
func (e *Engine) Search(ctx context.Context, query string, corpus Corpus) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return []Result{}, nil
	}
	if n := utf8.RuneCountInString(query); n > e.opts.MaxQueryLength {
		return nil, fmt.Errorf("%w (%d characters, limit %d)", ErrQueryTooLong, n, e.opts.MaxQueryLength)
	}
	needle := cases.Fold().String(query)

	var results []Result
	for _, d := range corpus.Descriptors {
		results = append(results, matchDescriptor(d, needle)...)
	}

	if e.opts.IncludeContent && len(corpus.Documents) > 0 {
		perDoc := make([][]Result, len(corpus.Documents))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Concurrency)
		for i, doc := range corpus.Documents {
			g.Go(func() error {
				data, err := doc.Read(gctx)
				if err != nil {
					if errors.Is(err, fs.ErrNotExist) {
						logger.Debug("installed document missing, skipped",
							logger.String("framework", doc.FrameworkID),
							logger.String("path", doc.Source))
						return nil
					}
					return guideerr.WithFramework(err, doc.FrameworkID)
				}
				perDoc[i] = e.matchDocument(doc, data, needle)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, rs := range perDoc {
			results = append(results, rs...)
		}
	}

	rank(results)
	if len(results) > e.opts.MaxResults {
		results = results[:e.opts.MaxResults]
	}
	if results == nil {
		results = []Result{}
	}
	logger.Debug("search complete",
		logger.Int("query_len", utf8.RuneCountInString(query)),
		logger.Int("results", len(results)))
	return results, nil
}

func matchDescriptor(d catalog.Descriptor, needle string) []Result {
	fold := cases.Fold()
	var out []Result
	add := func(field, text string, score int) {
		if text == "" || !strings.Contains(fold.String(text), needle) {
			return
		}
		out = append(out, Result{
			Source:      "catalog",
			FrameworkID: d.ID,
			Kind:        KindDescriptor,
			Field:       field,
			Snippet:     clip(text, 0),
			Score:       score,
		})
	}
	add("name", d.Name, scoreName)
	add("id", d.ID, scoreID)
	for _, tag := range d.Tags {
		add("tag", tag, scoreTag)
	}
	add("description", d.Description, scoreDescription)
	return out
}

func (e *Engine) matchDocument(doc Document, data []byte, needle string) []Result {
	if len(data) > e.opts.MaxScanBytes {
		logger.Debug("document truncated for search",
			logger.String("framework", doc.FrameworkID),
			logger.Int("bytes", len(data)),
			logger.Int("scanned", e.opts.MaxScanBytes))
		cut := e.opts.MaxScanBytes
		for cut > 0 && !utf8.RuneStart(data[cut]) {
			cut--
		}
		data = data[:cut]
	}
	text := string(data)
	lines := strings.Split(text, "\n")
	// Folding never adds or removes newlines, so folded lines align with lines.
	folded := strings.Split(cases.Fold().String(text), "\n")
	if len(folded) != len(lines) {
		folded = make([]string, len(lines))
		fold := cases.Fold()
		for i, l := range lines {
			folded[i] = fold.String(l)
		}
	}

	var out []Result
	for i, fl := range folded {
		at := strings.Index(fl, needle)
		if at < 0 {
			continue
		}
		line := strings.TrimRight(lines[i], "\r")
		r := Result{
			Source:      doc.Source,
			FrameworkID: doc.FrameworkID,
			Kind:        KindDocument,
			Field:       "content",
			Line:        i,
			Snippet:     clip(line, utf8.RuneCountInString(fl[:at])),
			Score:       scoreContentLine,
		}
		if n := e.opts.ContextLines; n > 0 {
			r.Before = contextLines(lines, i-n, i)
			r.After = contextLines(lines, i+1, i+1+n)
		}
		out = append(out, r)
	}
	return out
}

func contextLines(lines []string, from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(lines) {
		to = len(lines)
	}
	if from >= to {
		return nil
	}
	out := make([]string, 0, to-from)
	for _, l := range lines[from:to] {
		out = append(out, clip(strings.TrimRight(l, "\r"), 0))
	}
	return out
}

// clip trims s and bounds it to snippetWidth runes around rune offset at.
func clip(s string, at int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= snippetWidth {
		return s
	}
	start := at - snippetWidth/4
	if start < 0 {
		start = 0
	}
	end := start + snippetWidth
	if end > len(runes) {
		end = len(runes)
		start = end - snippetWidth
	}
	out := string(runes[start:end])
	if start > 0 {
		out = "…" + out
	}
	if end < len(runes) {
		out += "…"
	}
	return out
}

// rank orders results by framework relevance, then framework id, then the
// strongest field first and content lines in document order.
func rank(results []Result) {
	relevance := map[string]int{}
	contentLines := map[string]int{}
	for _, r := range results {
		if r.Kind == KindDocument {
			if contentLines[r.FrameworkID] >= maxScoredLines {
				continue
			}
			contentLines[r.FrameworkID]++
		}
		relevance[r.FrameworkID] += r.Score
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if ra, rb := relevance[a.FrameworkID], relevance[b.FrameworkID]; ra != rb {
			return ra > rb
		}
		if a.FrameworkID != b.FrameworkID {
			return a.FrameworkID < b.FrameworkID
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Line < b.Line
	})
	for i := range results {
		results[i].Score = relevance[results[i].FrameworkID]
	}
}
