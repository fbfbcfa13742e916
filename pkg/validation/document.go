package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Heading is an ATX heading found outside fenced code.
type Heading struct {
	Level  int
	Text   string
	Line   int
	Column int
	Width  int
	// BodyLines counts non-blank lines between this heading and the next
	// heading of the same or a higher level, subsections included.
	BodyLines int
}

// FrontMatter is a leading YAML block delimited by "---".
type FrontMatter struct {
	StartLine  int
	EndLine    int
	Terminated bool
	Data       map[string]any
	Err        error
}

// Fence records an opening code fence.
type Fence struct {
	Line   int
	Column int
	Width  int
	Info   string
}

// Document is the structure extracted from a markdown text in one pass.
type Document struct {
	Lines             int
	Headings          []Heading
	CodeBlocks        int
	Bullets           int
	ImperativeBullets int
	FrontMatter       *FrontMatter
	// UnclosedFence is set when the text ends inside a fenced block.
	UnclosedFence *Fence
	// ContentStart is the first line after front matter.
	ContentStart int
}

// imperativeVerbs is the vocabulary that marks a bullet as an instruction.
var imperativeVerbs = map[string]struct{}{
	"add": {}, "adopt": {}, "always": {}, "apply": {}, "avoid": {}, "build": {},
	"check": {}, "choose": {}, "configure": {}, "create": {}, "define": {},
	"delete": {}, "document": {}, "do": {}, "don't": {}, "ensure": {},
	"extract": {}, "favor": {}, "favour": {}, "follow": {}, "give": {},
	"handle": {}, "include": {}, "isolate": {}, "keep": {}, "limit": {},
	"log": {}, "make": {}, "measure": {}, "mock": {}, "name": {}, "never": {},
	"pin": {}, "prefer": {}, "record": {}, "reduce": {}, "refactor": {},
	"remove": {}, "rename": {}, "replace": {}, "require": {}, "review": {},
	"rotate": {}, "run": {}, "separate": {}, "set": {}, "split": {},
	"start": {}, "store": {}, "test": {}, "update": {}, "use": {},
	"validate": {}, "verify": {}, "write": {},
}

// Parse scans text once and builds its Document. Text that opens front matter
// but never closes it is rescanned as plain content.
func Parse(text string) *Document {
	doc := scan(text, true)
	if fm := doc.FrontMatter; fm != nil && !fm.Terminated {
		doc = scan(text, false)
		doc.FrontMatter = fm
	}
	return doc
}

func scan(text string, detectFront bool) *Document {
	doc := &Document{}
	var (
		open       []int // indexes into doc.Headings still collecting body lines
		fence      *Fence
		fenceChar  byte
		fenceLen   int
		lineNo     int
		inFront    bool
		frontLines []string
	)

	for rest := text; ; lineNo++ {
		var line string
		idx := strings.IndexByte(rest, '\n')
		last := idx < 0
		if last {
			line = rest
		} else {
			line = rest[:idx]
			rest = rest[idx+1:]
		}
		line = strings.TrimSuffix(line, "\r")
		if last && line == "" && lineNo > 0 {
			break
		}

		switch {
		case detectFront && lineNo == 0 && line == "---":
			inFront = true
			doc.FrontMatter = &FrontMatter{StartLine: 0}
		case inFront:
			if line == "---" || line == "..." {
				inFront = false
				doc.FrontMatter.EndLine = lineNo
				doc.FrontMatter.Terminated = true
				doc.ContentStart = lineNo + 1
				decodeFrontMatter(doc.FrontMatter, frontLines)
			} else {
				frontLines = append(frontLines, line)
			}
		case fence != nil:
			if c, n, info, ok := fenceMarker(line); ok && c == fenceChar && n >= fenceLen && info == "" {
				fence = nil
			}
			countBody(doc, open, line)
		default:
			if c, n, info, ok := fenceMarker(line); ok {
				col := len(line) - len(strings.TrimLeft(line, " "))
				fence = &Fence{Line: lineNo, Column: col, Width: runeWidth(line), Info: info}
				fenceChar, fenceLen = c, n
				doc.CodeBlocks++
				countBody(doc, open, line)
				break
			}
			if h, ok := parseHeading(line, lineNo); ok {
				for len(open) > 0 && doc.Headings[open[len(open)-1]].Level >= h.Level {
					open = open[:len(open)-1]
				}
				// A subsection is body of every enclosing heading.
				countBody(doc, open, line)
				doc.Headings = append(doc.Headings, h)
				open = append(open, len(doc.Headings)-1)
				break
			}
			if item, ok := bulletText(line); ok {
				doc.Bullets++
				if isImperative(item) {
					doc.ImperativeBullets++
				}
			}
			countBody(doc, open, line)
		}

		if last {
			lineNo++
			break
		}
	}

	doc.Lines = lineNo
	if inFront {
		doc.FrontMatter.EndLine = lineNo - 1
	}
	if fence != nil {
		doc.UnclosedFence = fence
	}
	return doc
}

func countBody(doc *Document, open []int, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	for _, i := range open {
		doc.Headings[i].BodyLines++
	}
}

func decodeFrontMatter(fm *FrontMatter, lines []string) {
	if len(lines) == 0 {
		return
	}
	var data map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &data); err != nil {
		fm.Err = err
		return
	}
	fm.Data = data
}

// fenceMarker recognizes ``` and ~~~ fences indented by at most three spaces.
func fenceMarker(line string) (char byte, n int, info string, ok bool) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || len(trimmed) < 3 {
		return 0, 0, "", false
	}
	char = trimmed[0]
	if char != '`' && char != '~' {
		return 0, 0, "", false
	}
	for n < len(trimmed) && trimmed[n] == char {
		n++
	}
	if n < 3 {
		return 0, 0, "", false
	}
	info = strings.TrimSpace(trimmed[n:])
	if char == '`' && strings.ContainsRune(info, '`') {
		return 0, 0, "", false
	}
	return char, n, info, true
}

func parseHeading(line string, lineNo int) (Heading, bool) {
	trimmed := strings.TrimLeft(line, " ")
	indent := len(line) - len(trimmed)
	if indent > 3 || !strings.HasPrefix(trimmed, "#") {
		return Heading{}, false
	}
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level > 6 {
		return Heading{}, false
	}
	rest := trimmed[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return Heading{}, false
	}
	text := strings.TrimSpace(rest)
	// Optional closing sequence: "## Title ##".
	if stripped := strings.TrimRight(text, "#"); stripped != text && (stripped == "" || strings.HasSuffix(stripped, " ")) {
		text = strings.TrimSpace(stripped)
	}
	return Heading{Level: level, Text: text, Line: lineNo, Column: indent, Width: runeWidth(line)}, true
}

func bulletText(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if len(trimmed) >= 2 && (trimmed[0] == '-' || trimmed[0] == '*' || trimmed[0] == '+') && trimmed[1] == ' ' {
		return strings.TrimSpace(trimmed[2:]), true
	}
	digits := 0
	for digits < len(trimmed) && digits < 9 && trimmed[digits] >= '0' && trimmed[digits] <= '9' {
		digits++
	}
	if digits > 0 && len(trimmed) > digits+1 && (trimmed[digits] == '.' || trimmed[digits] == ')') && trimmed[digits+1] == ' ' {
		return strings.TrimSpace(trimmed[digits+2:]), true
	}
	return "", false
}

func isImperative(item string) bool {
	if strings.HasPrefix(item, "[ ]") || strings.HasPrefix(item, "[x]") || strings.HasPrefix(item, "[X]") {
		return true
	}
	item = strings.TrimLeft(item, "*_`")
	end := strings.IndexFunc(item, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '’'
	})
	word := item
	if end >= 0 {
		word = item[:end]
	}
	word = strings.ReplaceAll(strings.ToLower(word), "’", "'")
	_, ok := imperativeVerbs[word]
	return ok
}

func runeWidth(s string) int {
	return utf8.RuneCountInString(s)
}
