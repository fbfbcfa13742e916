// Package ascii renders boxes and aligned tables for terminal output.
//
// Widths are display widths, so multi-width runes (emoji, CJK) keep borders
// and columns aligned. ANSI color sequences are not counted.
package ascii

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

var ansiSeq = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Box builds a box containing the provided lines and returns it as a string.
// Lines are left-aligned with single-space padding on each side.
func Box(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	trimmed := make([]string, len(lines))
	maxWidth := 0
	for i, line := range lines {
		trimmed[i] = strings.TrimRight(line, " ")
		if w := StringWidth(trimmed[i]); w > maxWidth {
			maxWidth = w
		}
	}

	innerWidth := maxWidth + 2
	border := strings.Repeat("─", innerWidth)

	var sb strings.Builder
	sb.WriteString("┌" + border + "┐\n")
	for _, line := range trimmed {
		fill := maxWidth - StringWidth(line)
		sb.WriteString("│ " + line + strings.Repeat(" ", fill) + " │\n")
	}
	sb.WriteString("└" + border + "┘\n")
	return sb.String()
}

// Truncate shortens value so its display width fits width. An ellipsis
// ("...") is appended when truncation occurs and there is space for it.
func Truncate(value string, width int) string {
	if width <= 0 {
		return ""
	}
	if StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return substringWithWidth(value, width)
	}
	return substringWithWidth(value, width-3) + "..."
}

func substringWithWidth(s string, target int) string {
	width := 0
	var sb strings.Builder
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if width+w > target {
			break
		}
		width += w
		sb.WriteRune(r)
	}
	return sb.String()
}

// StringWidth returns the display width of s, ignoring ANSI color sequences.
func StringWidth(s string) int {
	if strings.IndexByte(s, 0x1b) >= 0 {
		s = ansiSeq.ReplaceAllString(s, "")
	}
	return runewidth.StringWidth(s)
}

// PadRight pads s with spaces to display width w.
func PadRight(s string, w int) string {
	if n := w - StringWidth(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

// Table collects rows and renders them with aligned columns.
type Table struct {
	headers []string
	rows    [][]string
	// MaxWidth caps any single column; zero means no cap. Cells are truncated
	// before colouring, so callers pass plain text and a Style function.
	MaxWidth int
	// Style, when set, decorates a cell after alignment (column index, raw text).
	Style func(col int, text string) string
	// HeaderStyle decorates header cells.
	HeaderStyle func(text string) string
}

// NewTable returns a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// Append adds a row. Missing cells render empty; extra cells are dropped.
func (t *Table) Append(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// String renders the table. Columns are separated by two spaces and trailing
// whitespace is trimmed from every line.
func (t *Table) String() string {
	cells := func(row []string) []string {
		out := make([]string, len(row))
		for i, c := range row {
			c = strings.ReplaceAll(c, "\n", " ")
			if t.MaxWidth > 0 {
				c = Truncate(c, t.MaxWidth)
			}
			out[i] = c
		}
		return out
	}

	header := cells(t.headers)
	body := make([][]string, len(t.rows))
	widths := make([]int, len(t.headers))
	for i, h := range header {
		widths[i] = StringWidth(h)
	}
	for r, row := range t.rows {
		body[r] = cells(row)
		for i, c := range body[r] {
			if w := StringWidth(c); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var sb strings.Builder
	writeLine := func(row []string, style func(int, string) string) {
		var line strings.Builder
		for i, c := range row {
			if i > 0 {
				line.WriteString("  ")
			}
			padded := PadRight(c, widths[i])
			if style != nil && c != "" {
				padded = style(i, c) + strings.Repeat(" ", widths[i]-StringWidth(c))
			}
			line.WriteString(padded)
		}
		sb.WriteString(strings.TrimRight(line.String(), " "))
		sb.WriteByte('\n')
	}
	var hs func(int, string) string
	if t.HeaderStyle != nil {
		hs = func(_ int, s string) string { return t.HeaderStyle(s) }
	}
	writeLine(header, hs)
	for _, row := range body {
		writeLine(row, t.Style)
	}
	return sb.String()
}
