package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// wrongSpace marks a space position where something else was typed.
const wrongSpace = '•'

const fallbackPassageWidth = 60

// cell is one rendered passage rune.
type cell struct {
	s       string
	width   int
	isSpace bool
}

// passageCells styles each passage rune from the per-keystroke results. The
// cursor sits at len(results) unless the passage is complete.
func passageCells(passage []rune, results []bool) []cell {
	cursor := len(results)
	if cursor >= len(passage) {
		cursor = -1
	}
	current := wordAt(wordSpans(passage), cursor)

	out := make([]cell, 0, len(passage))
	for i, r := range passage {
		shown := r
		var style lipgloss.Style
		switch {
		case i < len(results) && results[i]:
			style = correctStyle
		case i < len(results):
			style = incorrectStyle
			if r == ' ' {
				shown = wrongSpace
			}
		case r != ' ' && current != nil && i >= current.start && i < current.end:
			style = currentWordStyle
		default:
			style = pendingStyle
		}
		if i == cursor {
			style = cursorStyle
		}
		out = append(out, cell{
			s:       style.Render(string(shown)),
			width:   runewidth.RuneWidth(shown),
			isSpace: r == ' ',
		})
	}
	return out
}

type span struct {
	start int
	end   int
}

func wordSpans(passage []rune) []span {
	var spans []span
	start := -1
	for i, r := range passage {
		if r == ' ' {
			if start != -1 {
				spans = append(spans, span{start: start, end: i})
				start = -1
			}
			continue
		}
		if start == -1 {
			start = i
		}
	}
	if start != -1 {
		spans = append(spans, span{start: start, end: len(passage)})
	}
	return spans
}

// wordAt returns the word holding the cursor, or the next word when the
// cursor is on a space.
func wordAt(spans []span, cursor int) *span {
	if len(spans) == 0 {
		return nil
	}
	if cursor < 0 {
		return &spans[0]
	}
	for i := range spans {
		if cursor < spans[i].end {
			return &spans[i]
		}
	}
	return &spans[len(spans)-1]
}

func joinCells(cells []cell) string {
	var b strings.Builder
	for _, c := range cells {
		b.WriteString(c.s)
	}
	return b.String()
}

// wrapCells breaks lines at the last space that fits within width, or mid
// word when a single word is wider than the line.
func wrapCells(cells []cell, width int) string {
	if width <= 0 {
		return joinCells(cells)
	}
	var out strings.Builder
	line := make([]cell, 0, width)
	lineWidth, lastSpace := 0, -1

	flush := func(upto int) {
		out.WriteString(joinCells(line[:upto]))
		out.WriteByte('\n')
	}
	for i := 0; i < len(cells); {
		c := cells[i]
		if lineWidth+c.width > width && len(line) > 0 {
			if lastSpace >= 0 {
				flush(lastSpace)
				line = append([]cell(nil), line[lastSpace+1:]...)
			} else {
				flush(len(line))
				line = line[:0]
			}
			lineWidth, lastSpace = 0, -1
			for j, rest := range line {
				lineWidth += rest.width
				if rest.isSpace {
					lastSpace = j
				}
			}
			continue
		}
		line = append(line, c)
		lineWidth += c.width
		if c.isSpace {
			lastSpace = len(line) - 1
		}
		i++
	}
	out.WriteString(joinCells(line))
	return out.String()
}

// renderPassage lays the passage out at 70% of the terminal width.
func renderPassage(passage string, results []bool, termWidth int) string {
	cells := passageCells([]rune(passage), results)
	if termWidth <= 0 {
		return joinCells(cells)
	}
	width := passageWidth(termWidth)
	return lipgloss.NewStyle().Width(width).Render(wrapCells(cells, width))
}

// passageWidth is the text column width for a terminal; unknown sizes get a
// fixed column.
func passageWidth(termWidth int) int {
	if termWidth <= 0 {
		return fallbackPassageWidth
	}
	return max(int(float64(termWidth)*0.70), 1)
}
