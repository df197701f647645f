package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// column describes one table column. A positive limit truncates longer cells.
type column struct {
	title string
	right bool
	limit int
}

func left(title string, limit int) column { return column{title: title, limit: limit} }

func right(title string) column { return column{title: title, right: true} }

// writeTable prints cols and rows padded to terminal cell widths.
func writeTable(w io.Writer, cols []column, rows [][]string) error {
	for _, line := range formatTable(cols, rows) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatTable(cols []column, rows [][]string) []string {
	if len(cols) == 0 {
		return nil
	}
	cells := make([][]string, 0, len(rows)+1)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.title
	}
	cells = append(cells, header)
	for _, row := range rows {
		fitted := make([]string, len(cols))
		for i, c := range cols {
			if i < len(row) {
				fitted[i] = fitCell(row[i], c.limit)
			}
		}
		cells = append(cells, fitted)
	}

	widths := make([]int, len(cols))
	for _, row := range cells {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	lines := make([]string, 0, len(cells))
	for _, row := range cells {
		var b strings.Builder
		for i, cell := range row {
			if i > 0 {
				b.WriteByte(' ')
			}
			pad := strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell))
			if cols[i].right {
				b.WriteString(pad + cell)
			} else {
				b.WriteString(cell + pad)
			}
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}
	return lines
}

func fitCell(value string, limit int) string {
	if limit <= 0 || runewidth.StringWidth(value) <= limit {
		return value
	}
	return runewidth.Truncate(value, limit, "...")
}
