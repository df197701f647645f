package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// Series is one line on a chart. Values are drawn against 0..Max; a
// non-positive Max scales the line to its own extent.
type Series struct {
	Name   string
	Values []float64
	Max    float64
	Color  lipgloss.Color
}

const (
	defaultPlotHeight = 8
	minPlotWidth      = 10
	axisLabelTop      = "100%"
	axisLabelMid      = "50%"
	axisLabelBottom   = "0%"
	axisSeparator     = " │ "
)

var defaultSeriesColors = []lipgloss.Color{"#5FD7FF", "#5FD787", "#C89A3A", "#D787D7"}

// Braille cells are 2 dots wide and 4 dots tall.
var brailleBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// canvas holds one dot mask per cell for a single series.
type canvas [][]uint8

func newCanvas(width, height int) canvas {
	c := make(canvas, height)
	for y := range c {
		c[y] = make([]uint8, width)
	}
	return c
}

func (c canvas) set(x, y int) {
	cy, cx := y/4, x/2
	if x < 0 || y < 0 || cy >= len(c) || cx >= len(c[cy]) {
		return
	}
	c[cy][cx] |= brailleBits[x%2][y%4]
}

// line draws between two dot positions with Bresenham's algorithm.
func (c canvas) line(x0, y0, x1, y1 int) {
	dx, sx := abs(x1-x0), 1
	if x0 > x1 {
		sx = -1
	}
	dy, sy := -abs(y1-y0), 1
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		c.set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// PlotSeries draws the series as braille line charts on one shared canvas.
// Empty series are skipped; nothing is written when all are empty.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	lines := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) > 0 {
			lines = append(lines, s)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	dotRows := height * 4
	canvases := make([]canvas, len(lines))
	for i, s := range lines {
		canvases[i] = newCanvas(width, height)
		lo, hi := seriesRange(s)
		prevX, prevY := -1, -1
		for x, v := range resample(s.Values, width) {
			px, py := x*2, dotRow(v, lo, hi, dotRows)
			if prevX < 0 {
				canvases[i].set(px, py)
			} else {
				canvases[i].line(prevX, prevY, px, py)
			}
			prevX, prevY = px, py
		}
	}

	out := make([]string, 0, height+3)
	if title != "" {
		out = append(out, title)
	}
	labels := axisLabels(height)
	labelWidth := utf8.RuneCountInString(axisLabelTop)
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(fmt.Sprintf("%*s%s", labelWidth, labels[y], axisSeparator))
		for x := 0; x < width; x++ {
			var mask uint8
			owner := -1
			for i, c := range canvases {
				if c[y][x] == 0 {
					continue
				}
				if owner < 0 {
					owner = i
				}
				mask |= c[y][x]
			}
			cell := string(rune(0x2800 + int(mask)))
			if owner >= 0 {
				cell = lipgloss.NewStyle().Foreground(seriesColor(lines[owner], owner)).Render(cell)
			}
			row.WriteString(cell)
		}
		out = append(out, row.String())
	}
	out = append(out, legend(lines))
	for _, line := range out {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// PlotWidthFor returns the plot width that fits totalWidth after the axis.
func PlotWidthFor(totalWidth int) int {
	axis := utf8.RuneCountInString(axisLabelTop) + utf8.RuneCountInString(axisSeparator)
	return max(totalWidth-axis, minPlotWidth)
}

func seriesRange(s Series) (float64, float64) {
	if s.Max > 0 {
		return 0, s.Max
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range s.Values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo < 1e-9 {
		lo--
		hi++
	}
	return lo, hi
}

func seriesColor(s Series, i int) lipgloss.Color {
	if s.Color != "" {
		return s.Color
	}
	return defaultSeriesColors[i%len(defaultSeriesColors)]
}

// dotRow maps v onto [0, rows) with the top row holding hi.
func dotRow(v, lo, hi float64, rows int) int {
	if rows <= 1 {
		return 0
	}
	pos := (v - lo) / (hi - lo)
	row := int(math.Round((1 - pos) * float64(rows-1)))
	return min(max(row, 0), rows-1)
}

func axisLabels(height int) []string {
	labels := make([]string, height)
	labels[0] = axisLabelTop
	if height > 2 {
		labels[height/2] = axisLabelMid
	}
	if height > 1 {
		labels[height-1] = axisLabelBottom
	}
	return labels
}

func legend(series []Series) string {
	parts := make([]string, 0, len(series))
	for i, s := range series {
		lo, hi := seriesRange(s)
		marker := lipgloss.NewStyle().Foreground(seriesColor(s, i)).Render("●")
		parts = append(parts, fmt.Sprintf("%s %s %.0f-%.0f", marker, s.Name, lo, hi))
	}
	return strings.Join(parts, "  ")
}

// resample fits values to width points, averaging buckets when shrinking and
// interpolating linearly when stretching.
func resample(values []float64, width int) []float64 {
	out := make([]float64, width)
	n := len(values)
	switch {
	case n == width:
		copy(out, values)
	case n > width:
		for i := range out {
			start := i * n / width
			end := max((i+1)*n/width, start+1)
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
	case n == 1 || width == 1:
		for i := range out {
			out[i] = values[0]
		}
	default:
		for i := range out {
			pos := float64(i) * float64(n-1) / float64(width-1)
			idx := min(int(pos), n-2)
			frac := pos - float64(idx)
			out[i] = values[idx]*(1-frac) + values[idx+1]*frac
		}
	}
	return out
}
