package stats

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/typerace/internal/model"
)

// Sample is the live WPM and accuracy at one second of a session.
type Sample struct {
	Second   int
	WPM      int
	Accuracy int
}

// minGraphWPM keeps slow sessions from filling the whole chart height.
const minGraphWPM = 20

var (
	wpmColor      = lipgloss.Color("#5FD7FF")
	accuracyColor = lipgloss.Color("#5FD787")
)

// AppendSample adds s to samples, replacing the last sample when it was taken
// in the same second.
func AppendSample(samples []Sample, s Sample) []Sample {
	if n := len(samples); n > 0 && samples[n-1].Second == s.Second {
		samples[n-1] = s
		return samples
	}
	return append(samples, s)
}

// RenderSessionGraph plots WPM and accuracy over one session. WPM is scaled to
// the session's best (at least 20), accuracy to 100.
func RenderSessionGraph(w io.Writer, samples []Sample, totalWidth, height int) error {
	if len(samples) == 0 {
		return nil
	}
	wpms := make([]float64, len(samples))
	accs := make([]float64, len(samples))
	best := minGraphWPM
	for i, s := range samples {
		wpms[i] = float64(s.WPM)
		accs[i] = float64(s.Accuracy)
		best = max(best, s.WPM)
	}
	title := fmt.Sprintf("Session graph  0-%ds · WPM max %d", max(1, samples[len(samples)-1].Second), best)
	return PlotSeries(w, title, []Series{
		{Name: "WPM", Values: wpms, Max: float64(best), Color: wpmColor},
		{Name: "Accuracy", Values: accs, Max: 100, Color: accuracyColor},
	}, PlotWidthFor(totalWidth), height)
}

// MovingAverage smooths values over a trailing window. A window of 1 or less
// returns a copy.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(min(i+1, window))
	}
	return out
}

// RenderCurves plots practice WPM and accuracy across sessions, oldest first,
// smoothed over window sessions.
func RenderCurves(w io.Writer, sessions []model.SessionAggregate, window, totalWidth int) error {
	if len(sessions) == 0 {
		return nil
	}
	wpms := make([]float64, len(sessions))
	accs := make([]float64, len(sessions))
	best := float64(minGraphWPM)
	for i, s := range sessions {
		wpms[i] = float64(s.WPM)
		accs[i] = float64(s.Accuracy)
	}
	wpms = MovingAverage(wpms, window)
	accs = MovingAverage(accs, window)
	for _, v := range wpms {
		best = max(best, v)
	}
	return PlotSeries(w, "Learning curves", []Series{
		{Name: "WPM", Values: wpms, Max: best, Color: wpmColor},
		{Name: "Accuracy", Values: accs, Max: 100, Color: accuracyColor},
	}, PlotWidthFor(totalWidth), defaultPlotHeight)
}
