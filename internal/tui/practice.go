package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typerace/internal/generator"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/session"
	"github.com/verte-zerg/typerace/internal/stats"
)

// History persists finished practice sessions.
type History interface {
	InsertSession(ctx context.Context, stats model.SessionStats) (int64, error)
	ListSessions(ctx context.Context, cfg model.HistoryConfig) ([]model.SessionAggregate, error)
}

// tickMsg carries the generation it was scheduled for so ticks from a
// paused or replaced session are dropped.
type tickMsg struct {
	gen int
}

// Practice is the solo typing screen.
type Practice struct {
	cfg     model.Config
	history History
	gen     *generator.Generator
	clock   clockwork.Clock
	log     zerolog.Logger
	engine  *session.Engine

	width  int
	height int

	seed      string
	fixedSeed bool
	tickGen   int
	startedAt time.Time

	// samples holds one WPM/accuracy point per second of the running
	// session; graph keeps the last finished session's points for display.
	samples    []stats.Sample
	lastSecond int
	graph      []stats.Sample

	last    *model.SessionStats
	allRuns int
	allOK   int
	allBad  int
	allMs   int64
}

// NewPractice builds the practice screen. A non-empty cfg.Seed replays the
// same passage after every session.
func NewPractice(cfg model.Config, history History, gen *generator.Generator, clock clockwork.Clock, log zerolog.Logger) *Practice {
	if gen == nil {
		gen = generator.New()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := &Practice{
		cfg:       cfg,
		history:   history,
		gen:       gen,
		clock:     clock,
		log:       log,
		engine:    session.New(clock),
		seed:      cfg.Seed,
		fixedSeed: cfg.Seed != "",
	}
	m.newPassage()
	m.loadFooterStats()
	return m
}

// Init implements tea.Model.
func (m *Practice) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Practice) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		return m, m.handleTick(msg)
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Practice) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeyTab:
		m.newPassage()
		return nil
	case tea.KeyEsc:
		switch m.engine.Status() {
		case session.StatusPlaying:
			m.engine.Pause()
			m.tickGen++
		case session.StatusPaused:
			m.engine.Resume()
			return m.scheduleTick()
		}
		return nil
	case tea.KeyBackspace, tea.KeyDelete:
		if m.engine.Status() == session.StatusPlaying {
			m.engine.DeleteChar()
			m.captureSample(true)
		}
		return nil
	case tea.KeySpace:
		return m.typeRunes([]rune{' '})
	case tea.KeyRunes:
		return m.typeRunes(msg.Runes)
	}
	return nil
}

func (m *Practice) typeRunes(runes []rune) tea.Cmd {
	var cmd tea.Cmd
	for _, r := range runes {
		switch m.engine.Status() {
		case session.StatusIdle:
			m.engine.Start()
			m.startedAt = m.clock.Now()
			m.graph = nil
			cmd = m.scheduleTick()
		case session.StatusPaused:
			return cmd
		}
		m.engine.TypeChar(r)
		m.captureSample(true)
		if m.engine.Status() == session.StatusFinished {
			m.finishSession()
			m.newPassage()
			return nil
		}
	}
	return cmd
}

func (m *Practice) handleTick(msg tickMsg) tea.Cmd {
	if msg.gen != m.tickGen || m.engine.Status() != session.StatusPlaying {
		return nil
	}
	m.engine.Tick()
	m.captureSample(false)
	if m.engine.Status() == session.StatusFinished {
		m.finishSession()
		m.newPassage()
		return nil
	}
	return m.scheduleTick()
}

func (m *Practice) scheduleTick() tea.Cmd {
	gen := m.tickGen
	clock := m.clock
	return func() tea.Msg {
		<-clock.After(time.Second)
		return tickMsg{gen: gen}
	}
}

// captureSample records the live metrics for the current second. Unforced
// captures skip a second that already has a sample.
func (m *Practice) captureSample(force bool) {
	snap := m.engine.Snapshot()
	second := snap.TimeLeft
	if snap.Duration > 0 {
		second = max(0, snap.Duration-snap.TimeLeft)
	}
	if !force && second == m.lastSecond {
		return
	}
	m.samples = stats.AppendSample(m.samples, stats.Sample{Second: second, WPM: snap.WPM, Accuracy: snap.Accuracy})
	m.lastSecond = second
}

func (m *Practice) newPassage() {
	m.tickGen++
	m.samples = nil
	m.lastSecond = -1
	if !m.fixedSeed {
		m.seed = generator.NewSeed()
	}
	words := m.cfg.Words
	if m.cfg.Duration > 0 {
		words = max(words, generator.WordCountForDuration(m.cfg.Duration))
	}
	m.engine.SetPassage(m.gen.Generate(m.seed, words, m.cfg.Difficulty))
	m.engine.SetDuration(m.cfg.Duration)
}

func (m *Practice) finishSession() {
	m.captureSample(true)
	m.graph = m.samples
	snap := m.engine.Snapshot()
	elapsed := m.engine.Elapsed()
	rec := model.SessionStats{
		StartedAt:  m.startedAt,
		EndedAt:    m.clock.Now(),
		Seed:       m.seed,
		Difficulty: m.cfg.Difficulty,
		Words:      len(strings.Fields(snap.Passage)),
		Duration:   m.cfg.Duration,
		Correct:    snap.Correct,
		Mistakes:   snap.Mistakes,
		WPM:        stats.WPM(snap.Correct, elapsed),
		Accuracy:   snap.Accuracy,
		DurationMs: elapsed.Milliseconds(),
	}
	m.last = &rec
	m.addToTotals(rec.Correct, rec.Mistakes, rec.DurationMs)
	if m.history == nil {
		return
	}
	if _, err := m.history.InsertSession(context.Background(), rec); err != nil {
		m.log.Error().Err(err).Msg("failed to save session")
	}
}

func (m *Practice) loadFooterStats() {
	if m.history == nil {
		return
	}
	sessions, err := m.history.ListSessions(context.Background(), model.HistoryConfig{})
	if err != nil {
		m.log.Error().Err(err).Msg("failed to load session history")
		return
	}
	if len(sessions) == 0 {
		return
	}
	last := sessions[len(sessions)-1]
	m.last = &model.SessionStats{
		Correct:    last.Correct,
		Mistakes:   last.Mistakes,
		WPM:        last.WPM,
		Accuracy:   last.Accuracy,
		DurationMs: last.DurationMs,
	}
	for _, s := range sessions {
		m.addToTotals(s.Correct, s.Mistakes, s.DurationMs)
	}
}

func (m *Practice) addToTotals(correct, mistakes int, ms int64) {
	m.allRuns++
	m.allOK += correct
	m.allBad += mistakes
	m.allMs += ms
}

// View implements tea.Model.
func (m *Practice) View() string {
	snap := m.engine.Snapshot()
	if snap.Passage == "" {
		return ""
	}
	content := renderPassage(snap.Passage, snap.Results, m.width)
	if graph := m.renderGraph(); graph != "" {
		content = graph + "\n" + content
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	footer := m.renderFooter()
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

// graphHeight is the chart height in rows, excluding title and legend.
const graphHeight = 6

// renderGraph draws the last session's samples until the next one starts.
func (m *Practice) renderGraph() string {
	if len(m.graph) == 0 || m.engine.Status() != session.StatusIdle {
		return ""
	}
	var b strings.Builder
	if err := stats.RenderSessionGraph(&b, m.graph, passageWidth(m.width), graphHeight); err != nil {
		m.log.Error().Err(err).Msg("failed to render session graph")
		return ""
	}
	return b.String()
}

func (m *Practice) renderFooter() string {
	snap := m.engine.Snapshot()
	segments := []string{fmt.Sprintf("Progress %d%%", snap.Progress)}
	switch {
	case snap.Duration > 0:
		segments = append(segments, "Time "+formatClock(snap.TimeLeft))
	case snap.Status != session.StatusIdle:
		segments = append(segments, "Elapsed "+formatClock(snap.TimeLeft))
	}
	if snap.Status == session.StatusPlaying || snap.Status == session.StatusPaused {
		segments = append(segments, fmt.Sprintf("%d WPM", snap.WPM))
	}
	if snap.Status == session.StatusPaused {
		segments = append(segments, "Paused (esc to resume)")
	}
	if m.last != nil {
		segments = append(segments, fmt.Sprintf("Last %d WPM · %d%%", m.last.WPM, m.last.Accuracy))
	}
	if m.allRuns > 0 {
		wpm := stats.WPM(m.allOK, time.Duration(m.allMs)*time.Millisecond)
		acc := stats.Accuracy(m.allOK, m.allOK+m.allBad)
		segments = append(segments, fmt.Sprintf("All-time %d WPM · %d%%", wpm, acc))
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
