package tui

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typerace/internal/api"
	"github.com/verte-zerg/typerace/internal/events"
	"github.com/verte-zerg/typerace/internal/identity"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/presence"
	"github.com/verte-zerg/typerace/internal/session"
	"github.com/verte-zerg/typerace/internal/stats"
)

// RaceAPI is the subset of the room client the race screen drives.
type RaceAPI interface {
	StartRace(ctx context.Context, roomID, identity string) (*model.Room, error)
	ReportProgress(ctx context.Context, roomID string, req api.ProgressRequest) (*model.Room, error)
	FinishRace(ctx context.Context, roomID, identity string) (*model.Room, error)
	UpdateDisplayName(ctx context.Context, roomID, identity, name string) (*model.Room, error)
	Leave(ctx context.Context, roomID, identity string) (bool, error)
}

type snapshotMsg struct {
	snap events.Snapshot
}

type streamClosedMsg struct{}

type reportDoneMsg struct {
	err error
}

type actionDoneMsg struct {
	room *model.Room
	err  error
}

type leftMsg struct{}

const requestTimeout = 5 * time.Second

// Race is the multiplayer room screen: lobby, countdown, race and results.
type Race struct {
	api       RaceAPI
	identity  string
	roomID    string
	snapshots <-chan events.Snapshot
	clock     clockwork.Clock
	log       zerolog.Logger

	room     *model.Room
	activity atomic.Value
	engine   *session.Engine
	bar      progress.Model
	input    textinput.Model

	width  int
	height int

	renaming bool
	inFlight bool
	dirty    bool
	finished bool
	closed   bool
	notice   string
	errMsg   string
}

// NewRace builds the race screen for an already joined room. snapshots is
// the room's push stream; its first value should be the current room.
func NewRace(client RaceAPI, room *model.Room, identityID string, snapshots <-chan events.Snapshot, clock clockwork.Clock, log zerolog.Logger) *Race {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	input := textinput.New()
	input.Prompt = "Name: "
	input.CharLimit = identity.MaxNameRunes

	m := &Race{
		api:       client,
		identity:  identityID,
		roomID:    room.ID,
		snapshots: snapshots,
		clock:     clock,
		log:       log,
		engine:    session.New(clock),
		bar:       progress.New(progress.WithSolidFill("#C89A3A"), progress.WithoutPercentage()),
		input:     input,
	}
	m.applyRoom(room)
	return m
}

// Init implements tea.Model.
func (m *Race) Init() tea.Cmd {
	return m.waitForSnapshot()
}

// State reports the presence activity for the current room status. It is
// safe to call from other goroutines.
func (m *Race) State() model.ActivityState {
	if v, ok := m.activity.Load().(model.ActivityState); ok {
		return v
	}
	return model.ActivityOnline
}

func (m *Race) waitForSnapshot() tea.Cmd {
	ch := m.snapshots
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return snapshotMsg{snap: snap}
	}
}

// Update implements tea.Model.
func (m *Race) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, msg.Width/3)
		m.input.Width = max(10, msg.Width/3)
		return m, nil
	case snapshotMsg:
		if msg.snap.Deleted {
			m.closed = true
			m.notice = "Room closed"
			return m, tea.Quit
		}
		if msg.snap.Room != nil {
			m.applyRoom(msg.snap.Room)
		}
		return m, m.waitForSnapshot()
	case streamClosedMsg:
		m.closed = true
		if m.notice == "" {
			m.notice = "Disconnected from room"
		}
		return m, tea.Quit
	case reportDoneMsg:
		m.inFlight = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		}
		if m.dirty {
			m.dirty = false
			return m, m.sendProgress()
		}
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		if msg.room != nil {
			m.applyRoom(msg.room)
		}
		return m, nil
	case leftMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		if m.renaming {
			return m, m.updateRename(msg)
		}
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Race) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m.leave()
	}
	if m.room != nil && m.room.Status == model.RoomRacing && msg.Type == tea.KeyCtrlE {
		return m.do(func(ctx context.Context) (*model.Room, error) {
			return m.api.FinishRace(ctx, m.roomID, m.identity)
		})
	}
	if m.engine.Status() == session.StatusPlaying {
		switch msg.Type {
		case tea.KeyBackspace, tea.KeyDelete:
			m.engine.DeleteChar()
			return m.reportProgress()
		case tea.KeySpace:
			m.engine.TypeChar(' ')
			return m.reportProgress()
		case tea.KeyRunes:
			for _, r := range msg.Runes {
				m.engine.TypeChar(r)
			}
			return m.reportProgress()
		}
		return nil
	}
	switch msg.String() {
	case "q":
		return m.leave()
	case "s":
		if m.room != nil && m.room.Status == model.RoomWaiting && m.room.HostIdentity == m.identity {
			return m.do(func(ctx context.Context) (*model.Room, error) {
				return m.api.StartRace(ctx, m.roomID, m.identity)
			})
		}
	case "n":
		if m.room != nil && m.room.Status == model.RoomWaiting {
			m.renaming = true
			if idx := m.room.Member(m.identity); idx >= 0 {
				m.input.SetValue(m.room.Roster[idx].DisplayName)
			}
			return m.input.Focus()
		}
	}
	return nil
}

func (m *Race) updateRename(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.renaming = false
		m.input.Blur()
		return nil
	case tea.KeyEnter:
		m.renaming = false
		m.input.Blur()
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			return nil
		}
		return m.do(func(ctx context.Context) (*model.Room, error) {
			return m.api.UpdateDisplayName(ctx, m.roomID, m.identity, name)
		})
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Race) do(fn func(ctx context.Context) (*model.Room, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		room, err := fn(ctx)
		return actionDoneMsg{room: room, err: err}
	}
}

func (m *Race) leave() tea.Cmd {
	client, roomID, id, log := m.api, m.roomID, m.identity, m.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if _, err := client.Leave(ctx, roomID, id); err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("failed to leave room")
		}
		return leftMsg{}
	}
}

// reportProgress sends at most one report at a time; keystrokes that land
// while one is in flight are folded into a single follow-up report.
func (m *Race) reportProgress() tea.Cmd {
	if m.engine.Status() == session.StatusFinished && !m.finished {
		m.finished = true
	}
	if m.inFlight {
		m.dirty = true
		return nil
	}
	return m.sendProgress()
}

func (m *Race) sendProgress() tea.Cmd {
	m.inFlight = true
	snap := m.engine.Snapshot()
	req := api.ProgressRequest{
		Identity: m.identity,
		Progress: snap.Progress,
		WPM:      snap.WPM,
		Mistakes: snap.Mistakes,
		Finished: m.finished,
	}
	client, roomID := m.api, m.roomID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := client.ReportProgress(ctx, roomID, req)
		return reportDoneMsg{err: err}
	}
}

// applyRoom folds a room snapshot into the local engine.
func (m *Race) applyRoom(room *model.Room) {
	prev := m.room
	m.room = room
	m.activity.Store(presence.StateForRoom(room.Status))
	if prev == nil || prev.Passage != room.Passage {
		m.engine.SetPassage(room.Passage)
	}
	switch room.Status {
	case model.RoomWaiting:
		if m.engine.Status() != session.StatusIdle {
			m.engine.Reset()
		}
		m.finished = false
	case model.RoomCountdown:
		if m.engine.Status() == session.StatusIdle {
			m.engine.StartCountdown()
		}
	case model.RoomRacing:
		if st := m.engine.Status(); st == session.StatusIdle || st == session.StatusCountdown {
			m.engine.SetDuration(room.DurationSeconds)
			m.engine.Start()
		}
	case model.RoomFinished:
		if m.engine.Status() != session.StatusFinished {
			m.engine.End()
		}
	}
}

// Notice is the reason the screen quit on its own, if any.
func (m *Race) Notice() string {
	return m.notice
}

// View implements tea.Model.
func (m *Race) View() string {
	if m.room == nil {
		return ""
	}
	sections := []string{m.renderHeader()}
	switch m.room.Status {
	case model.RoomWaiting:
		sections = append(sections, m.renderRoster(false))
		if m.renaming {
			sections = append(sections, m.input.View())
		}
	case model.RoomCountdown:
		sections = append(sections, countdownStyle.Render(fmt.Sprintf("Starting in %d", m.room.Countdown)))
		sections = append(sections, m.renderRoster(true))
	case model.RoomRacing:
		snap := m.engine.Snapshot()
		sections = append(sections, renderPassage(snap.Passage, snap.Results, m.width))
		sections = append(sections, m.renderRoster(true))
	case model.RoomFinished:
		var b strings.Builder
		if err := stats.RenderStandings(&b, *m.room); err != nil {
			m.log.Error().Err(err).Msg("failed to render standings")
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}
	if m.errMsg != "" {
		sections = append(sections, errorStyle.Render(m.errMsg))
	}
	sections = append(sections, m.renderHelp())
	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Race) renderHeader() string {
	title := titleStyle.Render(m.room.Name)
	info := fmt.Sprintf("Code %s  %d/%d players  %s", m.room.JoinCode, len(m.room.Roster), m.room.Capacity, m.room.Difficulty)
	switch {
	case m.room.Status != model.RoomRacing:
	case m.room.DurationSeconds > 0:
		info += "  Time " + formatClock(m.room.TimeRemaining)
	default:
		info += "  Elapsed " + formatClock(m.room.ElapsedSeconds)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, headerStyle.Render(info))
}

func (m *Race) renderRoster(bars bool) string {
	lines := make([]string, 0, len(m.room.Roster))
	for _, p := range m.room.Roster {
		name := truncateLine(p.DisplayName, 20)
		name += strings.Repeat(" ", max(0, 20-lipgloss.Width(name)))
		if p.Identity == m.identity {
			name = youMarkStyle.Render(name)
		}
		mark := " "
		if p.Identity == m.room.HostIdentity {
			mark = hostMarkStyle.Render("*")
		}
		line := mark + " " + name
		if bars {
			line += " " + m.bar.ViewAs(float64(p.Progress)/100) + fmt.Sprintf(" %3d%% %3d WPM", p.Progress, p.WPM)
			if p.Finished {
				line += " done"
			}
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *Race) renderHelp() string {
	var help string
	switch {
	case m.renaming:
		help = "enter: save  esc: cancel"
	case m.room.Status == model.RoomWaiting && m.room.HostIdentity == m.identity:
		help = "s: start  n: rename  q: leave"
	case m.room.Status == model.RoomWaiting:
		help = "Waiting for host  n: rename  q: leave"
	case m.room.Status == model.RoomRacing:
		help = "ctrl+e: end race  esc: leave"
	default:
		help = "q: leave"
	}
	return headerStyle.Render(help)
}
