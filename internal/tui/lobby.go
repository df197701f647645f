package tui

import (
	"context"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/typerace/internal/model"
)

// RoomLister lists joinable public rooms.
type RoomLister interface {
	ListRooms(ctx context.Context) ([]model.RoomSummary, error)
}

type roomsLoadedMsg struct {
	rooms []model.RoomSummary
	err   error
}

// Lobby browses public rooms and picks one to join, by selection or by
// typing a join code.
type Lobby struct {
	api   RoomLister
	rooms []model.RoomSummary
	table table.Model
	input textinput.Model

	width  int
	height int

	codeMode bool
	errMsg   string

	chosenID   string
	chosenCode string
	hasPass    bool
}

// NewLobby builds the lobby screen.
func NewLobby(lister RoomLister) *Lobby {
	input := textinput.New()
	input.Prompt = "Join code: "
	input.CharLimit = 6
	input.Cursor.SetMode(cursor.CursorBlink)

	t := table.New(
		table.WithColumns(lobbyColumns()),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())
	return &Lobby{api: lister, table: t, input: input}
}

func lobbyColumns() []table.Column {
	return []table.Column{
		{Title: "Name", Width: 24},
		{Title: "Code", Width: 6},
		{Title: "Players", Width: 7},
		{Title: "Locked", Width: 6},
	}
}

// Choice returns the picked room id or join code. Both are empty when the
// user quit without choosing.
func (m *Lobby) Choice() (roomID, code string, needsPassword bool) {
	return m.chosenID, m.chosenCode, m.hasPass
}

// Init implements tea.Model.
func (m *Lobby) Init() tea.Cmd {
	return m.refresh()
}

func (m *Lobby) refresh() tea.Cmd {
	lister := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		rooms, err := lister.ListRooms(ctx)
		return roomsLoadedMsg{rooms: rooms, err: err}
	}
}

// Update implements tea.Model.
func (m *Lobby) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(max(1, msg.Height-4))
		return m, nil
	case roomsLoadedMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.setRooms(msg.rooms)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.codeMode {
			return m, m.updateCode(msg)
		}
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		case "c", "/":
			m.codeMode = true
			m.input.SetValue("")
			return m, m.input.Focus()
		case "enter":
			idx := m.table.Cursor()
			if idx < 0 || idx >= len(m.rooms) {
				return m, nil
			}
			m.chosenID = m.rooms[idx].ID
			m.hasPass = m.rooms[idx].HasPassword
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Lobby) updateCode(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.codeMode = false
		m.input.Blur()
		return nil
	case tea.KeyEnter:
		code := strings.ToUpper(strings.TrimSpace(m.input.Value()))
		if code == "" {
			return nil
		}
		m.chosenCode = code
		return tea.Quit
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Lobby) setRooms(rooms []model.RoomSummary) {
	m.rooms = rooms
	rows := make([]table.Row, 0, len(rooms))
	for _, r := range rooms {
		locked := ""
		if r.HasPassword {
			locked = "yes"
		}
		rows = append(rows, table.Row{
			truncateLine(r.Name, 24),
			r.JoinCode,
			strconv.Itoa(r.PlayerCount) + "/" + strconv.Itoa(r.Capacity),
			locked,
		})
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(0, len(rows)-1))
	}
}

// View implements tea.Model.
func (m *Lobby) View() string {
	sections := []string{titleStyle.Render("Public rooms")}
	if len(m.rooms) == 0 {
		sections = append(sections, headerStyle.Render("No open rooms. Create one with typerace race --create."))
	} else {
		sections = append(sections, m.table.View())
	}
	if m.codeMode {
		sections = append(sections, m.input.View())
	}
	if m.errMsg != "" {
		sections = append(sections, errorStyle.Render(m.errMsg))
	}
	help := "enter: join  c: join by code  r: refresh  q: quit"
	if m.codeMode {
		help = "enter: join  esc: cancel"
	}
	sections = append(sections, headerStyle.Render(help))
	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.width == 0 || m.height == 0 {
		return content
	}
	return fitLines(content, m.width, m.height)
}
