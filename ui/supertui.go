package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/chartreuse/ui/activity"
	"github.com/deemkeen/chartreuse/ui/common"
	"github.com/deemkeen/chartreuse/ui/header"
	"github.com/deemkeen/chartreuse/ui/nodes"
)

var focusedModelStyle = lipgloss.NewStyle().
	Align(lipgloss.Top, lipgloss.Top).
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color(common.COLOR_LIGHTBLUE)).
	MarginLeft(1)

// Store is everything the console reads and changes.
type Store interface {
	nodes.Store
	activity.Store
}

// Session identifies who is connected to the console.
type Session struct {
	Admin      string
	KeyHash    string
	PublicHost string
}

type MainModel struct {
	width         int
	height        int
	state         common.SessionState
	headerModel   header.Model
	nodesModel    nodes.Model
	activityModel activity.Model
}

func NewModel(store Store, session Session, width int, height int) MainModel {
	width = common.DefaultWindowWidth(width)

	return MainModel{
		width:  width,
		height: height,
		state:  common.NodesView,
		headerModel: header.Model{
			Width:      width,
			Admin:      session.Admin,
			KeyHash:    session.KeyHash,
			PublicHost: session.PublicHost,
		},
		nodesModel:    nodes.InitialModel(store, width, height),
		activityModel: activity.InitialModel(store, width, height),
	}
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(m.nodesModel.Init(), m.activityModel.Init())
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab", "shift+tab":
			m.state = m.state.Next()
			return m, nil
		}

		// Keys only go to the focused view.
		switch m.state {
		case common.NodesView:
			m.nodesModel, cmd = m.nodesModel.Update(msg)
		case common.ActivityView:
			m.activityModel, cmd = m.activityModel.Update(msg)
		}
		return m, cmd
	}

	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = common.DefaultWindowWidth(msg.Width)
		m.height = msg.Height
		m.headerModel.Width = m.width
	}

	m.nodesModel, cmd = m.nodesModel.Update(msg)
	cmds = append(cmds, cmd)
	m.activityModel, cmd = m.activityModel.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m MainModel) View() string {
	s := m.headerModel.View() + "\n"

	var body string
	switch m.state {
	case common.NodesView:
		body = m.nodesModel.View()
	case common.ActivityView:
		body = m.activityModel.View()
	}
	s += focusedModelStyle.Width(m.width).Render(body) + "\n"

	s += common.HelpStyle.Render(fmt.Sprintf(
		"focused > %s\t\tkeys > tab: switch view • q/ctrl-c: exit",
		m.state))
	return s
}
