package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/deemkeen/chartreuse/ui/common"
	"github.com/deemkeen/chartreuse/util"
)

const recentLimit = 100

// Store reads the inbound activity log.
type Store interface {
	ReadRecentActivities(ctx context.Context, limit int) ([]domain.InboundActivity, error)
}

type Model struct {
	store      Store
	table      table.Model
	Activities []domain.InboundActivity
	Error      string
}

func InitialModel(store Store, width, height int) Model {
	t := table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
		table.WithHeight(common.DefaultTableHeight(height)),
	)
	t.SetStyles(common.TableStyles())
	return Model{store: store, table: t}
}

func columns(width int) []table.Column {
	rest := max(width-40, 30)
	return []table.Column{
		{Title: "Received", Width: 19},
		{Title: "Type", Width: 8},
		{Title: "Object", Width: rest * 2 / 3},
		{Title: "Origin", Width: rest - rest*2/3},
	}
}

type activitiesLoadedMsg struct {
	activities []domain.InboundActivity
	err        error
}

func (m Model) Init() tea.Cmd {
	return load(m.store)
}

func load(store Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		activities, err := store.ReadRecentActivities(ctx, recentLimit)
		return activitiesLoadedMsg{activities: activities, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetColumns(columns(common.DefaultWindowWidth(msg.Width)))
		m.table.SetHeight(common.DefaultTableHeight(msg.Height))
		return m, nil

	case activitiesLoadedMsg:
		if msg.err != nil {
			m.Error = msg.err.Error()
			return m, nil
		}
		m.Error = ""
		m.Activities = msg.activities
		m.table.SetRows(rows(msg.activities))
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "r" {
			return m, load(m.store)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func rows(activities []domain.InboundActivity) []table.Row {
	out := make([]table.Row, 0, len(activities))
	for _, a := range activities {
		out = append(out, table.Row{
			a.CreatedAt.Format(util.DateTimeFormat()),
			a.ActivityType,
			a.ObjectURI,
			a.OriginHost,
		})
	}
	return out
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("recent inbound activities (%d)", len(m.Activities))))
	s.WriteString("\n")
	if len(m.Activities) == 0 {
		s.WriteString(common.EmptyStyle.Render("Nothing received yet."))
	} else {
		s.WriteString(m.table.View())
	}
	s.WriteString("\n\n")
	s.WriteString(common.HelpStyle.Render("r: reload  ↑/↓: navigate"))
	if m.Error != "" {
		s.WriteString("\n")
		s.WriteString(common.ErrorStyle.Render("Error: " + m.Error))
	}
	return s.String()
}
