package nodes

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
	"github.com/rs/zerolog/log"
)

const storeTimeout = 5 * time.Second

// Store is the part of the database the node table needs.
type Store interface {
	ReadNodes(ctx context.Context) ([]domain.Node, error)
	UpdateNodeStatus(ctx context.Context, host string, direction domain.NodeDirection, status domain.NodeStatus) error
	DeleteNode(ctx context.Context, host string, direction domain.NodeDirection) error
}

type Model struct {
	store  Store
	table  table.Model
	Nodes  []domain.Node
	Status string
	Error  string
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
	hostWidth := max(width-60, 20)
	return []table.Column{
		{Title: "Host", Width: hostWidth},
		{Title: "Direction", Width: 10},
		{Title: "Status", Width: 9},
		{Title: "User", Width: 14},
		{Title: "Added", Width: 19},
	}
}

type nodesLoadedMsg struct {
	nodes []domain.Node
	err   error
}

type nodeChangedMsg struct {
	status string
	err    error
}

func (m Model) Init() tea.Cmd {
	return loadNodes(m.store)
}

func loadNodes(store Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		nodes, err := store.ReadNodes(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Admin console: Failed to load nodes")
		}
		return nodesLoadedMsg{nodes: nodes, err: err}
	}
}

func toggleNode(store Store, n domain.Node) tea.Cmd {
	return func() tea.Msg {
		next := domain.DISABLED
		if !n.Enabled() {
			next = domain.ENABLED
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := store.UpdateNodeStatus(ctx, n.Host, n.Direction, next); err != nil {
			return nodeChangedMsg{err: err}
		}
		log.Info().Str("host", n.Host).Str("direction", string(n.Direction)).Str("status", string(next)).Msg("Admin console: Node status changed")
		return nodeChangedMsg{status: fmt.Sprintf("%s %s is now %s", n.Direction, n.Host, next)}
	}
}

func deleteNode(store Store, n domain.Node) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := store.DeleteNode(ctx, n.Host, n.Direction); err != nil {
			return nodeChangedMsg{err: err}
		}
		log.Info().Str("host", n.Host).Str("direction", string(n.Direction)).Msg("Admin console: Node removed")
		return nodeChangedMsg{status: fmt.Sprintf("%s %s removed", n.Direction, n.Host)}
	}
}

func (m Model) selected() (domain.Node, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.Nodes) {
		return domain.Node{}, false
	}
	return m.Nodes[i], true
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetColumns(columns(common.DefaultWindowWidth(msg.Width)))
		m.table.SetHeight(common.DefaultTableHeight(msg.Height))
		return m, nil

	case nodesLoadedMsg:
		if msg.err != nil {
			m.Error = msg.err.Error()
			return m, nil
		}
		m.Nodes = msg.nodes
		m.table.SetRows(rows(m.Nodes))
		if m.table.Cursor() >= len(m.Nodes) {
			m.table.SetCursor(max(0, len(m.Nodes)-1))
		}
		return m, nil

	case nodeChangedMsg:
		if msg.err != nil {
			m.Error = msg.err.Error()
			return m, nil
		}
		m.Status = msg.status
		m.Error = ""
		return m, loadNodes(m.store)

	case tea.KeyMsg:
		m.Status = ""
		m.Error = ""

		switch msg.String() {
		case "r":
			return m, loadNodes(m.store)
		case "e":
			if n, ok := m.selected(); ok {
				return m, toggleNode(m.store, n)
			}
			return m, nil
		case "d":
			if n, ok := m.selected(); ok {
				return m, deleteNode(m.store, n)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func rows(nodes []domain.Node) []table.Row {
	out := make([]table.Row, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, table.Row{
			n.Host,
			string(n.Direction),
			string(n.Status),
			n.Username,
			n.CreatedAt.Format(util.DateTimeFormat()),
		})
	}
	return out
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("federation nodes (%d)", len(m.Nodes))))
	s.WriteString("\n")

	if len(m.Nodes) == 0 {
		s.WriteString(common.EmptyStyle.Render("No nodes registered. Add one with `chartreuse node add`."))
	} else {
		s.WriteString(m.table.View())
	}
	s.WriteString("\n\n")
	s.WriteString(common.HelpStyle.Render("e: enable/disable  d: remove  r: reload  ↑/↓: navigate"))

	if m.Status != "" {
		s.WriteString("\n")
		s.WriteString(common.StatusStyle.Render(m.Status))
	}
	if m.Error != "" {
		s.WriteString("\n")
		s.WriteString(common.ErrorStyle.Render("Error: " + m.Error))
	}
	return s.String()
}
