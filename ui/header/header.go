package header

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/chartreuse/ui/common"
	"github.com/deemkeen/chartreuse/util"
)

type Model struct {
	Width      int
	Admin      string
	KeyHash    string
	PublicHost string
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

func (m Model) View() string {
	return GetHeaderStyle(m)
}

// GetHeaderStyle renders three boxes: the admin, the version and the public
// host of the node. Each box adds 4 chars of padding and border.
func GetHeaderStyle(m Model) string {
	available := max(m.Width-12, 40)
	adminWidth := available / 4
	versionWidth := available / 4
	hostWidth := available - adminWidth - versionWidth

	box := lipgloss.NewStyle().
		Padding(1).
		Height(2).
		Align(lipgloss.Left).
		Border(lipgloss.NormalBorder(), true, false, true, false).
		BorderForeground(lipgloss.Color(common.COLOR_MAGENTA))

	admin := m.Admin
	if m.KeyHash != "" {
		admin += " " + util.Abbreviate(m.KeyHash, 9)
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		box.Background(lipgloss.Color(common.COLOR_PURPLE)).Width(adminWidth).Render(util.Abbreviate(admin, adminWidth)),
		box.Background(lipgloss.Color(common.COLOR_GREY)).Width(versionWidth).Render(util.GetNameAndVersion()),
		box.Background(lipgloss.Color(common.COLOR_MAGENTA)).Width(hostWidth).Render(util.Abbreviate(m.PublicHost, hostWidth)),
	)
}
