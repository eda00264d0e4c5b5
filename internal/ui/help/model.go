package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/change-adapter/internal/keys"
	"github.com/nhle/change-adapter/internal/model"
	"github.com/nhle/change-adapter/internal/theme"
)

// Model is the help overlay: key bindings plus the status legend.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	h.Width = width - 4
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// legend explains the status column of the instance table.
func legend() string {
	rows := []struct {
		label  string
		status model.Status
		text   string
	}{
		{string(model.StatusOnline), model.StatusOnline, "last health check fetched records"},
		{string(model.StatusOffline), model.StatusOffline, "last health check failed"},
		{"?", "", "no status announced yet"},
		{"…", "", "health check in progress"},
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		label := theme.StatusStyle(r.status).Width(9).Render(r.label)
		lines = append(lines, label+theme.HelpStyle.Render(r.text))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		titleStyle.Render("Status"),
		legend(),
		"",
		theme.HelpStyle.Render("In the ticket pane, / searches by number or description."),
	)

	return theme.BorderStyle.
		Padding(1, 2).
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
