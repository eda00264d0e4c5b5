package instancelist

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/change-adapter/internal/model"
	appsync "github.com/nhle/change-adapter/internal/sync"
	"github.com/nhle/change-adapter/internal/theme"
)

// Model is a table of configured instances and their last known status.
type Model struct {
	table    table.Model
	statuses []appsync.InstanceStatus
	names    map[string]string
	width    int
	height   int
}

// New creates the instance table. names maps instance IDs to their
// configured display names. height includes the two header lines.
func New(names map[string]string, width, height int) Model {
	t := table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
		table.WithHeight(max(height, 3)),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(theme.ColorWhite).
		Background(theme.ColorBlue).
		Bold(false)
	t.SetStyles(styles)

	return Model{table: t, names: names, width: width, height: height}
}

// columns sizes the table columns to the available width.
func columns(width int) []table.Column {
	fixed := 16 + 16 + 8 + 8 + 10
	errWidth := max(width-fixed-12, 10)
	return []table.Column{
		{Title: "Instance", Width: 16},
		{Title: "Name", Width: 16},
		{Title: "Status", Width: 8},
		{Title: "Records", Width: 8},
		{Title: "Checked", Width: 10},
		{Title: "Last error", Width: errWidth},
	}
}

// SetStatuses replaces the table rows, keeping the cursor in range.
func (m *Model) SetStatuses(statuses []appsync.InstanceStatus) {
	m.statuses = statuses
	rows := make([]table.Row, len(statuses))
	for i, st := range statuses {
		rows[i] = row(st, m.names[st.InstanceID])
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

func row(st appsync.InstanceStatus, name string) table.Row {
	status := string(st.LastStatus)
	switch {
	case st.State == appsync.CheckRunning:
		status = "…"
	case status == "":
		status = "?"
	}

	checked := "never"
	if !st.LastCheck.IsZero() {
		checked = st.LastCheck.Format("15:04:05")
	}

	errText := ""
	if st.LastError != nil {
		errText = st.LastError.Error()
	}

	return table.Row{
		st.InstanceID,
		name,
		status,
		strconv.Itoa(st.Records),
		checked,
		errText,
	}
}

// Selected returns the ID of the highlighted instance.
func (m Model) Selected() (string, bool) {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.statuses) {
		return "", false
	}
	return m.statuses[c].InstanceID, true
}

// Online returns how many instances last reported ONLINE.
func (m Model) Online() int {
	n := 0
	for _, st := range m.statuses {
		if st.LastStatus == model.StatusOnline {
			n++
		}
	}
	return n
}

// Len returns the number of instances in the table.
func (m Model) Len() int { return len(m.statuses) }

// Focus gives the table keyboard focus.
func (m *Model) Focus() { m.table.Focus() }

// Blur removes keyboard focus from the table.
func (m *Model) Blur() { m.table.Blur() }

// Update forwards navigation keys to the table.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the table.
func (m Model) View() string {
	return m.table.View()
}

// SetSize updates the table dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetWidth(width)
	m.table.SetHeight(max(height, 3))
}
