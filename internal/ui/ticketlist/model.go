package ticketlist

import (
	"context"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/change-adapter/internal/model"
	"github.com/nhle/change-adapter/internal/store"
	"github.com/nhle/change-adapter/internal/theme"
)

// TicketsLoadedMsg is sent when tickets have been loaded from the store.
type TicketsLoadedMsg struct {
	InstanceID string
	Tickets    []model.StoredTicket
	Err        error
}

// Model shows the stored change tickets of one instance.
type Model struct {
	list        list.Model
	store       store.Store
	filter      store.TicketFilter
	searchMode  bool
	searchInput textinput.Model
	loadErr     error
	width       int
	height      int
}

// New creates a new ticket list model.
func New(s store.Store, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Change tickets"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search number or description..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		store:       s,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// SetInstance switches the list to another instance and returns the
// command that loads its tickets.
func (m *Model) SetInstance(id string) tea.Cmd {
	if m.filter.InstanceID != nil && *m.filter.InstanceID == id {
		return nil
	}
	m.filter.InstanceID = &id
	m.list.Title = "Change tickets · " + id
	return m.LoadTickets()
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool { return m.searchMode }

// Update handles messages for the ticket list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TicketsLoadedMsg:
		// Ignore stale loads for a previously selected instance.
		if m.filter.InstanceID == nil || *m.filter.InstanceID != msg.InstanceID {
			return m, nil
		}
		m.loadErr = msg.Err
		items := make([]list.Item, len(msg.Tickets))
		for i, t := range msg.Tickets {
			items[i] = TicketItem{Ticket: t}
		}
		return m, m.list.SetItems(items)

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		if msg.String() == "/" {
			m.searchMode = true
			m.searchInput.Reset()
			return m, m.searchInput.Focus()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		query := m.searchInput.Value()
		if query != "" {
			m.filter.Query = &query
		} else {
			m.filter.Query = nil
		}
		return m, m.LoadTickets()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.filter.Query = nil
		return m, m.LoadTickets()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// View renders the ticket list.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when no tickets are stored.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loadErr != nil:
		return style.Foreground(theme.ColorRed).Render("Failed to load tickets:\n" + m.loadErr.Error())
	case m.filter.InstanceID == nil:
		return style.Render("No instance selected.")
	case m.filter.Query != nil:
		return style.Render("No matching tickets.")
	default:
		return style.Render("No tickets stored yet.\nPress r to check the instance.")
	}
}

// LoadTickets returns a tea.Cmd that queries the store with the current
// filter.
func (m Model) LoadTickets() tea.Cmd {
	filter := m.filter
	s := m.store
	if filter.InstanceID == nil {
		return nil
	}
	id := *filter.InstanceID
	return func() tea.Msg {
		tickets, err := s.GetTickets(context.Background(), filter)
		return TicketsLoadedMsg{InstanceID: id, Tickets: tickets, Err: err}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
