package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/change-adapter/internal/keys"
	"github.com/nhle/change-adapter/internal/store"
	appsync "github.com/nhle/change-adapter/internal/sync"
	"github.com/nhle/change-adapter/internal/theme"
	"github.com/nhle/change-adapter/internal/ui"
	helpview "github.com/nhle/change-adapter/internal/ui/help"
	"github.com/nhle/change-adapter/internal/ui/instancelist"
	"github.com/nhle/change-adapter/internal/ui/ticketlist"
)

// checkResultMsg carries a poller result into the update loop.
type checkResultMsg appsync.CheckResult

// pollerStartedMsg is sent once the poller goroutines are running.
type pollerStartedMsg struct{}

// tickMsg refreshes the instance table so in-flight checks are visible.
type tickMsg time.Time

// pane identifies which half of the dashboard receives navigation keys.
type pane int

const (
	paneInstances pane = iota
	paneTickets
)

// Model is the root Bubble Tea model of the status dashboard. It drives
// the poller and shows each instance's status and stored tickets.
type Model struct {
	ctx       context.Context
	layout    ui.Layout
	keys      *keys.KeyMap
	help      help.Model
	helpView  helpview.Model
	instances instancelist.Model
	tickets   ticketlist.Model
	poller    *appsync.Poller
	focus     pane
	showHelp  bool
	ready     bool
	lastError string
}

// New creates the dashboard. names maps instance IDs to display names.
// The poller must already have its instances registered; the dashboard
// starts it on Init and stops it on quit.
func New(ctx context.Context, p *appsync.Poller, s store.Store, names map[string]string) Model {
	k := keys.DefaultKeyMap()
	m := Model{
		ctx:       ctx,
		keys:      k,
		help:      help.New(),
		helpView:  helpview.New(k, 80, 24),
		instances: instancelist.New(names, 80, 8),
		tickets:   ticketlist.New(s, 80, 14),
		poller:    p,
	}
	m.instances.SetStatuses(p.GetStatuses())
	if id, ok := m.instances.Selected(); ok {
		m.tickets.SetInstance(id)
	}
	return m
}

// Init starts the poller and begins listening for results.
func (m Model) Init() tea.Cmd {
	p := m.poller
	ctx := m.ctx
	return tea.Batch(
		func() tea.Msg {
			p.Start(ctx)
			return pollerStartedMsg{}
		},
		m.waitForResult(),
		m.tickets.LoadTickets(),
		tick(),
	)
}

// waitForResult blocks on the poller's result channel.
func (m Model) waitForResult() tea.Cmd {
	ch := m.poller.Results()
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return nil
		}
		return checkResultMsg(res)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages and dispatches to the focused pane.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		top, bottom := m.layout.PaneHeights(m.instances.Len())
		m.instances.SetSize(msg.Width-2, top-2)
		m.tickets.SetSize(msg.Width-2, bottom-2)
		m.helpView.SetSize(msg.Width, m.layout.ContentHeight())
		m.help.Width = msg.Width
		return m, nil

	case pollerStartedMsg:
		return m, nil

	case tickMsg:
		m.instances.SetStatuses(m.poller.GetStatuses())
		return m, tick()

	case checkResultMsg:
		m.instances.SetStatuses(m.poller.GetStatuses())
		if msg.Err != nil {
			m.lastError = fmt.Sprintf("%s: %v", msg.InstanceID, msg.Err)
		} else if !msg.Dropped {
			m.lastError = ""
		}

		cmds := []tea.Cmd{m.waitForResult()}
		if id, ok := m.instances.Selected(); ok && id == msg.InstanceID {
			cmds = append(cmds, m.tickets.LoadTickets())
		}
		return m, tea.Batch(cmds...)

	case ticketlist.TicketsLoadedMsg:
		var cmd tea.Cmd
		m.tickets, cmd = m.tickets.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleKey processes global keys before delegating to the focused pane.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The search input owns every key while it is focused.
	if m.focus == paneTickets && m.tickets.Searching() {
		var cmd tea.Cmd
		m.tickets, cmd = m.tickets.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.poller.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case m.showHelp && key.Matches(msg, m.keys.Back):
		m.showHelp = false
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		if m.focus == paneInstances {
			m.focus = paneTickets
			m.instances.Blur()
		} else {
			m.focus = paneInstances
			m.instances.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if id, ok := m.instances.Selected(); ok {
			m.poller.RefreshInstance(id)
		}
		return m, nil

	case key.Matches(msg, m.keys.RefreshAll):
		m.poller.RefreshAll()
		return m, nil
	}

	var cmd tea.Cmd
	if m.focus == paneInstances {
		m.instances, cmd = m.instances.Update(msg)
		if id, ok := m.instances.Selected(); ok {
			return m, tea.Batch(cmd, m.tickets.SetInstance(id))
		}
		return m, cmd
	}

	m.tickets, cmd = m.tickets.Update(msg)
	return m, cmd
}

// View renders the dashboard.
func (m Model) View() string {
	if !m.ready {
		return "Starting health checks..."
	}

	header := m.layout.RenderHeader(
		"ServiceNow change adapter",
		fmt.Sprintf("%d/%d online", m.instances.Online(), m.instances.Len()),
	)
	status := m.layout.RenderStatusBar(m.hints())

	if m.showHelp {
		return m.layout.RenderWithFrame(header, status, m.helpView.View())
	}

	top := paneStyle(m.focus == paneInstances).Render(m.instances.View())
	bottom := paneStyle(m.focus == paneTickets).Render(m.tickets.View())
	return m.layout.RenderWithFrame(header, status, top, bottom)
}

func paneStyle(focused bool) lipgloss.Style {
	if focused {
		return theme.FocusedBorderStyle
	}
	return theme.BorderStyle
}

// hints returns the status bar text: the last error if any, otherwise
// the short key help.
func (m Model) hints() string {
	if m.lastError != "" {
		return theme.ErrorStyle.Render(m.lastError)
	}
	return m.help.ShortHelpView(m.keys.ShortHelp())
}
