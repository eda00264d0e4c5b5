package ticketlist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/change-adapter/internal/model"
	"github.com/nhle/change-adapter/internal/theme"
)

// TicketItem wraps a stored ticket so it can be used in a bubbles/list.
type TicketItem struct {
	Ticket model.StoredTicket
}

// FilterValue returns the string used for fuzzy filtering.
func (i TicketItem) FilterValue() string { return field(i.Ticket.Ticket.Number) }

// Title returns the ticket number and description.
func (i TicketItem) Title() string {
	t := i.Ticket.Ticket
	return field(t.Number) + " " + field(t.Description)
}

// Description returns a short summary line for the list.
func (i TicketItem) Description() string {
	t := i.Ticket.Ticket
	parts := []string{
		"P" + field(t.Priority),
		window(t.WorkStart, t.WorkEnd),
		relativeTime(i.Ticket.FetchedAt),
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering tickets.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

// Render draws a single ticket line: priority, number, description and
// the work window. Inactive tickets are dimmed.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(TicketItem)
	if !ok {
		return
	}
	t := ti.Ticket.Ticket

	prio := theme.PriorityStyle(field(t.Priority)).Render("P" + field(t.Priority))
	line := fmt.Sprintf("%s %-10s %s  %s",
		prio, field(t.Number), field(t.Description),
		theme.DimmedStyle.Render(window(t.WorkStart, t.WorkEnd)),
	)

	switch {
	case index == m.Index():
		line = theme.SelectedItemStyle.Render(line)
	case !isActive(t.Active):
		line = theme.ListItemStyle.Inherit(theme.DimmedStyle).Render(line)
	default:
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// field renders a pass-through ticket value. Missing values render empty.
func field(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// isActive interprets ServiceNow's active flag, which arrives as "true",
// "false", or a JSON boolean.
func isActive(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x == "true"
	default:
		return true
	}
}

// window renders the planned work window, or "-" when neither end is set.
func window(start, end any) string {
	s, e := field(start), field(end)
	if s == "" && e == "" {
		return "-"
	}
	return s + " → " + e
}

// relativeTime returns a human-readable relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
