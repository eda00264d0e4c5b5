package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/change-adapter/internal/theme"
)

// Layout manages the dashboard dimensions: a header, the instance pane on
// top, the ticket pane below it, and a status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight returns the height available for both panes.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// PaneHeights splits the content height between the instance pane and
// the ticket pane. The instance pane gets room for its rows plus the
// table header, capped at half of the screen.
func (l Layout) PaneHeights(instances int) (top, bottom int) {
	content := l.ContentHeight()
	top = instances + 4
	if top > content/2 {
		top = content / 2
	}
	return top, content - top
}

// RenderHeader renders the top header bar with a title and a summary
// right-aligned, e.g. "2/3 online".
func (l Layout) RenderHeader(title string, summary string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	summaryRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(summary)

	gap := max(l.Width-lipgloss.Width(titleRendered)-lipgloss.Width(summaryRendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, titleRendered, filler, summaryRendered)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := max(l.Width-lipgloss.Width(rendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame vertically joins the header, the content sections, and
// the status bar.
func (l Layout) RenderWithFrame(header string, statusBar string, content ...string) string {
	parts := make([]string, 0, len(content)+2)
	parts = append(parts, header)
	parts = append(parts, content...)
	parts = append(parts, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
