package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nvhoang/maildeck/internal/theme"
)

// Layout manages the terminal layout dimensions: a one-line header, a
// content area optionally split into a folder sidebar and a main pane,
// and a one-line status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
	SidebarWidth    int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	sidebar := 24
	if width < 80 {
		sidebar = width / 4
	}
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
		SidebarWidth:    sidebar,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// MainWidth returns the width of the main pane next to the sidebar.
func (l Layout) MainWidth() int {
	return l.Width - l.SidebarWidth - 1
}

// ContentHeight returns the height available for the content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// RenderHeader renders the top header bar with the application title on
// the left and the account / connection state on the right.
func (l Layout) RenderHeader(title string, accountState string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	stateRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(accountState)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(stateRendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		stateRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints or
// a transient status message.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderSplit joins the folder sidebar and the main pane horizontally.
func (l Layout) RenderSplit(sidebar string, main string) string {
	side := theme.SidebarStyle.
		Width(l.SidebarWidth).
		Height(l.ContentHeight()).
		Render(sidebar)

	return lipgloss.JoinHorizontal(lipgloss.Top, side, main)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}
