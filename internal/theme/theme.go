package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the top header bar and panel titles.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps bordered content areas like the message view.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// SidebarStyle frames the folder pane.
var SidebarStyle = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder(), false, true, false, false).
	BorderForeground(ColorBorder).
	PaddingRight(1)

// ListItemStyle is the base style for rows in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list row.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// UnreadStyle marks messages that have not been read yet.
var UnreadStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// ReadStyle dims messages that have already been read.
var ReadStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// StarStyle renders the starred-message marker.
var StarStyle = lipgloss.NewStyle().
	Foreground(ColorYellow)

// AttachmentStyle renders the attachment marker and attachment rows.
var AttachmentStyle = lipgloss.NewStyle().
	Foreground(ColorMagenta)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle is used for error text in the status bar.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// ProviderLabelStyle returns a color-coded style for an account's
// backend label.
func ProviderLabelStyle(providerType string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch providerType {
	case "imap":
		return base.Foreground(ColorBlue)
	case "nylas":
		return base.Foreground(ColorMagenta)
	case "local":
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// FolderStyle returns the style for a folder row, highlighting the
// selected one.
func FolderStyle(selected bool) lipgloss.Style {
	if selected {
		return lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)
	}
	return lipgloss.NewStyle().Foreground(ColorWhite)
}

// UnreadCountStyle renders the per-folder unread badge.
var UnreadCountStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorYellow)
