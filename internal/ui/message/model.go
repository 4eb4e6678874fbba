package message

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nvhoang/maildeck/internal/keys"
	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// ReplyMsg signals the parent to open the compose form as a reply.
type ReplyMsg struct {
	Email model.Email
}

// DeleteMsg signals the parent to delete the displayed message.
type DeleteMsg struct {
	ID string
}

// ToggleReadMsg signals the parent to flip the read flag.
type ToggleReadMsg struct {
	ID   string
	Read bool
}

// SaveAttachmentMsg signals the parent to download an attachment.
type SaveAttachmentMsg struct {
	EmailID      string
	AttachmentID string
	Filename     string
}

// Model is the message reading view.
type Model struct {
	email    *model.Email
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new message view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the message view.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetEmail updates the displayed message and re-renders the content.
func (m *Model) SetEmail(email *model.Email) {
	m.email = email
	m.loading = false
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// Email returns the displayed message, or nil.
func (m Model) Email() *model.Email {
	return m.email
}

// Update handles messages for the message view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(keyMsg, m.keys.Reply):
			if m.email != nil {
				email := *m.email
				return m, func() tea.Msg { return ReplyMsg{Email: email} }
			}

		case key.Matches(keyMsg, m.keys.Delete):
			if m.email != nil {
				id := m.email.ID
				return m, func() tea.Msg { return DeleteMsg{ID: id} }
			}

		case key.Matches(keyMsg, m.keys.ToggleRead):
			if m.email != nil {
				id := m.email.ID
				read := !m.email.IsRead
				return m, func() tea.Msg { return ToggleReadMsg{ID: id, Read: read} }
			}

		default:
			if cmd := m.attachmentShortcut(keyMsg.String()); cmd != nil {
				return m, cmd
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// attachmentShortcut maps the digit keys to attachment downloads.
func (m Model) attachmentShortcut(keyStr string) tea.Cmd {
	if m.email == nil || len(keyStr) != 1 || keyStr[0] < '1' || keyStr[0] > '9' {
		return nil
	}
	idx := int(keyStr[0] - '1')
	if idx >= len(m.email.Attachments) {
		return nil
	}
	att := m.email.Attachments[idx]
	emailID := m.email.ID
	return func() tea.Msg {
		return SaveAttachmentMsg{
			EmailID:      emailID,
			AttachmentID: att.ID,
			Filename:     att.Filename,
		}
	}
}

// View renders the message view.
func (m Model) View() string {
	if m.loading {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Loading message...")
	}

	if m.email == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No message selected")
	}

	return m.viewport.View()
}

// renderContent builds the full message content string for the viewport.
func (m Model) renderContent() string {
	if m.email == nil {
		return ""
	}

	email := m.email
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(email.Subject))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	sections = append(sections, fmt.Sprintf(
		"%s  %s",
		metaStyle.Render("From:"),
		valStyle.Render(email.From),
	))
	if len(email.To) > 0 {
		sections = append(sections, fmt.Sprintf(
			"%s    %s",
			metaStyle.Render("To:"),
			valStyle.Render(strings.Join(email.To, ", ")),
		))
	}
	if len(email.Cc) > 0 {
		sections = append(sections, fmt.Sprintf(
			"%s    %s",
			metaStyle.Render("Cc:"),
			valStyle.Render(strings.Join(email.Cc, ", ")),
		))
	}
	if !email.Date.IsZero() {
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("Date:"),
			valStyle.Render(email.Date.Format("2006-01-02 15:04")),
		))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", min(m.width-4, 80)))
	sections = append(sections, "")
	sections = append(sections, separator)
	sections = append(sections, "")

	body := email.BodyText
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("(empty message)")
	}
	sections = append(sections, body)

	if len(email.Attachments) > 0 {
		sections = append(sections, "")
		sections = append(sections, separator)
		sections = append(sections, "")
		sections = append(sections, theme.AttachmentStyle.Render(
			fmt.Sprintf("Attachments (%d)", len(email.Attachments)),
		))
		for i, att := range email.Attachments {
			sections = append(sections, fmt.Sprintf(
				"  [%d] %s  %s  %s",
				i+1,
				att.Filename,
				att.ContentType,
				formatSize(att.Size),
			))
		}
		sections = append(sections, theme.HelpStyle.Render(
			"press the attachment number to save it",
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// formatSize renders a byte count in a compact human form.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// SetSize updates the message view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.email != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
