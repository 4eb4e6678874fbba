package compose

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
	"github.com/nvhoang/maildeck/internal/theme"
)

// SubmitMsg is dispatched when the user submits the compose form.
type SubmitMsg struct {
	Message provider.OutgoingMessage
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's
// Value() pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	to      string
	cc      string
	subject string
	body    string
}

// Model is the Bubble Tea model for the compose/reply form.
type Model struct {
	form      *huh.Form
	fb        *formBindings
	replyMode bool
	replyToID string
	width     int
	height    int
}

// New creates a new compose form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// StartCompose initializes the form for a fresh message.
func (m *Model) StartCompose() tea.Cmd {
	m.replyMode = false
	m.replyToID = ""
	m.fb.to = ""
	m.fb.cc = ""
	m.fb.subject = ""
	m.fb.body = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// StartReply initializes the form as a reply to an existing message:
// recipient and subject are prefilled, the original body is quoted.
func (m *Model) StartReply(original model.Email) tea.Cmd {
	m.replyMode = true
	m.replyToID = original.ID
	m.fb.to = original.From
	m.fb.cc = ""
	m.fb.subject = replySubject(original.Subject)
	m.fb.body = quoteBody(original)
	m.form = m.buildForm()
	return m.form.Init()
}

// replySubject prefixes Re: exactly once.
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// quoteBody renders the original message as a quoted block.
func quoteBody(original model.Email) string {
	var b strings.Builder
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "On %s, %s wrote:\n",
		original.Date.Format("2006-01-02 15:04"), original.From)
	for _, line := range strings.Split(original.BodyText, "\n") {
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// Update handles messages for the compose form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the compose form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Message"
	if m.replyMode {
		titleText = "Reply"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("To").
				Placeholder("recipient@example.com, other@example.com").
				Value(&m.fb.to).
				Validate(validateRecipients),
			huh.NewInput().
				Title("Cc").
				Placeholder("optional").
				Value(&m.fb.cc),
			huh.NewInput().
				Title("Subject").
				Value(&m.fb.subject),
			huh.NewText().
				Title("Body").
				Value(&m.fb.body),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	msg := provider.OutgoingMessage{
		To:        splitAddresses(m.fb.to),
		Cc:        splitAddresses(m.fb.cc),
		Subject:   m.fb.subject,
		Body:      m.fb.body,
		ReplyToID: m.replyToID,
	}
	return func() tea.Msg { return SubmitMsg{Message: msg} }
}

// splitAddresses parses a comma-separated address list.
func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateRecipients(s string) error {
	addrs := splitAddresses(s)
	if len(addrs) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	for _, a := range addrs {
		if !strings.Contains(a, "@") {
			return fmt.Errorf("%q is not a valid address", a)
		}
	}
	return nil
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}
