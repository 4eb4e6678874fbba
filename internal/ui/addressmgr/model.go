package addressmgr

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nvhoang/maildeck/internal/keys"
	"github.com/nvhoang/maildeck/internal/provider/localstore"
	"github.com/nvhoang/maildeck/internal/theme"
)

// CloseMsg signals the parent to close the address manager.
type CloseMsg struct{}

// ChangedMsg signals that the local address registry was modified.
type ChangedMsg struct{}

type mode int

const (
	modeList mode = iota
	modeForm
	modeConfirmDelete
)

type formBindings struct {
	localPart string
	domain    string
	confirm   bool
}

type addressSavedMsg struct{ err error }
type addressDeletedMsg struct{ err error }
type refreshMsg struct{}

// Model is the Bubble Tea model for managing local mailbox addresses.
// Every address created here is immediately routable: mail sent to it
// from any local account lands in its INBOX.
type Model struct {
	mode        mode
	registry    *localstore.Registry
	keys        *keys.KeyMap
	addresses   []string
	selectedIdx int
	form        *huh.Form
	confirmForm *huh.Form
	fb          *formBindings
	statusMsg   string
	width       int
	height      int
}

// New creates a new address manager model.
func New(reg *localstore.Registry, k *keys.KeyMap, width, height int) Model {
	return Model{
		mode:     modeList,
		registry: reg,
		keys:     k,
		fb:       &formBindings{},
		width:    width,
		height:   height,
	}
}

// Init refreshes the address list.
func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return refreshMsg{} }
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.addresses = m.registry.Addresses()
		m.mode = modeList
		m.statusMsg = ""
		if m.selectedIdx >= len(m.addresses) {
			m.selectedIdx = 0
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case addressSavedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.statusMsg = "Address created"
		}
		m.mode = modeList
		m.addresses = m.registry.Addresses()
		return m, func() tea.Msg { return ChangedMsg{} }

	case addressDeletedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.statusMsg = "Address removed"
		}
		m.mode = modeList
		m.addresses = m.registry.Addresses()
		if m.selectedIdx >= len(m.addresses) && m.selectedIdx > 0 {
			m.selectedIdx = len(m.addresses) - 1
		}
		return m, func() tea.Msg { return ChangedMsg{} }

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveForm(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case modeList:
		return m.handleListKey(msg)
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(msg, m.keys.Down):
		if len(m.addresses) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.addresses)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.addresses) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.addresses) - 1
			}
		}
		return m, nil

	case msg.String() == "n":
		m.fb.localPart = ""
		m.fb.domain = "local"
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case msg.String() == "d":
		if len(m.addresses) == 0 {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Local part").
				Placeholder("alice").
				Value(&m.fb.localPart).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("local part is required")
					}
					if strings.Contains(s, "@") {
						return fmt.Errorf("local part must not contain @")
					}
					return nil
				}),
			huh.NewInput().
				Title("Domain").
				Placeholder("local").
				Value(&m.fb.domain),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) buildConfirmForm() *huh.Form {
	address := ""
	if m.selectedIdx < len(m.addresses) {
		address = m.addresses[m.selectedIdx]
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Remove address %q?", address)).
				Description("Its mailbox and all stored mail will be deleted.").
				Affirmative("Yes, remove").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		return m, m.createAddress()
	}
	if m.form.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	if m.confirmForm.State == huh.StateCompleted {
		if m.fb.confirm {
			address := m.addresses[m.selectedIdx]
			return m, m.deleteAddress(address)
		}
		m.mode = modeList
		return m, nil
	}
	if m.confirmForm.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) createAddress() tea.Cmd {
	reg := m.registry
	localPart := m.fb.localPart
	domain := m.fb.domain
	return func() tea.Msg {
		_, err := reg.Create(localPart, domain)
		return addressSavedMsg{err: err}
	}
}

func (m Model) deleteAddress(address string) tea.Cmd {
	reg := m.registry
	return func() tea.Msg {
		_, err := reg.Remove(address)
		return addressDeletedMsg{err: err}
	}
}

// View renders the address manager.
func (m Model) View() string {
	switch m.mode {
	case modeForm:
		return m.viewForm(m.form)
	case modeConfirmDelete:
		return m.viewForm(m.confirmForm)
	default:
		return m.viewList()
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	b.WriteString(titleStyle.Render("Local Addresses"))
	b.WriteString("\n\n")

	if len(m.addresses) == 0 {
		emptyStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true)
		b.WriteString(emptyStyle.Render("No local addresses yet. Press 'n' to create one."))
	} else {
		for i, address := range m.addresses {
			if i == m.selectedIdx {
				b.WriteString(theme.SelectedItemStyle.Render(address))
			} else {
				b.WriteString(theme.ListItemStyle.Render(address))
			}
			b.WriteString("\n")
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Italic(true).Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render(
		"n new | d delete | esc back",
	))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(f.View())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
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
