package accountmgr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nvhoang/maildeck/internal/config"
	"github.com/nvhoang/maildeck/internal/credential"
	"github.com/nvhoang/maildeck/internal/keys"
	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider/localstore"
	"github.com/nvhoang/maildeck/internal/theme"
)

// CloseMsg signals the parent to close the account manager.
type CloseMsg struct{}

// SelectedMsg signals the parent to switch to the chosen account.
type SelectedMsg struct {
	Account model.Account
}

// ChangedMsg signals that the account list was modified.
type ChangedMsg struct{}

type mode int

const (
	modeList mode = iota
	modeTypeSelect
	modeForm
	modeConfirmDelete
)

// formBindings holds form field values on the heap so that huh's
// Value() pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	providerType string
	name         string
	email        string

	imapHost string
	imapPort string
	password string
	smtpHost string
	smtpPort string

	apiKey  string
	apiURI  string
	grantID string

	localPart string
	domain    string

	confirm bool
}

type accountSavedMsg struct{ err error }
type accountDeletedMsg struct{ err error }
type refreshMsg struct{}

// Model is the Bubble Tea model for account management: switching the
// active account, adding, editing, and removing accounts.
type Model struct {
	mode        mode
	store       *config.AccountStore
	registry    *localstore.Registry
	keys        *keys.KeyMap
	accounts    []model.Account
	selectedIdx int
	editingID   string
	isNew       bool
	form        *huh.Form
	confirmForm *huh.Form
	fb          *formBindings
	statusMsg   string
	width       int
	height      int
}

// New creates a new account manager model. The registry is used to
// materialize mailboxes when a local account is created.
func New(s *config.AccountStore, reg *localstore.Registry, k *keys.KeyMap, width, height int) Model {
	return Model{
		mode:     modeList,
		store:    s,
		registry: reg,
		keys:     k,
		fb:       &formBindings{},
		width:    width,
		height:   height,
	}
}

// Init refreshes the account list.
func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return refreshMsg{} }
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.accounts = m.store.Accounts()
		m.mode = modeList
		m.statusMsg = ""
		if m.selectedIdx >= len(m.accounts) {
			m.selectedIdx = 0
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case accountSavedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.statusMsg = "Account saved"
		}
		m.mode = modeList
		m.accounts = m.store.Accounts()
		return m, func() tea.Msg { return ChangedMsg{} }

	case accountDeletedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.statusMsg = "Account removed"
		}
		m.mode = modeList
		m.accounts = m.store.Accounts()
		if m.selectedIdx >= len(m.accounts) && m.selectedIdx > 0 {
			m.selectedIdx = len(m.accounts) - 1
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
	case modeTypeSelect, modeForm:
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
		if len(m.accounts) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.accounts)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.accounts) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.accounts) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if len(m.accounts) == 0 {
			return m, nil
		}
		account := m.accounts[m.selectedIdx]
		return m, func() tea.Msg { return SelectedMsg{Account: account} }

	case msg.String() == "n":
		m.isNew = true
		m.editingID = ""
		*m.fb = formBindings{
			providerType: string(model.ProviderIMAP),
			imapPort:     "993",
			smtpPort:     "587",
			domain:       "local",
		}
		m.form = m.buildTypeForm()
		m.mode = modeTypeSelect
		return m, m.form.Init()

	case msg.String() == "e":
		if len(m.accounts) == 0 {
			return m, nil
		}
		acc := m.accounts[m.selectedIdx]
		if acc.Provider == model.ProviderLocal {
			m.statusMsg = "Local addresses are managed in the address view (L)"
			return m, nil
		}
		m.isNew = false
		m.editingID = acc.ID
		m.bindAccount(acc)
		m.form = m.buildDetailForm()
		m.mode = modeForm
		return m, m.form.Init()

	case msg.String() == "d":
		if len(m.accounts) == 0 {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}
	return m, nil
}

// bindAccount copies an account's fields into the form bindings.
func (m *Model) bindAccount(acc model.Account) {
	*m.fb = formBindings{
		providerType: string(acc.Provider),
		name:         acc.Name,
		email:        acc.Email,
		imapHost:     acc.IMAPHost,
		imapPort:     portString(acc.IMAPPort, 993),
		smtpHost:     acc.SMTPHost,
		smtpPort:     portString(acc.SMTPPort, 587),
		apiURI:       acc.APIURI,
		grantID:      acc.GrantID,
	}
}

func portString(p, fallback int) string {
	if p == 0 {
		p = fallback
	}
	return strconv.Itoa(p)
}

func (m Model) buildTypeForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Account type").
				Options(
					huh.NewOption("IMAP / SMTP", string(model.ProviderIMAP)),
					huh.NewOption("Nylas API", string(model.ProviderNylas)),
					huh.NewOption("Local mailbox", string(model.ProviderLocal)),
				).
				Value(&m.fb.providerType),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) buildDetailForm() *huh.Form {
	var fields []huh.Field

	switch model.ProviderType(m.fb.providerType) {
	case model.ProviderIMAP:
		fields = []huh.Field{
			huh.NewInput().Title("Display name").Value(&m.fb.name),
			huh.NewInput().Title("Email address").Value(&m.fb.email).
				Validate(validateAddress),
			huh.NewInput().Title("IMAP host").Value(&m.fb.imapHost).
				Validate(validateRequired("IMAP host")),
			huh.NewInput().Title("IMAP port").Value(&m.fb.imapPort).
				Validate(validatePort),
			huh.NewInput().Title("Password").Value(&m.fb.password).
				EchoMode(huh.EchoModePassword),
			huh.NewInput().Title("SMTP host (optional)").Value(&m.fb.smtpHost),
			huh.NewInput().Title("SMTP port").Value(&m.fb.smtpPort).
				Validate(validatePort),
		}
	case model.ProviderNylas:
		fields = []huh.Field{
			huh.NewInput().Title("Display name").Value(&m.fb.name),
			huh.NewInput().Title("Email address").Value(&m.fb.email).
				Validate(validateAddress),
			huh.NewInput().Title("API key").Value(&m.fb.apiKey).
				EchoMode(huh.EchoModePassword),
			huh.NewInput().Title("API URI (blank for default)").Value(&m.fb.apiURI),
			huh.NewInput().Title("Grant ID").Value(&m.fb.grantID).
				Validate(validateRequired("Grant ID")),
		}
	case model.ProviderLocal:
		fields = []huh.Field{
			huh.NewInput().Title("Display name").Value(&m.fb.name),
			huh.NewInput().Title("Local part").Value(&m.fb.localPart).
				Validate(validateRequired("Local part")),
			huh.NewInput().Title("Domain").Value(&m.fb.domain),
		}
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) buildConfirmForm() *huh.Form {
	name := ""
	if m.selectedIdx < len(m.accounts) {
		name = m.accounts[m.selectedIdx].DisplayName()
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Remove account %q?", name)).
				Description("Stored credentials will be deleted too.").
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
		if m.mode == modeTypeSelect {
			m.form = m.buildDetailForm()
			m.mode = modeForm
			return m, m.form.Init()
		}
		return m, m.saveAccount()
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
			acc := m.accounts[m.selectedIdx]
			return m, m.deleteAccount(acc)
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
	case modeTypeSelect, modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

// saveAccount persists the form: secrets go to the system keyring, the
// account record itself is stored with blank secret fields.
func (m Model) saveAccount() tea.Cmd {
	s := m.store
	reg := m.registry
	fb := *m.fb
	editID := m.editingID
	isNew := m.isNew

	return func() tea.Msg {
		if model.ProviderType(fb.providerType) == model.ProviderLocal {
			account, err := reg.Create(fb.localPart, fb.domain)
			if err != nil {
				return accountSavedMsg{err: err}
			}
			if fb.name != "" {
				account.Name = fb.name
			}
			_, err = s.Add(account)
			return accountSavedMsg{err: err}
		}

		account := model.Account{
			ID:       editID,
			Provider: model.ProviderType(fb.providerType),
			Name:     fb.name,
			Email:    fb.email,
			IMAPHost: fb.imapHost,
			IMAPPort: atoiOr(fb.imapPort, 993),
			SMTPHost: fb.smtpHost,
			SMTPPort: atoiOr(fb.smtpPort, 587),
			APIURI:   fb.apiURI,
			GrantID:  fb.grantID,
		}

		var err error
		if isNew {
			account, err = s.Add(account)
		} else {
			err = s.Update(account)
		}
		if err != nil {
			return accountSavedMsg{err: err}
		}

		if fb.password != "" {
			if err := credential.Set(credential.PasswordKey(account.ID), fb.password); err != nil {
				return accountSavedMsg{err: err}
			}
		}
		if fb.apiKey != "" {
			if err := credential.Set(credential.APIKeyKey(account.ID), fb.apiKey); err != nil {
				return accountSavedMsg{err: err}
			}
		}
		return accountSavedMsg{}
	}
}

func (m Model) deleteAccount(acc model.Account) tea.Cmd {
	s := m.store
	reg := m.registry
	return func() tea.Msg {
		if _, err := s.Remove(acc.ID); err != nil {
			return accountDeletedMsg{err: err}
		}
		credential.Forget(acc.ID)
		if acc.Provider == model.ProviderLocal {
			if _, err := reg.Remove(acc.Email); err != nil {
				return accountDeletedMsg{err: err}
			}
		}
		return accountDeletedMsg{}
	}
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// View renders the account manager.
func (m Model) View() string {
	switch m.mode {
	case modeTypeSelect, modeForm:
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
	b.WriteString(titleStyle.Render("Accounts"))
	b.WriteString("\n\n")

	if len(m.accounts) == 0 {
		emptyStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true)
		b.WriteString(emptyStyle.Render("No accounts yet. Press 'n' to add one."))
	} else {
		for i, acc := range m.accounts {
			badge := theme.ProviderLabelStyle(string(acc.Provider)).
				Render(strings.ToUpper(string(acc.Provider)))
			label := fmt.Sprintf("%s %s", badge, acc.DisplayName())

			if i == m.selectedIdx {
				b.WriteString(theme.SelectedItemStyle.Render(label))
			} else {
				b.WriteString(theme.ListItemStyle.Render(label))
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
		"enter switch | n new | e edit | d remove | esc back",
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

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateAddress(s string) error {
	if !strings.Contains(s, "@") {
		return fmt.Errorf("not a valid email address")
	}
	return nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("invalid port")
	}
	return nil
}
