package app

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nvhoang/maildeck/internal/config"
	"github.com/nvhoang/maildeck/internal/keys"
	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
	"github.com/nvhoang/maildeck/internal/provider/localstore"
	appsync "github.com/nvhoang/maildeck/internal/sync"
	"github.com/nvhoang/maildeck/internal/ui"
	"github.com/nvhoang/maildeck/internal/ui/accountmgr"
	"github.com/nvhoang/maildeck/internal/ui/addressmgr"
	"github.com/nvhoang/maildeck/internal/ui/command"
	composeview "github.com/nvhoang/maildeck/internal/ui/compose"
	helpview "github.com/nvhoang/maildeck/internal/ui/help"
	"github.com/nvhoang/maildeck/internal/ui/maillist"
	"github.com/nvhoang/maildeck/internal/ui/message"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewMessage
	ViewCompose
	ViewAccounts
	ViewAddresses
	ViewHelp
	ViewCommand
)

// Deps bundles the application's long-lived collaborators.
type Deps struct {
	Manager  *provider.Manager
	Accounts *config.AccountStore
	Registry *localstore.Registry
	Config   model.AppConfig
	Log      *logrus.Logger
}

// Model is the root Bubble Tea model that manages view routing, layout,
// the provider lifecycle, and the background poller.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	slots        loadSlots

	manager  *provider.Manager
	accounts *config.AccountStore
	registry *localstore.Registry
	poller   *appsync.Poller
	log      *logrus.Logger

	pageSize    int
	downloadDir string

	listView    maillist.Model
	messageView message.Model
	composeView composeview.Model
	accountView accountmgr.Model
	addressView addressmgr.Model
	helpView    helpview.Model
	commandView command.Model

	ready        bool
	unreadCount  int
	statusNotice string
	errNotice    string
}

// New creates the root application model.
func New(deps Deps) Model {
	k := keys.DefaultKeyMap()

	pageSize := deps.Config.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	return Model{
		currentView: ViewList,
		keys:        k,
		manager:     deps.Manager,
		accounts:    deps.Accounts,
		registry:    deps.Registry,
		poller:      appsync.New(deps.Config.PollInterval()),
		log:         deps.Log,
		pageSize:    pageSize,
		downloadDir: deps.Config.DownloadDir(),
		listView:    maillist.New(k, pageSize, 80, 24),
		messageView: message.New(k, 80, 24),
		composeView: composeview.New(80, 24),
		accountView: accountmgr.New(deps.Accounts, deps.Registry, k, 80, 24),
		addressView: addressmgr.New(deps.Registry, k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
	}
}

// Init connects the first configured account, or drops into the
// account manager when none exist yet.
func (m Model) Init() tea.Cmd {
	accounts := m.accounts.Accounts()
	if len(accounts) == 0 {
		return m.accountView.Init()
	}
	return tea.Batch(
		m.switchAccount(accounts[0]),
		m.poller.Start(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.listView.SetSize(m.layout.MainWidth(), contentHeight)
		m.messageView.SetSize(contentWidth, contentHeight)
		m.composeView.SetSize(contentWidth, contentHeight)
		m.accountView.SetSize(contentWidth, contentHeight)
		m.addressView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		// Forward to the active view so huh forms can size themselves.
		return m.updateActiveView(msg)

	case accountSwitchedMsg:
		if msg.err != nil {
			m.errNotice = fmt.Sprintf("connecting %s: %v", msg.account.DisplayName(), msg.err)
			m.previousView = m.currentView
			m.currentView = ViewAccounts
			return m, m.accountView.Init()
		}
		m.errNotice = ""
		m.statusNotice = ""
		m.slots.invalidateAll()
		m.poller.SetProvider(m.manager.Current())
		m.currentView = ViewList
		return m, tea.Batch(
			m.loadFolders(),
			m.loadMessages(model.DefaultFolder, 0),
		)

	case appsync.ResultMsg:
		if msg.Err != nil {
			if msg.AuthExpired {
				m.errNotice = "authentication expired; press 'a' to reconfigure"
			}
		} else {
			m.errNotice = ""
			m.unreadCount = msg.Unread
			m.listView.SetFolders(msg.Folders)
		}
		return m, m.poller.WaitForNextResult()

	case foldersLoadedMsg:
		if !m.slots.folder.current(msg.gen) {
			return m, nil
		}
		if msg.err != nil {
			return m.reportError("loading folders", msg.err)
		}
		m.listView.SetFolders(msg.folders)
		for _, f := range msg.folders {
			if f.Name == model.DefaultFolder {
				m.unreadCount = f.UnreadCount
			}
		}
		return m, nil

	case messagesLoadedMsg:
		if !m.slots.list.current(msg.gen) {
			return m, nil
		}
		if msg.err != nil {
			m.listView.SetLoading(false)
			return m.reportError("loading "+msg.folder, msg.err)
		}
		return m, m.listView.SetEmails(msg.folder, msg.offset, msg.emails)

	case messageLoadedMsg:
		if !m.slots.message.current(msg.gen) {
			return m, nil
		}
		if msg.err != nil {
			m.currentView = ViewList
			return m.reportError("opening message", msg.err)
		}
		m.messageView.SetEmail(msg.email)
		return m, m.loadFolders()

	case searchLoadedMsg:
		if !m.slots.search.current(msg.gen) {
			return m, nil
		}
		if msg.err != nil {
			m.listView.SetLoading(false)
			return m.reportError("searching", msg.err)
		}
		return m, m.listView.SetSearchResults(msg.query, msg.emails)

	case sentMsg:
		if msg.err != nil {
			return m.reportError("sending", msg.err)
		}
		m.statusNotice = "Message sent"
		m.currentView = ViewList
		return m, tea.Batch(
			m.loadFolders(),
			m.loadMessages(m.listView.Folder(), m.listView.Offset()),
		)

	case markReadDoneMsg:
		if msg.err != nil {
			return m.reportError("updating read flag", msg.err)
		}
		if email := m.messageView.Email(); email != nil && email.ID == msg.id {
			email.IsRead = msg.read
			m.messageView.SetEmail(email)
		}
		return m, tea.Batch(
			m.loadFolders(),
			m.loadMessages(m.listView.Folder(), m.listView.Offset()),
		)

	case deletedMsg:
		if msg.err != nil {
			return m.reportError("deleting", msg.err)
		}
		m.statusNotice = "Message deleted"
		if m.currentView == ViewMessage {
			m.currentView = ViewList
		}
		return m, tea.Batch(
			m.loadFolders(),
			m.loadMessages(m.listView.Folder(), m.listView.Offset()),
		)

	case attachmentSavedMsg:
		if msg.err != nil {
			return m.reportError("saving attachment", msg.err)
		}
		m.statusNotice = "Saved " + msg.path
		return m, nil

	case maillist.SelectedMailMsg:
		m.previousView = m.currentView
		m.currentView = ViewMessage
		m.messageView.SetLoading(true)
		return m, m.openMessage(msg.ID)

	case maillist.FolderSelectedMsg:
		return m, m.loadMessages(msg.Name, 0)

	case maillist.SearchRequestMsg:
		return m, m.searchMessages(msg.Query, m.listView.Folder())

	case maillist.SearchClearedMsg:
		return m, m.loadMessages(m.listView.Folder(), 0)

	case maillist.PageRequestMsg:
		return m, m.loadMessages(m.listView.Folder(), msg.Offset)

	case message.BackMsg:
		m.currentView = ViewList
		return m, nil

	case message.ReplyMsg:
		m.previousView = m.currentView
		m.currentView = ViewCompose
		return m, m.composeView.StartReply(msg.Email)

	case message.DeleteMsg:
		return m, m.deleteMessage(msg.ID)

	case message.ToggleReadMsg:
		return m, m.setRead(msg.ID, msg.Read)

	case message.SaveAttachmentMsg:
		return m, m.saveAttachment(msg.EmailID, msg.AttachmentID, msg.Filename)

	case composeview.SubmitMsg:
		return m, m.sendMessage(msg.Message)

	case composeview.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case accountmgr.CloseMsg:
		if m.manager.Current() == nil {
			// Nothing to go back to without an active account.
			return m, nil
		}
		m.currentView = ViewList
		return m, nil

	case accountmgr.SelectedMsg:
		m.statusNotice = "Connecting to " + msg.Account.DisplayName() + "..."
		return m, m.switchAccount(msg.Account)

	case accountmgr.ChangedMsg:
		return m, nil

	case addressmgr.CloseMsg:
		m.currentView = ViewList
		return m, nil

	case addressmgr.ChangedMsg:
		// Folder counts may reference a removed mailbox.
		return m, m.loadFolders()

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that work regardless of the focused
// view. Views with text input keep their keystrokes.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	typing := m.currentView == ViewCompose ||
		m.currentView == ViewCommand ||
		m.currentView == ViewAccounts ||
		m.currentView == ViewAddresses ||
		(m.currentView == ViewList && m.listView.Searching())

	switch msg.String() {
	case "ctrl+c":
		m.poller.Stop()
		return m, tea.Quit, true

	case "q":
		if m.currentView == ViewList && !m.listView.Searching() {
			m.poller.Stop()
			return m, tea.Quit, true
		}

	case "?":
		if typing {
			break
		}
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case ":":
		if typing {
			break
		}
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus(), true

	case "n":
		if m.currentView == ViewList && !m.listView.Searching() {
			m.previousView = m.currentView
			m.currentView = ViewCompose
			return m, m.composeView.StartCompose(), true
		}

	case "r":
		if m.currentView == ViewList && !m.listView.Searching() {
			m.poller.Refresh()
			return m, tea.Batch(
				m.loadFolders(),
				m.loadMessages(m.listView.Folder(), m.listView.Offset()),
			), true
		}

	case "a":
		if m.currentView == ViewList && !m.listView.Searching() {
			m.previousView = m.currentView
			m.currentView = ViewAccounts
			return m, m.accountView.Init(), true
		}

	case "L":
		if m.currentView == ViewList && !m.listView.Searching() {
			m.previousView = m.currentView
			m.currentView = ViewAddresses
			return m, m.addressView.Init(), true
		}

	case "R":
		if m.currentView == ViewList && !m.listView.Searching() {
			if email, ok := m.listView.SelectedEmail(); ok {
				m.previousView = m.currentView
				m.currentView = ViewCompose
				return m, m.composeView.StartReply(email), true
			}
		}

	case "d":
		if m.currentView == ViewList && !m.listView.Searching() {
			if email, ok := m.listView.SelectedEmail(); ok {
				return m, m.deleteMessage(email.ID), true
			}
		}

	case "u":
		if m.currentView == ViewList && !m.listView.Searching() {
			if email, ok := m.listView.SelectedEmail(); ok {
				return m, m.setRead(email.ID, !email.IsRead), true
			}
		}
	}

	return m, nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.listView, cmd = m.listView.Update(msg)
	case ViewMessage:
		m.messageView, cmd = m.messageView.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	case ViewAccounts:
		m.accountView, cmd = m.accountView.Update(msg)
	case ViewAddresses:
		m.addressView, cmd = m.addressView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// reportError logs the failure and surfaces a short notice in the
// status bar.
func (m Model) reportError(op string, err error) (tea.Model, tea.Cmd) {
	m.log.WithError(err).Warn(op)
	m.errNotice = fmt.Sprintf("%s: %v", op, err)
	return m, nil
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.accountState())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.statusLine())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) headerTitle() string {
	if m.unreadCount > 0 {
		return fmt.Sprintf("Maildeck [%d unread]", m.unreadCount)
	}
	return "Maildeck"
}

// accountState describes the active account and sync state for the
// header's right side.
func (m Model) accountState() string {
	account := m.manager.Account()
	if account == nil {
		return "no account"
	}

	state := ""
	switch m.poller.GetStatus().State {
	case appsync.Running:
		state = " | syncing"
	case appsync.Error:
		state = " | unreachable"
	}
	return account.DisplayName() + state
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.layout.RenderSplit(m.listView.FoldersView(), m.listView.View())
	case ViewMessage:
		return m.messageView.View()
	case ViewCompose:
		return m.composeView.View()
	case ViewAccounts:
		return m.accountView.View()
	case ViewAddresses:
		return m.addressView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// statusLine returns the status bar content: a pending error, a recent
// notice, or keyboard hints for the active view.
func (m Model) statusLine() string {
	if m.errNotice != "" {
		return m.errNotice
	}
	if m.statusNotice != "" {
		return m.statusNotice
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewMessage:
		return "esc back | R reply | d delete | u toggle read | 1-9 save attachment | j/k scroll"
	case ViewCompose:
		return "enter next field | esc cancel"
	case ViewAccounts:
		return "enter switch | n new | e edit | d remove | esc back"
	case ViewAddresses:
		return "n new | d delete | esc back"
	default:
		return "q quit | ? help | n compose | / search | tab folders | r refresh | a accounts"
	}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "refresh", "sync":
		m.poller.Refresh()
		return tea.Batch(
			m.loadFolders(),
			m.loadMessages(m.listView.Folder(), m.listView.Offset()),
		)
	case "quit", "q":
		m.poller.Stop()
		return tea.Quit
	case "compose", "new":
		m.previousView = m.currentView
		m.currentView = ViewCompose
		return m.composeView.StartCompose()
	case "accounts":
		m.previousView = m.currentView
		m.currentView = ViewAccounts
		return m.accountView.Init()
	case "addresses":
		m.previousView = m.currentView
		m.currentView = ViewAddresses
		return m.addressView.Init()
	case "inbox":
		return m.loadMessages(model.DefaultFolder, 0)
	case "sent":
		return m.loadMessages("Sent", 0)
	case "trash":
		return m.loadMessages("Trash", 0)
	default:
		m.statusNotice = "unknown command: " + cmd
		return nil
	}
}
