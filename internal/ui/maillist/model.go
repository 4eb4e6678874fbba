package maillist

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nvhoang/maildeck/internal/keys"
	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/theme"
)

// SelectedMailMsg is sent when the user opens a message.
type SelectedMailMsg struct {
	ID string
}

// FolderSelectedMsg is sent when the user switches to another folder.
type FolderSelectedMsg struct {
	Name string
}

// SearchRequestMsg is sent when the user submits a search query.
type SearchRequestMsg struct {
	Query string
}

// SearchClearedMsg is sent when the user leaves search results.
type SearchClearedMsg struct{}

// PageRequestMsg is sent when the user pages through the folder.
type PageRequestMsg struct {
	Offset int
}

// Model is the folder-plus-message-list view component. It renders
// intent; the parent owns all provider calls and pushes results back in
// with SetFolders and SetEmails.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	folders     []model.Folder
	folderIndex int
	folderFocus bool

	folder     string
	offset     int
	pageSize   int
	searchMode bool
	searching  bool
	searchText textinput.Model
	loading    bool

	width  int
	height int
}

// New creates a new mail list model.
func New(k *keys.KeyMap, pageSize, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = model.DefaultFolder
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search mail..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:       l,
		keys:       k,
		folder:     model.DefaultFolder,
		pageSize:   pageSize,
		searchText: si,
		width:      width,
		height:     height,
	}
}

// Folder returns the currently displayed folder.
func (m Model) Folder() string { return m.folder }

// Offset returns the current pagination offset.
func (m Model) Offset() int { return m.offset }

// Searching reports whether search results are being displayed.
func (m Model) Searching() bool { return m.searching }

// SetLoading toggles the loading indicator.
func (m *Model) SetLoading(loading bool) { m.loading = loading }

// SetFolders replaces the folder pane content, keeping the selection on
// the same folder name when it still exists.
func (m *Model) SetFolders(folders []model.Folder) {
	m.folders = folders
	m.folderIndex = 0
	for i, f := range folders {
		if f.Name == m.folder {
			m.folderIndex = i
			break
		}
	}
}

// SetEmails replaces the message rows with a page of a folder.
func (m *Model) SetEmails(folder string, offset int, emails []model.Email) tea.Cmd {
	m.folder = folder
	m.offset = offset
	m.searching = false
	m.loading = false
	m.list.Title = folder
	return m.setItems(emails)
}

// SetSearchResults replaces the message rows with search results.
func (m *Model) SetSearchResults(query string, emails []model.Email) tea.Cmd {
	m.searching = true
	m.loading = false
	m.list.Title = fmt.Sprintf("Search: %q", query)
	return m.setItems(emails)
}

func (m *Model) setItems(emails []model.Email) tea.Cmd {
	items := make([]list.Item, len(emails))
	for i, e := range emails {
		items[i] = EmailItem{Email: e}
	}
	return m.list.SetItems(items)
}

// SelectedEmail returns the highlighted message, if any.
func (m Model) SelectedEmail() (model.Email, bool) {
	item, ok := m.list.SelectedItem().(EmailItem)
	if !ok {
		return model.Email{}, false
	}
	return item.Email, true
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the mail list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(keyMsg)
		}
		if m.folderFocus {
			return m.handleFolderKeys(keyMsg)
		}
		return m.handleListKeys(keyMsg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while typing a search query.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		query := strings.TrimSpace(m.searchText.Value())
		if query == "" {
			return m, nil
		}
		m.loading = true
		return m, func() tea.Msg { return SearchRequestMsg{Query: query} }

	case "esc":
		m.searchMode = false
		m.searchText.Reset()
		if m.searching {
			m.loading = true
			return m, func() tea.Msg { return SearchClearedMsg{} }
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.searchText, cmd = m.searchText.Update(msg)
	return m, cmd
}

// handleFolderKeys processes key input while the folder pane has focus.
func (m Model) handleFolderKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.folderIndex < len(m.folders)-1 {
			m.folderIndex++
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.folderIndex > 0 {
			m.folderIndex--
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if m.folderIndex >= len(m.folders) {
			return m, nil
		}
		m.folderFocus = false
		name := m.folders[m.folderIndex].Name
		m.loading = true
		return m, func() tea.Msg { return FolderSelectedMsg{Name: name} }

	case key.Matches(msg, m.keys.FocusFolders), key.Matches(msg, m.keys.Back):
		m.folderFocus = false
		return m, nil
	}

	return m, nil
}

// handleListKeys processes key input while the message list has focus.
func (m Model) handleListKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		email, ok := m.SelectedEmail()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return SelectedMailMsg{ID: email.ID} }

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchText.Reset()
		return m, m.searchText.Focus()

	case key.Matches(msg, m.keys.FocusFolders):
		m.folderFocus = true
		return m, nil

	case key.Matches(msg, m.keys.Back):
		if m.searching {
			m.loading = true
			return m, func() tea.Msg { return SearchClearedMsg{} }
		}
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		if m.searching || len(m.list.Items()) < m.pageSize {
			return m, nil
		}
		offset := m.offset + m.pageSize
		m.loading = true
		return m, func() tea.Msg { return PageRequestMsg{Offset: offset} }

	case key.Matches(msg, m.keys.PrevPage):
		if m.searching || m.offset == 0 {
			return m, nil
		}
		offset := m.offset - m.pageSize
		if offset < 0 {
			offset = 0
		}
		m.loading = true
		return m, func() tea.Msg { return PageRequestMsg{Offset: offset} }
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// FoldersView renders the folder pane for the sidebar.
func (m Model) FoldersView() string {
	if len(m.folders) == 0 {
		return theme.HelpStyle.Render("no folders")
	}

	var rows []string
	for i, f := range m.folders {
		selected := i == m.folderIndex
		marker := "  "
		if selected && m.folderFocus {
			marker = "> "
		} else if f.Name == m.folder {
			marker = "* "
		}

		label := theme.FolderStyle(selected).Render(f.DisplayName)
		badge := ""
		if f.UnreadCount > 0 {
			badge = theme.UnreadCountStyle.Render(fmt.Sprintf(" (%d)", f.UnreadCount))
		}
		rows = append(rows, marker+label+badge)
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// View renders the main message-list pane.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchText.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if m.loading {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Loading messages...")
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	header := ""
	if m.offset > 0 {
		header = theme.HelpStyle.Render(
			fmt.Sprintf("page %d", m.offset/m.pageSize+1),
		)
	}
	if header == "" {
		return m.list.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, m.list.View())
}

// renderEmptyState shows guidance text when no messages are available.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.searching {
		return style.Render("No matching messages.\nPress esc to go back.")
	}
	return style.Render("No messages in " + m.folder + ".")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchText.Width = width - 4
}
