package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nvhoang/maildeck/internal/credential"
	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
)

// foldersLoadedMsg carries the folder list for the sidebar.
type foldersLoadedMsg struct {
	gen     int
	folders []model.Folder
	err     error
}

// messagesLoadedMsg carries one page of a folder.
type messagesLoadedMsg struct {
	gen    int
	folder string
	offset int
	emails []model.Email
	err    error
}

// messageLoadedMsg carries a single opened message.
type messageLoadedMsg struct {
	gen   int
	email *model.Email
	err   error
}

// searchLoadedMsg carries search results.
type searchLoadedMsg struct {
	gen    int
	query  string
	emails []model.Email
	err    error
}

type sentMsg struct{ err error }

type markReadDoneMsg struct {
	id   string
	read bool
	err  error
}

type deletedMsg struct {
	id  string
	err error
}

type attachmentSavedMsg struct {
	path string
	err  error
}

// accountSwitchedMsg reports the outcome of an account switch.
type accountSwitchedMsg struct {
	account model.Account
	err     error
}

// opTimeout bounds every provider call issued from the UI.
const opTimeout = 30 * time.Second

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

func (m *Model) withProvider() provider.Provider {
	return m.manager.Current()
}

// loadFolders refreshes the sidebar. Results race-guarded by the
// folder slot.
func (m *Model) loadFolders() tea.Cmd {
	p := m.withProvider()
	if p == nil {
		return nil
	}
	gen := m.slots.folder.next()
	return func() tea.Msg {
		ctx, cancel := opCtx()
		defer cancel()
		folders, err := p.Folders(ctx)
		return foldersLoadedMsg{gen: gen, folders: folders, err: err}
	}
}

// loadMessages loads one page of a folder. A newer page load
// supersedes this one; sidebar refreshes run on their own slot.
func (m *Model) loadMessages(folder string, offset int) tea.Cmd {
	p := m.withProvider()
	if p == nil {
		return nil
	}
	gen := m.slots.list.next()
	pageSize := m.pageSize
	return func() tea.Msg {
		ctx, cancel := opCtx()
		defer cancel()
		emails, err := p.Fetch(ctx, folder, pageSize, offset)
		return messagesLoadedMsg{
			gen:    gen,
			folder: folder,
			offset: offset,
			emails: emails,
			err:    err,
		}
	}
}

// openMessage loads a message body and, when it is unread, marks it
// read. This is the only place the read flag is set on open, so a
// message is never toggled twice for a single view.
func (m *Model) openMessage(id string) tea.Cmd {
	p := m.withProvider()
	if p == nil {
		return nil
	}
	gen := m.slots.message.next()
	return func() tea.Msg {
		ctx, cancel := opCtx()
		defer cancel()
		email, err := p.Get(ctx, id)
		if err != nil {
			return messageLoadedMsg{gen: gen, err: err}
		}
		if email != nil && !email.IsRead {
			if err := p.MarkRead(ctx, id, true); err == nil {
				email.IsRead = true
			}
		}
		return messageLoadedMsg{gen: gen, email: email}
	}
}

// searchMessages runs a search scoped to the current folder.
func (m *Model) searchMessages(query, folder string) tea.Cmd {
	p := m.withProvider()
	if p == nil {
		return nil
	}
	gen := m.slots.search.next()
	pageSize := m.pageSize
	return func() tea.Msg {
		ctx, cancel := opCtx()
		defer cancel()
		emails, err := p.Search(ctx, query, folder, pageSize)
		return searchLoadedMsg{gen: gen, query: query, emails: emails, err: err}
	}
}

// sendMessage submits an outgoing message through the active provider.
func (m *Model) sendMessage(msg provider.OutgoingMessage) tea.Cmd {
	p := m.withProvider()
	if p == nil {
		return func() tea.Msg { return sentMsg{err: provider.ErrNotConnected} }
	}
	return func() tea.Msg {
		ctx, cancel := opCtx()
		defer cancel()
		return sentMsg{err: p.Send(ctx, msg)}
	}
}

// setRead flips the read flag from the message view's explicit toggle.
func (m *Model) setRead(id string, read bool) tea.Cmd {
	p := m.withProvider()
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := opCtx()
		defer cancel()
		err := p.MarkRead(ctx, id, read)
		return markReadDoneMsg{id: id, read: read, err: err}
	}
}

// deleteMessage removes a message through the active provider.
func (m *Model) deleteMessage(id string) tea.Cmd {
	p := m.withProvider()
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := opCtx()
		defer cancel()
		err := p.Delete(ctx, id)
		return deletedMsg{id: id, err: err}
	}
}

// saveAttachment downloads an attachment into the download directory.
func (m *Model) saveAttachment(emailID, attachmentID, filename string) tea.Cmd {
	p := m.withProvider()
	if p == nil {
		return nil
	}
	dir := m.downloadDir
	return func() tea.Msg {
		ctx, cancel := opCtx()
		defer cancel()
		att, err := p.Attachment(ctx, emailID, attachmentID)
		if err != nil {
			return attachmentSavedMsg{err: err}
		}
		if att == nil {
			return attachmentSavedMsg{err: fmt.Errorf("attachment %s not found", attachmentID)}
		}

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return attachmentSavedMsg{err: err}
		}
		name := filename
		if name == "" {
			name = att.Filename
		}
		if name == "" {
			name = attachmentID
		}
		path := filepath.Join(dir, filepath.Base(name))
		if err := os.WriteFile(path, att.Data, 0o644); err != nil {
			return attachmentSavedMsg{err: err}
		}
		return attachmentSavedMsg{path: path}
	}
}

// switchAccount resolves the account's credentials and makes it the
// active provider.
func (m *Model) switchAccount(account model.Account) tea.Cmd {
	mgr := m.manager
	return func() tea.Msg {
		ctx, cancel := opCtx()
		defer cancel()
		resolved := credential.Resolve(account)
		_, err := mgr.Use(ctx, resolved)
		return accountSwitchedMsg{account: account, err: err}
	}
}
