package app

import (
	"context"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
)

// stubProvider serves canned folders and per-folder message lists.
type stubProvider struct {
	folders []model.Folder
	emails  map[string][]model.Email
}

func (s *stubProvider) Connect(context.Context) error    { return nil }
func (s *stubProvider) Disconnect(context.Context) error { return nil }

func (s *stubProvider) Fetch(_ context.Context, folder string, limit, offset int) ([]model.Email, error) {
	return s.emails[folder], nil
}

func (s *stubProvider) Get(context.Context, string) (*model.Email, error) { return nil, nil }

func (s *stubProvider) Send(context.Context, provider.OutgoingMessage) error { return nil }

func (s *stubProvider) Folders(context.Context) ([]model.Folder, error) {
	return s.folders, nil
}

func (s *stubProvider) MarkRead(context.Context, string, bool) error { return nil }
func (s *stubProvider) Delete(context.Context, string) error         { return nil }

func (s *stubProvider) Search(context.Context, string, string, int) ([]model.Email, error) {
	return nil, nil
}

func (s *stubProvider) Attachment(context.Context, string, string) (*model.Attachment, error) {
	return nil, nil
}

func newTestModel(t *testing.T, p provider.Provider) Model {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	mgr := provider.NewManager(func(model.Account) (provider.Provider, error) {
		return p, nil
	}, log)
	if _, err := mgr.Use(context.Background(), model.Account{ID: "account_1", Email: "alice@local"}); err != nil {
		t.Fatalf("connecting stub provider: %v", err)
	}

	return New(Deps{
		Manager: mgr,
		Config:  model.AppConfig{PageSize: 10},
		Log:     log,
	})
}

// apply runs a command and feeds its message back through Update.
func apply(t *testing.T, m tea.Model, cmd tea.Cmd) tea.Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command, got nil")
	}
	next, _ := m.Update(cmd())
	return next
}

func TestBatchedFolderAndPageRefreshAppliesBoth(t *testing.T) {
	stub := &stubProvider{
		folders: []model.Folder{
			model.NewFolder(model.DefaultFolder, "", 3, 5),
			model.NewFolder("Sent", "", 0, 2),
		},
		emails: map[string][]model.Email{
			model.DefaultFolder: {{ID: "m1", Folder: model.DefaultFolder, Subject: "hi"}},
		},
	}
	m := newTestModel(t, stub)

	// Refresh paths batch a sidebar reload with a page reload, folders
	// first. Both results must be applied.
	foldersCmd := m.loadFolders()
	messagesCmd := m.loadMessages(model.DefaultFolder, 0)

	var next tea.Model = m
	next = apply(t, next, messagesCmd)
	next = apply(t, next, foldersCmd)

	got := next.(Model)
	if got.unreadCount != 3 {
		t.Fatalf("unread count = %d, want 3; the sidebar reload was dropped", got.unreadCount)
	}
	if email, ok := got.listView.SelectedEmail(); !ok || email.ID != "m1" {
		t.Fatalf("page reload not applied; selected = %+v, ok = %v", email, ok)
	}
}

func TestSupersededPageLoadIsDiscarded(t *testing.T) {
	stub := &stubProvider{
		folders: []model.Folder{model.NewFolder(model.DefaultFolder, "", 0, 1)},
		emails: map[string][]model.Email{
			model.DefaultFolder: {{ID: "m1", Folder: model.DefaultFolder}},
			"Sent":              {{ID: "m2", Folder: "Sent"}},
		},
	}
	m := newTestModel(t, stub)

	first := m.loadMessages(model.DefaultFolder, 0)
	second := m.loadMessages("Sent", 0)

	// The newer request lands first; the older one must be dropped.
	var next tea.Model = m
	next = apply(t, next, second)
	next = apply(t, next, first)

	got := next.(Model)
	if got.listView.Folder() != "Sent" {
		t.Fatalf("folder = %q, want %q; a stale page load was applied", got.listView.Folder(), "Sent")
	}
}

func TestAccountSwitchInvalidatesOutstandingLoads(t *testing.T) {
	stub := &stubProvider{
		folders: []model.Folder{model.NewFolder(model.DefaultFolder, "", 7, 7)},
		emails: map[string][]model.Email{
			model.DefaultFolder: {{ID: "m1", Folder: model.DefaultFolder}},
		},
	}
	m := newTestModel(t, stub)

	foldersCmd := m.loadFolders()
	m.slots.invalidateAll()

	next, _ := m.Update(foldersCmd())
	got := next.(Model)
	if got.unreadCount != 0 {
		t.Fatalf("unread count = %d, want 0; a pre-switch result was applied", got.unreadCount)
	}
}
