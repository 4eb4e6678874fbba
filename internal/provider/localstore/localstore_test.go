package localstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
)

// newAddress registers an address and returns a provider bound to it.
func newAddress(t *testing.T, dir, localPart string) *Provider {
	t.Helper()

	reg, err := OpenRegistry(dir)
	if err != nil {
		t.Fatalf("opening registry: %v", err)
	}
	account, err := reg.Create(localPart, "local")
	if err != nil {
		t.Fatalf("creating address %s: %v", localPart, err)
	}

	p, err := New(account, nil)
	if err != nil {
		t.Fatalf("creating provider for %s: %v", account.Email, err)
	}
	return p
}

// seed stores a message directly and persists it.
func seed(t *testing.T, p *Provider, email model.Email) {
	t.Helper()
	p.mb.put(email)
	if err := p.mb.persist(); err != nil {
		t.Fatalf("seeding mailbox: %v", err)
	}
}

func folderByName(t *testing.T, folders []model.Folder, name string) model.Folder {
	t.Helper()
	for _, f := range folders {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("folder %s not in %v", name, folders)
	return model.Folder{}
}

func TestFoldersOnFreshMailbox(t *testing.T) {
	p := newAddress(t, t.TempDir(), "alice")

	folders, err := p.Folders(context.Background())
	if err != nil {
		t.Fatalf("Folders: %v", err)
	}

	if len(folders) != 4 {
		t.Fatalf("got %d folders, want exactly the 4 canonical ones: %v", len(folders), folders)
	}
	want := []string{"INBOX", "Sent", "Drafts", "Trash"}
	for i, name := range want {
		if folders[i].Name != name {
			t.Errorf("folders[%d] = %q, want %q", i, folders[i].Name, name)
		}
		if folders[i].UnreadCount != 0 || folders[i].TotalCount != 0 {
			t.Errorf("folder %s counts = %d/%d, want 0/0",
				name, folders[i].UnreadCount, folders[i].TotalCount)
		}
	}
}

func TestSendLocalDeliveryEndToEnd(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	alice := newAddress(t, dir, "alice")
	bob := newAddress(t, dir, "bob")

	err := alice.Send(ctx, provider.OutgoingMessage{
		To:      []string{"bob@local"},
		Subject: "Hi",
		Body:    "Hello",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	// Bob's provider was constructed before the send; reload from disk
	// to observe the delivery.
	bob, err = New(model.Account{Email: "bob@local", StorageDir: dir}, nil)
	if err != nil {
		t.Fatalf("reloading bob: %v", err)
	}

	bobFolders, err := bob.Folders(ctx)
	if err != nil {
		t.Fatalf("bob Folders: %v", err)
	}
	inbox := folderByName(t, bobFolders, "INBOX")
	if inbox.TotalCount != 1 || inbox.UnreadCount != 1 {
		t.Errorf("bob INBOX counts = %d total / %d unread, want 1/1",
			inbox.TotalCount, inbox.UnreadCount)
	}

	aliceFolders, err := alice.Folders(ctx)
	if err != nil {
		t.Fatalf("alice Folders: %v", err)
	}
	sent := folderByName(t, aliceFolders, "Sent")
	if sent.TotalCount != 1 {
		t.Errorf("alice Sent total = %d, want 1", sent.TotalCount)
	}

	bobInbox, err := bob.Fetch(ctx, "INBOX", 10, 0)
	if err != nil || len(bobInbox) != 1 {
		t.Fatalf("bob Fetch = %v, %v", bobInbox, err)
	}
	aliceSent, err := alice.Fetch(ctx, "Sent", 10, 0)
	if err != nil || len(aliceSent) != 1 {
		t.Fatalf("alice Fetch = %v, %v", aliceSent, err)
	}

	if bobInbox[0].ID == aliceSent[0].ID {
		t.Error("delivered copy reuses the sender's message id")
	}
	if bobInbox[0].Subject != "Hi" || bobInbox[0].BodyText != "Hello" {
		t.Errorf("delivered message = %+v", bobInbox[0])
	}
	if bobInbox[0].Folder != "INBOX" {
		t.Errorf("delivered folder = %q, want INBOX", bobInbox[0].Folder)
	}
	if bobInbox[0].From != "alice@local" {
		t.Errorf("delivered from = %q", bobInbox[0].From)
	}
}

func TestSendExternalWithoutRelayStillSucceeds(t *testing.T) {
	p := newAddress(t, t.TempDir(), "alice")
	ctx := context.Background()

	err := p.Send(ctx, provider.OutgoingMessage{
		To:      []string{"someone@example.com"},
		Subject: "out",
		Body:    "bound",
	})
	if err != nil {
		t.Fatalf("Send to external without relay: %v", err)
	}

	sent, err := p.Fetch(ctx, "Sent", 10, 0)
	if err != nil || len(sent) != 1 {
		t.Fatalf("Sent copy missing: %v, %v", sent, err)
	}
}

func TestRouterReevaluatesLocalAddresses(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	alice := newAddress(t, dir, "alice")

	// carol does not exist yet: the send must treat her as external.
	if err := alice.Send(ctx, provider.OutgoingMessage{
		To: []string{"carol@local"}, Subject: "first", Body: "x",
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	carol := newAddress(t, dir, "carol")
	if inbox, _ := carol.Fetch(ctx, "INBOX", 10, 0); len(inbox) != 0 {
		t.Fatalf("carol received mail sent before her address existed: %v", inbox)
	}

	// Now she exists; the routing decision must be re-made.
	if err := alice.Send(ctx, provider.OutgoingMessage{
		To: []string{"carol@local"}, Subject: "second", Body: "y",
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	carol, err := New(model.Account{Email: "carol@local", StorageDir: dir}, nil)
	if err != nil {
		t.Fatalf("reloading carol: %v", err)
	}
	inbox, err := carol.Fetch(ctx, "INBOX", 10, 0)
	if err != nil || len(inbox) != 1 {
		t.Fatalf("carol inbox = %v, %v, want the second message only", inbox, err)
	}
	if inbox[0].Subject != "second" {
		t.Errorf("delivered subject = %q", inbox[0].Subject)
	}
}

func TestDeleteIsSoft(t *testing.T) {
	p := newAddress(t, t.TempDir(), "alice")
	ctx := context.Background()

	seed(t, p, model.Email{ID: "m1", Subject: "keep me", Folder: "INBOX", Date: time.Now()})
	seed(t, p, model.Email{ID: "m2", Subject: "other", Folder: "INBOX", Date: time.Now()})

	if err := p.Delete(ctx, "m1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(p.mb.emails) != 2 {
		t.Errorf("record count = %d, want 2 (soft delete keeps the record)", len(p.mb.emails))
	}

	got, err := p.Get(ctx, "m1")
	if err != nil || got == nil {
		t.Fatalf("Get after delete = %v, %v", got, err)
	}
	if got.Folder != "Trash" {
		t.Errorf("folder after delete = %q, want Trash", got.Folder)
	}

	if err := p.Delete(ctx, "missing"); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("Delete(missing) err = %v, want ErrNotFound", err)
	}
}

func TestFetchEqualsSortedSlice(t *testing.T) {
	p := newAddress(t, t.TempDir(), "alice")
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := []string{"a", "b", "c", "d", "e"}
	for i, id := range ids {
		seed(t, p, model.Email{
			ID:      id,
			Subject: id,
			Folder:  "INBOX",
			Date:    base.Add(time.Duration(i) * time.Hour),
		})
	}
	// One message in another folder must not leak in.
	seed(t, p, model.Email{ID: "z", Folder: "Sent", Date: base})

	// Newest first: e, d, c, b, a. Slice [1:3] = d, c.
	got, err := p.Fetch(ctx, "INBOX", 2, 1)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 || got[0].ID != "d" || got[1].ID != "c" {
		t.Errorf("Fetch(limit=2, offset=1) = %v, want [d c]", got)
	}

	// Offset past the end yields nothing.
	if got, _ := p.Fetch(ctx, "INBOX", 10, 99); len(got) != 0 {
		t.Errorf("Fetch past end = %v", got)
	}

	// Zero limit returns the whole tail.
	if got, _ := p.Fetch(ctx, "INBOX", 0, 0); len(got) != 5 {
		t.Errorf("Fetch with no limit = %d messages", len(got))
	}
}

func TestSearchScope(t *testing.T) {
	p := newAddress(t, t.TempDir(), "alice")
	ctx := context.Background()
	now := time.Now()

	seed(t, p, model.Email{
		ID: "s1", Subject: "Invoice March", Folder: "INBOX",
		From: "billing@example.com", Date: now,
	})
	seed(t, p, model.Email{
		ID: "s2", Subject: "lunch", BodyText: "The INVOICE is attached",
		Folder: "INBOX", Date: now.Add(-time.Hour),
	})
	seed(t, p, model.Email{
		ID: "s3", Subject: "hidden", BodyHTML: "<p>invoice</p>",
		Folder: "INBOX", Date: now.Add(-2 * time.Hour),
	})
	seed(t, p, model.Email{
		ID: "s4", Subject: "Invoice April", Folder: "Sent", Date: now.Add(-3 * time.Hour),
	})

	// Case-insensitive across subject, body text, and from; HTML-only
	// bodies are not searchable.
	got, err := p.Search(ctx, "invoice", "", 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	ids := make(map[string]bool)
	for _, e := range got {
		ids[e.ID] = true
	}
	if !ids["s1"] || !ids["s2"] || !ids["s4"] {
		t.Errorf("search missed expected hits: %v", ids)
	}
	if ids["s3"] {
		t.Error("search matched a term present only in the HTML body")
	}

	// Newest first.
	if len(got) >= 2 && got[0].Date.Before(got[1].Date) {
		t.Error("search results not sorted newest first")
	}

	// Folder scope.
	got, _ = p.Search(ctx, "invoice", "Sent", 50)
	if len(got) != 1 || got[0].ID != "s4" {
		t.Errorf("folder-scoped search = %v, want only s4", got)
	}

	// From-address match.
	got, _ = p.Search(ctx, "BILLING@", "", 50)
	if len(got) != 1 || got[0].ID != "s1" {
		t.Errorf("from-address search = %v, want only s1", got)
	}

	// Limit cap.
	got, _ = p.Search(ctx, "invoice", "", 1)
	if len(got) != 1 {
		t.Errorf("limit=1 search returned %d results", len(got))
	}
}

func TestMarkReadIsWrittenThrough(t *testing.T) {
	dir := t.TempDir()
	p := newAddress(t, dir, "alice")
	ctx := context.Background()

	seed(t, p, model.Email{ID: "m1", Folder: "INBOX", Date: time.Now()})

	if err := p.MarkRead(ctx, "m1", true); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	// A fresh provider reads the flag back from disk: the write is not
	// batched.
	reloaded, err := New(model.Account{Email: "alice@local", StorageDir: dir}, nil)
	if err != nil {
		t.Fatalf("reloading: %v", err)
	}
	got, err := reloaded.Get(ctx, "m1")
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if !got.IsRead {
		t.Error("read flag not persisted")
	}

	if err := p.MarkRead(ctx, "missing", true); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("MarkRead(missing) err = %v, want ErrNotFound", err)
	}
}

func TestPersistenceErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	p := newAddress(t, dir, "alice")
	seed(t, p, model.Email{ID: "m1", Folder: "INBOX", Date: time.Now()})

	// Point the document somewhere unwritable: a path under a regular
	// file can never be created.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	p.mb.path = filepath.Join(blocker, "mailbox.json")

	err := p.MarkRead(context.Background(), "m1", true)
	if !provider.IsPersistence(err) {
		t.Fatalf("err = %v, want PersistenceError to propagate", err)
	}
}

func TestMailboxSurvivesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := newAddress(t, dir, "alice")
	ctx := context.Background()

	sentAt := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	seed(t, p, model.Email{
		ID:      "m1",
		Subject: "with attachment",
		From:    "alice@local",
		To:      []string{"bob@local"},
		Date:    sentAt,
		Folder:  "INBOX",
		Attachments: []model.Attachment{{
			ID:          "m1_0",
			Filename:    "data.bin",
			ContentType: "application/octet-stream",
			Size:        3,
			Data:        []byte{1, 2, 3},
		}},
	})

	reloaded, err := New(model.Account{Email: "alice@local", StorageDir: dir}, nil)
	if err != nil {
		t.Fatalf("reloading: %v", err)
	}
	got, err := reloaded.Get(ctx, "m1")
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if !got.Date.Equal(sentAt) {
		t.Errorf("date = %v, want %v", got.Date, sentAt)
	}
	att, err := reloaded.Attachment(ctx, "m1", "m1_0")
	if err != nil || att == nil {
		t.Fatalf("Attachment = %v, %v", att, err)
	}
	if string(att.Data) != string([]byte{1, 2, 3}) {
		t.Errorf("attachment payload = %v", att.Data)
	}
}
