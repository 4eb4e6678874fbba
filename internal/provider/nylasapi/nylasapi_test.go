package nylasapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
)

// newTestProvider starts a fake API server and returns a connected
// provider pointed at it.
func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := New(model.Account{
		ID:       "account_1",
		Provider: model.ProviderNylas,
		APIKey:   "test-key",
		APIURI:   srv.URL,
		GrantID:  "grant-1",
	})
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return p
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encoding response: %v", err)
	}
}

func TestConnectRejectsBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := New(model.Account{APIKey: "bad", APIURI: srv.URL, GrantID: "grant-1"})
	err := p.Connect(context.Background())
	if !provider.IsConnectError(err) {
		t.Fatalf("Connect err = %v, want ConnectError", err)
	}

	// The variant must stay disconnected after a failed connect.
	if _, err := p.Fetch(context.Background(), "INBOX", 10, 0); err != provider.ErrNotConnected {
		t.Errorf("Fetch after failed connect: err = %v, want ErrNotConnected", err)
	}
}

func TestConnectRequiresGrant(t *testing.T) {
	p := New(model.Account{APIKey: "k"})
	if err := p.Connect(context.Background()); !provider.IsConnectError(err) {
		t.Errorf("Connect without grant: err = %v, want ConnectError", err)
	}
}

func TestFetchPaginationAndFolderScope(t *testing.T) {
	var gotPath, gotAuth string
	var gotQuery map[string][]string

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v3/grants/grant-1" {
			w.WriteHeader(http.StatusOK)
			return
		}
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		writeJSON(t, w, messageListResponse{Data: []wireMessage{
			{
				ID:      "msg-1",
				Subject: "Hello",
				From:    []participant{{Name: "Alice", Email: "alice@example.com"}},
				To:      []participant{{Email: "bob@example.com"}},
				Date:    1700000000,
				Body:    "<p>Hi Bob</p>",
				Unread:  true,
			},
		}})
	})

	emails, err := p.Fetch(context.Background(), "Archive", 25, 50)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotPath != "/v3/grants/grant-1/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if got := gotQuery["limit"]; len(got) != 1 || got[0] != "25" {
		t.Errorf("limit = %v", got)
	}
	if got := gotQuery["offset"]; len(got) != 1 || got[0] != "50" {
		t.Errorf("offset = %v", got)
	}
	if got := gotQuery["in"]; len(got) != 1 || got[0] != "Archive" {
		t.Errorf("in = %v", got)
	}

	if len(emails) != 1 {
		t.Fatalf("emails = %d, want 1", len(emails))
	}
	email := emails[0]
	if email.From != "Alice <alice@example.com>" {
		t.Errorf("from = %q", email.From)
	}
	if email.IsRead {
		t.Error("unread message mapped to read")
	}
	if email.BodyText != "Hi Bob" {
		t.Errorf("derived body text = %q", email.BodyText)
	}
}

func TestFetchInboxOmitsInFilter(t *testing.T) {
	var sawIn bool
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v3/grants/grant-1" {
			w.WriteHeader(http.StatusOK)
			return
		}
		sawIn = r.URL.Query().Has("in")
		writeJSON(t, w, messageListResponse{})
	})

	if _, err := p.Fetch(context.Background(), "INBOX", 10, 0); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if sawIn {
		t.Error("INBOX fetch sent an in filter")
	}
}

func TestMarkReadSendsUnreadToggle(t *testing.T) {
	var gotMethod string
	var gotBody updateMessageRequest

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v3/grants/grant-1" {
			w.WriteHeader(http.StatusOK)
			return
		}
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(t, w, messageResponse{})
	})

	if err := p.MarkRead(context.Background(), "msg-1", true); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if gotBody.Unread {
		t.Error("MarkRead(read=true) sent unread=true")
	}
}

func TestAttachmentNeedsBothCalls(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/grants/grant-1":
			w.WriteHeader(http.StatusOK)
		case "/v3/grants/grant-1/attachments/att-1":
			if r.URL.Query().Get("message_id") != "msg-1" {
				t.Errorf("metadata call missing message_id, query %v", r.URL.Query())
			}
			writeJSON(t, w, attachmentResponse{Data: wireAttachment{
				ID:          "att-1",
				Filename:    "notes.txt",
				ContentType: "text/plain",
				Size:        5,
			}})
		case "/v3/grants/grant-1/attachments/att-1/download":
			_, _ = w.Write([]byte("notes"))
		default:
			http.NotFound(w, r)
		}
	})

	att, err := p.Attachment(context.Background(), "msg-1", "att-1")
	if err != nil {
		t.Fatalf("Attachment: %v", err)
	}
	if att == nil {
		t.Fatal("Attachment returned nil")
	}
	if att.Filename != "notes.txt" || string(att.Data) != "notes" {
		t.Errorf("attachment = %+v", att)
	}
}

func TestAttachmentFailsWhenDownloadFails(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/grants/grant-1":
			w.WriteHeader(http.StatusOK)
		case "/v3/grants/grant-1/attachments/att-1":
			writeJSON(t, w, attachmentResponse{Data: wireAttachment{ID: "att-1"}})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	if _, err := p.Attachment(context.Background(), "msg-1", "att-1"); !provider.IsTransient(err) {
		t.Errorf("err = %v, want TransientError when download fails", err)
	}
}

func TestSearchSendsFreeTextQuery(t *testing.T) {
	var gotQuery map[string][]string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v3/grants/grant-1" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.URL.Path != "/v3/grants/grant-1/messages/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		writeJSON(t, w, messageListResponse{})
	})

	if _, err := p.Search(context.Background(), "invoice", "Sent", 10); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := gotQuery["q"]; len(got) != 1 || got[0] != "invoice" {
		t.Errorf("q = %v", got)
	}
	if got := gotQuery["in"]; len(got) != 1 || got[0] != "Sent" {
		t.Errorf("in = %v", got)
	}
}

func TestMidSessionUnauthorizedBecomesConnectError(t *testing.T) {
	first := true
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v3/grants/grant-1" && first {
			first = false
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := p.Fetch(context.Background(), "INBOX", 10, 0)
	if !provider.IsConnectError(err) {
		t.Fatalf("err = %v, want ConnectError on 401", err)
	}
}
