package imapmail

import (
	"context"
	"errors"
	"testing"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
)

func testProvider() *Provider {
	return New(model.Account{
		ID:       "account_1",
		Provider: model.ProviderIMAP,
		Email:    "user@example.com",
		Password: "secret",
		IMAPHost: "imap.example.com",
	}, nil)
}

func TestOperationsFailFastWhenDisconnected(t *testing.T) {
	p := testProvider()
	ctx := context.Background()

	if _, err := p.Fetch(ctx, "INBOX", 10, 0); !errors.Is(err, provider.ErrNotConnected) {
		t.Errorf("Fetch while disconnected: err = %v, want ErrNotConnected", err)
	}
	if _, err := p.Search(ctx, "q", "", 10); !errors.Is(err, provider.ErrNotConnected) {
		t.Errorf("Search while disconnected: err = %v, want ErrNotConnected", err)
	}
	if _, err := p.Folders(ctx); !errors.Is(err, provider.ErrNotConnected) {
		t.Errorf("Folders while disconnected: err = %v, want ErrNotConnected", err)
	}
	if err := p.MarkRead(ctx, "5", true); !errors.Is(err, provider.ErrNotConnected) {
		t.Errorf("MarkRead while disconnected: err = %v, want ErrNotConnected", err)
	}
	if err := p.Delete(ctx, "5"); !errors.Is(err, provider.ErrNotConnected) {
		t.Errorf("Delete while disconnected: err = %v, want ErrNotConnected", err)
	}
}

func TestDisconnectWhenAlreadyDisconnected(t *testing.T) {
	p := testProvider()
	if err := p.Disconnect(context.Background()); err != nil {
		t.Errorf("Disconnect on fresh provider: %v", err)
	}
}

func TestParseUID(t *testing.T) {
	if _, err := parseUID("not-a-uid"); !provider.IsValidation(err) {
		t.Errorf("parseUID(not-a-uid) err = %v, want ValidationError", err)
	}
	uid, err := parseUID("42")
	if err != nil || uid != 42 {
		t.Errorf("parseUID(42) = %v, %v", uid, err)
	}
}

func TestDefaultAddr(t *testing.T) {
	p := testProvider()
	if got := p.addr(); got != "imap.example.com:993" {
		t.Errorf("addr = %q, want default retrieval port 993", got)
	}
}
