package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/nvhoang/maildeck/internal/model"
)

// fakeProvider records lifecycle calls; every other operation is
// unreachable in these tests.
type fakeProvider struct {
	Provider

	connectErr   error
	connected    bool
	disconnected bool
}

func (f *fakeProvider) Connect(context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeProvider) Disconnect(context.Context) error {
	f.disconnected = true
	return nil
}

func TestManagerUseConnectsAndNotifies(t *testing.T) {
	fake := &fakeProvider{}
	m := NewManager(func(model.Account) (Provider, error) { return fake, nil }, nil)

	var notified []string
	m.OnSwitch(func(_ Provider, acc model.Account) {
		notified = append(notified, acc.ID)
	})

	account := model.Account{ID: "account_1", Provider: model.ProviderLocal}
	p, err := m.Use(context.Background(), account)
	if err != nil {
		t.Fatalf("Use: %v", err)
	}
	if p != Provider(fake) || !fake.connected {
		t.Error("returned provider was not constructed and connected")
	}
	if m.Current() != Provider(fake) {
		t.Error("Current does not return the active provider")
	}
	if got := m.Account(); got == nil || got.ID != "account_1" {
		t.Errorf("Account = %v", got)
	}
	if len(notified) != 1 || notified[0] != "account_1" {
		t.Errorf("listeners notified with %v", notified)
	}
}

func TestManagerUseDisconnectsPrevious(t *testing.T) {
	first := &fakeProvider{}
	second := &fakeProvider{}
	providers := []*fakeProvider{first, second}
	m := NewManager(func(model.Account) (Provider, error) {
		p := providers[0]
		providers = providers[1:]
		return p, nil
	}, nil)

	ctx := context.Background()
	if _, err := m.Use(ctx, model.Account{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Use(ctx, model.Account{ID: "b"}); err != nil {
		t.Fatal(err)
	}

	if !first.disconnected {
		t.Error("previous provider left connected after switch")
	}
	if !second.connected {
		t.Error("replacement never connected")
	}
}

func TestManagerUseFailedConnect(t *testing.T) {
	wantErr := errors.New("auth refused")
	m := NewManager(func(model.Account) (Provider, error) {
		return &fakeProvider{connectErr: wantErr}, nil
	}, nil)

	_, err := m.Use(context.Background(), model.Account{ID: "a"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Use err = %v, want %v", err, wantErr)
	}
	if m.Current() != nil || m.Account() != nil {
		t.Error("failed switch left partial state behind")
	}
}

func TestManagerClose(t *testing.T) {
	fake := &fakeProvider{}
	m := NewManager(func(model.Account) (Provider, error) { return fake, nil }, nil)

	ctx := context.Background()
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close with nothing active: %v", err)
	}

	if _, err := m.Use(ctx, model.Account{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fake.disconnected {
		t.Error("Close did not disconnect the active provider")
	}
	if m.Current() != nil {
		t.Error("Close left a current provider")
	}
}
