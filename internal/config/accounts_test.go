package config

import (
	"errors"
	"testing"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
)

func TestAccountStoreAddAssignsIDs(t *testing.T) {
	store, err := OpenAccountStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenAccountStore: %v", err)
	}

	first, err := store.Add(model.Account{Provider: model.ProviderIMAP, Name: "Work"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	second, err := store.Add(model.Account{Provider: model.ProviderLocal, Name: "Local"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if first.ID != "account_1" || second.ID != "account_2" {
		t.Errorf("ids = %q, %q", first.ID, second.ID)
	}

	if _, err := store.Add(model.Account{ID: "account_1"}); !provider.IsValidation(err) {
		t.Errorf("duplicate id err = %v, want ValidationError", err)
	}
}

func TestAccountStorePersistsOrder(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenAccountStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a", "b", "c"} {
		if _, err := store.Add(model.Account{Name: name}); err != nil {
			t.Fatal(err)
		}
	}

	reopened, err := OpenAccountStore(dir)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	got := reopened.Accounts()
	if len(got) != 3 || got[0].Name != "a" || got[1].Name != "b" || got[2].Name != "c" {
		t.Errorf("accounts = %v, want insertion order", got)
	}
}

func TestAccountStoreUpdate(t *testing.T) {
	store, err := OpenAccountStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	acc, err := store.Add(model.Account{Name: "old"})
	if err != nil {
		t.Fatal(err)
	}

	acc.Name = "new"
	if err := store.Update(acc); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := store.Account(acc.ID); got == nil || got.Name != "new" {
		t.Errorf("Account = %v", got)
	}

	if err := store.Update(model.Account{ID: "missing"}); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("Update(missing) err = %v, want ErrNotFound", err)
	}
}

func TestAccountStoreRemoveReusesID(t *testing.T) {
	store, err := OpenAccountStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	first, _ := store.Add(model.Account{Name: "a"})
	if _, err := store.Add(model.Account{Name: "b"}); err != nil {
		t.Fatal(err)
	}

	removed, err := store.Remove(first.ID)
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if store.Account(first.ID) != nil {
		t.Error("removed account still present")
	}

	replacement, err := store.Add(model.Account{Name: "c"})
	if err != nil {
		t.Fatal(err)
	}
	if replacement.ID != "account_1" {
		t.Errorf("replacement id = %q, want the freed account_1", replacement.ID)
	}

	removed, err = store.Remove("missing")
	if err != nil || removed {
		t.Errorf("Remove(missing) = %v, %v", removed, err)
	}
}
