package localstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
)

func TestRegistryCreate(t *testing.T) {
	dir := t.TempDir()
	reg, err := OpenRegistry(dir)
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}

	account, err := reg.Create("alice", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if account.Email != "alice@local" {
		t.Errorf("address = %q, want alice@local (domain defaults)", account.Email)
	}
	if account.Provider != model.ProviderLocal {
		t.Errorf("provider = %q", account.Provider)
	}
	if account.StorageDir != dir {
		t.Errorf("storage dir = %q, want %q", account.StorageDir, dir)
	}

	// Creation materializes the mailbox document: the address is
	// routable right away.
	if !MailboxExists(dir, "alice@local") {
		t.Error("mailbox document not created")
	}
	if !reg.Exists("alice@local") {
		t.Error("Exists = false for a created address")
	}
}

func TestRegistryCreateValidation(t *testing.T) {
	reg, err := OpenRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}

	cases := []struct {
		name      string
		localPart string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"contains at sign", "alice@local"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Create(tc.localPart, "local")
			if !provider.IsValidation(err) {
				t.Errorf("Create(%q) err = %v, want ValidationError", tc.localPart, err)
			}
		})
	}

	if _, err := reg.Create("bob", "local"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := reg.Create("bob", "local"); !provider.IsValidation(err) {
		t.Errorf("duplicate Create err = %v, want ValidationError", err)
	}
}

func TestRegistryPersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	reg, err := OpenRegistry(dir)
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	if _, err := reg.Create("alice", "local"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Create("bob", "local"); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenRegistry(dir)
	if err != nil {
		t.Fatalf("reopening registry: %v", err)
	}
	got := reopened.Addresses()
	if len(got) != 2 || got[0] != "alice@local" || got[1] != "bob@local" {
		t.Errorf("addresses = %v, want creation order preserved", got)
	}
}

func TestRegistryRemove(t *testing.T) {
	dir := t.TempDir()
	reg, err := OpenRegistry(dir)
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	if _, err := reg.Create("alice", "local"); err != nil {
		t.Fatal(err)
	}

	removed, err := reg.Remove("alice@local")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if reg.Exists("alice@local") {
		t.Error("address still registered after removal")
	}
	if MailboxExists(dir, "alice@local") {
		t.Error("mailbox document survives removal")
	}

	removed, err = reg.Remove("alice@local")
	if err != nil || removed {
		t.Errorf("second Remove = %v, %v, want false without error", removed, err)
	}
}

func TestRegistryRemoveKeepsEntryOnPersistFailure(t *testing.T) {
	dir := t.TempDir()
	reg, err := OpenRegistry(dir)
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	if _, err := reg.Create("alice", "local"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Create("bob", "local"); err != nil {
		t.Fatal(err)
	}

	// Point the registry under a regular file so the rewrite fails.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	reg.storageDir = filepath.Join(blocker, "nested")

	removed, err := reg.Remove("alice@local")
	if err == nil {
		t.Fatal("Remove succeeded despite unwritable registry")
	}
	if !removed {
		t.Error("Remove = false for a registered address")
	}
	if !reg.Exists("alice@local") {
		t.Error("entry dropped from memory after a failed rewrite")
	}
	got := reg.Addresses()
	if len(got) != 2 || got[0] != "alice@local" || got[1] != "bob@local" {
		t.Errorf("addresses = %v, want both entries in creation order", got)
	}

	// Disk never saw the removal either.
	reopened, err := OpenRegistry(dir)
	if err != nil {
		t.Fatalf("reopening registry: %v", err)
	}
	if !reopened.Exists("alice@local") {
		t.Error("entry missing on disk after a failed rewrite")
	}
}

func TestMailboxPathEscapesAddress(t *testing.T) {
	dir := t.TempDir()
	path := MailboxPath(dir, "alice@local")
	if got := MailboxPath(dir, "alice@local"); got != path {
		t.Errorf("MailboxPath not stable: %q vs %q", got, path)
	}

	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("writing %q: %v", path, err)
	}
	if !MailboxExists(dir, "alice@local") {
		t.Error("MailboxExists = false for a materialized document")
	}
	if MailboxExists(dir, "bob@local") {
		t.Error("MailboxExists = true for an absent document")
	}
}
