// Package config persists the account list alongside the application
// configuration. Accounts are kept as an ordered JSON array so the
// account switcher shows them in the order they were added.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
)

const accountsFile = "accounts.json"

// AccountStore reads and writes the accounts file. Secrets may be
// stored inline or left blank and resolved from the keyring by the
// caller.
type AccountStore struct {
	dir      string
	accounts []model.Account
}

// OpenAccountStore loads the accounts file from the config directory.
// A missing file yields an empty store.
func OpenAccountStore(dir string) (*AccountStore, error) {
	s := &AccountStore{dir: dir}

	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, &provider.PersistenceError{Path: s.path(), Err: err}
	}
	if err := json.Unmarshal(data, &s.accounts); err != nil {
		return nil, &provider.PersistenceError{Path: s.path(), Err: err}
	}
	return s, nil
}

func (s *AccountStore) path() string {
	return filepath.Join(s.dir, accountsFile)
}

// Accounts returns all accounts in the order they were added.
func (s *AccountStore) Accounts() []model.Account {
	out := make([]model.Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// Account returns the account with the given id, or nil.
func (s *AccountStore) Account(id string) *model.Account {
	for _, acc := range s.accounts {
		if acc.ID == id {
			found := acc
			return &found
		}
	}
	return nil
}

// Add appends an account, assigning the next free account_<n> id when
// none is set, and saves the file.
func (s *AccountStore) Add(account model.Account) (model.Account, error) {
	if account.ID == "" {
		account.ID = s.nextID()
	}
	if s.Account(account.ID) != nil {
		return model.Account{}, &provider.ValidationError{
			Field:   "id",
			Message: account.ID + " already exists",
		}
	}

	s.accounts = append(s.accounts, account)
	if err := s.save(); err != nil {
		return model.Account{}, err
	}
	return account, nil
}

// Update replaces the account with a matching id.
func (s *AccountStore) Update(account model.Account) error {
	for i, acc := range s.accounts {
		if acc.ID == account.ID {
			s.accounts[i] = account
			return s.save()
		}
	}
	return provider.ErrNotFound
}

// Remove deletes the account with the given id. It reports whether the
// account existed.
func (s *AccountStore) Remove(id string) (bool, error) {
	kept := s.accounts[:0]
	removed := false
	for _, acc := range s.accounts {
		if acc.ID == id {
			removed = true
			continue
		}
		kept = append(kept, acc)
	}
	if !removed {
		return false, nil
	}
	s.accounts = kept
	return true, s.save()
}

// nextID returns the lowest account_<n> not already taken. Removal can
// free an id; ordering in the file is what matters, not id density.
func (s *AccountStore) nextID() string {
	taken := make(map[string]bool, len(s.accounts))
	for _, acc := range s.accounts {
		taken[acc.ID] = true
	}
	for n := 1; ; n++ {
		id := fmt.Sprintf("account_%d", n)
		if !taken[id] {
			return id
		}
	}
}

// save writes the accounts file atomically, the same temp-then-rename
// discipline the mail store uses.
func (s *AccountStore) save() error {
	data, err := json.MarshalIndent(s.accounts, "", "  ")
	if err != nil {
		return &provider.PersistenceError{Path: s.path(), Err: err}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &provider.PersistenceError{Path: s.path(), Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, ".accounts-*.json")
	if err != nil {
		return &provider.PersistenceError{Path: s.path(), Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &provider.PersistenceError{Path: s.path(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &provider.PersistenceError{Path: s.path(), Err: err}
	}
	if err := os.Rename(tmpName, s.path()); err != nil {
		os.Remove(tmpName)
		return &provider.PersistenceError{Path: s.path(), Err: err}
	}
	return nil
}
