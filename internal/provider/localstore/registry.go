package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
)

// registryFile lists the local addresses this store owns.
const registryFile = "addresses.json"

// AddressInfo is one registry entry.
type AddressInfo struct {
	Email     string    `json:"email_address"`
	LocalPart string    `json:"local_part"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry manages the set of local addresses. Creating an address
// also creates its empty mailbox document so the delivery router's
// existence test holds from that moment on.
type Registry struct {
	storageDir string
	addresses  []AddressInfo
}

// OpenRegistry loads the address list from the storage directory,
// starting empty when no registry exists yet.
func OpenRegistry(storageDir string) (*Registry, error) {
	r := &Registry{storageDir: storageDir}

	data, err := os.ReadFile(r.path())
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading address registry: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.addresses); err != nil {
			return nil, fmt.Errorf("parsing address registry: %w", err)
		}
	}
	return r, nil
}

func (r *Registry) path() string {
	return filepath.Join(r.storageDir, registryFile)
}

// Create registers a new local address and its empty mailbox. The
// local part must be non-empty and free of "@", and the address must
// not already exist; invalid input is rejected before any mutation.
func (r *Registry) Create(localPart, domain string) (model.Account, error) {
	localPart = strings.TrimSpace(localPart)
	if domain == "" {
		domain = "local"
	}

	if localPart == "" {
		return model.Account{}, &provider.ValidationError{
			Field:   "local part",
			Message: "must not be empty",
		}
	}
	if strings.Contains(localPart, "@") {
		return model.Account{}, &provider.ValidationError{
			Field:   "local part",
			Message: "must not contain @",
		}
	}

	address := localPart + "@" + domain
	if r.Exists(address) {
		return model.Account{}, &provider.ValidationError{
			Field:   "address",
			Message: address + " already exists",
		}
	}

	r.addresses = append(r.addresses, AddressInfo{
		Email:     address,
		LocalPart: localPart,
		Domain:    domain,
		CreatedAt: time.Now(),
	})
	if err := r.save(); err != nil {
		return model.Account{}, err
	}

	// Materialize the mailbox document so the address is immediately
	// routable and reports the canonical folders.
	mb, err := openMailbox(MailboxPath(r.storageDir, address))
	if err != nil {
		return model.Account{}, err
	}
	if err := mb.persist(); err != nil {
		return model.Account{}, err
	}

	return model.Account{
		Provider:   model.ProviderLocal,
		Name:       address,
		Email:      address,
		StorageDir: r.storageDir,
	}, nil
}

// Exists reports whether the address is registered.
func (r *Registry) Exists(address string) bool {
	for _, info := range r.addresses {
		if info.Email == address {
			return true
		}
	}
	return false
}

// Addresses returns all registered addresses in creation order.
func (r *Registry) Addresses() []string {
	out := make([]string, 0, len(r.addresses))
	for _, info := range r.addresses {
		out = append(out, info.Email)
	}
	return out
}

// Remove deletes the address from the registry along with its mailbox
// document. It reports whether the address was registered. When the
// registry rewrite fails the entry is kept, in memory and on disk.
func (r *Registry) Remove(address string) (bool, error) {
	idx := -1
	for i, info := range r.addresses {
		if info.Email == address {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	prev := r.addresses
	kept := make([]AddressInfo, 0, len(prev)-1)
	kept = append(kept, prev[:idx]...)
	kept = append(kept, prev[idx+1:]...)
	r.addresses = kept

	if err := r.save(); err != nil {
		r.addresses = prev
		return true, err
	}
	if err := os.Remove(MailboxPath(r.storageDir, address)); err != nil && !os.IsNotExist(err) {
		return true, &provider.PersistenceError{
			Path: MailboxPath(r.storageDir, address),
			Err:  err,
		}
	}
	return true, nil
}

// save rewrites the registry atomically, like mailbox documents.
func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.addresses, "", "  ")
	if err != nil {
		return &provider.PersistenceError{Path: r.path(), Err: err}
	}
	if err := os.MkdirAll(r.storageDir, 0o755); err != nil {
		return &provider.PersistenceError{Path: r.path(), Err: err}
	}

	tmp, err := os.CreateTemp(r.storageDir, ".addresses-*.json")
	if err != nil {
		return &provider.PersistenceError{Path: r.path(), Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &provider.PersistenceError{Path: r.path(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &provider.PersistenceError{Path: r.path(), Err: err}
	}
	if err := os.Rename(tmpName, r.path()); err != nil {
		os.Remove(tmpName)
		return &provider.PersistenceError{Path: r.path(), Err: err}
	}
	return nil
}
