package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
)

// MailboxPath returns the on-disk document path for an address. The
// filename is derived deterministically by replacing "@" with "_at_".
func MailboxPath(dir, address string) string {
	return filepath.Join(dir, strings.ReplaceAll(address, "@", "_at_")+".json")
}

// MailboxExists reports whether a mailbox document exists on disk for
// the address. This is the router's sole local-vs-external decision
// and is re-evaluated on every send, never cached: addresses can be
// created or removed at any time.
func MailboxExists(dir, address string) bool {
	_, err := os.Stat(MailboxPath(dir, address))
	return err == nil
}

// mailbox is one address's persisted message map. Every mutation
// rewrites the whole document atomically (temp file, then rename).
type mailbox struct {
	path   string
	emails map[string]model.Email // keyed by message id
}

// openMailbox loads the document at path if present, else starts
// empty. A document that cannot be parsed also starts empty rather
// than blocking the mailbox.
func openMailbox(path string) (*mailbox, error) {
	mb := &mailbox{
		path:   path,
		emails: make(map[string]model.Email),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return mb, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading mailbox %s: %w", path, err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &mb.emails); err != nil {
			mb.emails = make(map[string]model.Email)
		}
	}
	return mb, nil
}

// persist rewrites the entire document. The write goes to a temp file
// in the same directory and is renamed into place so a crash never
// leaves a half-written mailbox. Failures surface as
// PersistenceError; they are never swallowed.
func (mb *mailbox) persist() error {
	data, err := json.MarshalIndent(mb.emails, "", "  ")
	if err != nil {
		return &provider.PersistenceError{Path: mb.path, Err: err}
	}

	dir := filepath.Dir(mb.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &provider.PersistenceError{Path: mb.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".mailbox-*.json")
	if err != nil {
		return &provider.PersistenceError{Path: mb.path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &provider.PersistenceError{Path: mb.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &provider.PersistenceError{Path: mb.path, Err: err}
	}

	if err := os.Rename(tmpName, mb.path); err != nil {
		os.Remove(tmpName)
		return &provider.PersistenceError{Path: mb.path, Err: err}
	}
	return nil
}

// put stores a message under its id. The caller persists.
func (mb *mailbox) put(email model.Email) {
	if email.Folder == "" {
		email.Folder = model.DefaultFolder
	}
	mb.emails[email.ID] = email
}
