// Package localstore implements the provider contract over
// filesystem-backed mailboxes and routes mail between the addresses it
// controls without a network hop.
package localstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
	"github.com/nvhoang/maildeck/internal/relay"
)

// canonicalFolders are always reported by Folders, even when empty.
var canonicalFolders = []string{"INBOX", "Sent", "Drafts", "Trash"}

// trashFolder receives soft-deleted messages. Records are never
// physically removed by Delete.
const trashFolder = "Trash"

// sentFolder receives the sender's copy of every outgoing message.
const sentFolder = "Sent"

// Provider is the local backend variant: a self-delivering mail store.
// The mailbox document is loaded once at construction; every mutation
// is written through to disk immediately.
type Provider struct {
	address    string
	storageDir string
	relay      *relay.Client
	relayCfg   relay.Config
	log        *logrus.Logger

	mu sync.Mutex
	mb *mailbox
}

// New creates a provider for the account's address, loading its
// mailbox document from the account's storage directory.
func New(account model.Account, log *logrus.Logger) (*Provider, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	relayCfg := relay.FromAccount(account)
	mb, err := openMailbox(MailboxPath(account.StorageDir, account.Email))
	if err != nil {
		return nil, err
	}

	return &Provider{
		address:    account.Email,
		storageDir: account.StorageDir,
		relay:      relay.New(relayCfg),
		relayCfg:   relayCfg,
		log:        log,
		mb:         mb,
	}, nil
}

// Connect always succeeds: the store is local.
func (p *Provider) Connect(_ context.Context) error { return nil }

// Disconnect is a no-op; every mutation is already persisted.
func (p *Provider) Disconnect(_ context.Context) error { return nil }

// Fetch filters by folder, sorts newest first, and returns the slice
// [offset : offset+limit].
func (p *Provider) Fetch(_ context.Context, folder string, limit, offset int) ([]model.Email, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var emails []model.Email
	for _, email := range p.mb.emails {
		if email.Folder == folder {
			emails = append(emails, email)
		}
	}

	sortNewestFirst(emails)

	if offset >= len(emails) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(emails) {
		end = len(emails)
	}
	return emails[offset:end], nil
}

// Get returns the message by id, or nil when it is not stored.
func (p *Provider) Get(_ context.Context, id string) (*model.Email, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	email, ok := p.mb.emails[id]
	if !ok {
		return nil, nil
	}
	return &email, nil
}

// Send builds the outgoing message, relays it to external recipients
// on a best-effort basis, stores the sender's copy in Sent, and
// delivers a clone with a fresh id into the INBOX of every local
// recipient. Whether a recipient is local is decided by the presence
// of a mailbox document on disk, re-checked on every call.
func (p *Provider) Send(_ context.Context, msg provider.OutgoingMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	email := model.Email{
		ID:          uuid.NewString(),
		Subject:     msg.Subject,
		From:        p.address,
		To:          msg.To,
		Cc:          msg.Cc,
		Bcc:         msg.Bcc,
		Date:        time.Now(),
		BodyText:    msg.Body,
		BodyHTML:    msg.HTMLBody,
		Attachments: msg.Attachments,
		Folder:      sentFolder,
	}

	var external []string
	var local []string
	for _, addr := range msg.To {
		if MailboxExists(p.storageDir, addr) {
			local = append(local, addr)
		} else {
			external = append(external, addr)
		}
	}

	// Relay failures are logged and do not abort the send; local
	// persistence still proceeds.
	if len(external) > 0 && p.relayCfg.Configured() {
		relayMsg := msg
		relayMsg.To = external
		if err := p.relay.Send(p.address, relayMsg); err != nil {
			p.log.WithError(err).WithField("recipients", external).
				Warn("relaying to external recipients failed")
		}
	}

	p.mb.put(email)
	if err := p.mb.persist(); err != nil {
		return err
	}

	for _, addr := range local {
		if err := p.deliverLocal(addr, email); err != nil {
			return err
		}
	}
	return nil
}

// deliverLocal appends a copy of the message, with a new unique id and
// folder forced to INBOX, to the recipient's mailbox document.
func (p *Provider) deliverLocal(address string, email model.Email) error {
	rcptBox, err := openMailbox(MailboxPath(p.storageDir, address))
	if err != nil {
		return err
	}

	delivered := email
	delivered.ID = uuid.NewString()
	delivered.Folder = model.DefaultFolder
	delivered.IsRead = false

	rcptBox.put(delivered)
	return rcptBox.persist()
}

// Folders returns the four canonical folders plus any other folder
// observed in stored messages, each with counts recomputed from the
// store.
func (p *Provider) Folders(_ context.Context) ([]model.Folder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	type counts struct{ unread, total int }
	byName := make(map[string]counts)
	for _, email := range p.mb.emails {
		c := byName[email.Folder]
		c.total++
		if !email.IsRead {
			c.unread++
		}
		byName[email.Folder] = c
	}

	folders := make([]model.Folder, 0, len(canonicalFolders)+len(byName))
	seen := make(map[string]bool, len(canonicalFolders))
	for _, name := range canonicalFolders {
		c := byName[name]
		folders = append(folders, model.NewFolder(name, "", c.unread, c.total))
		seen[name] = true
	}

	var extras []string
	for name := range byName {
		if !seen[name] {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	for _, name := range extras {
		c := byName[name]
		folders = append(folders, model.NewFolder(name, "", c.unread, c.total))
	}
	return folders, nil
}

// MarkRead sets the read flag and writes the document through
// immediately.
func (p *Provider) MarkRead(_ context.Context, id string, read bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	email, ok := p.mb.emails[id]
	if !ok {
		return provider.ErrNotFound
	}
	email.IsRead = read
	p.mb.emails[id] = email
	return p.mb.persist()
}

// Delete soft-deletes: the message's folder becomes Trash and the
// record stays in the store.
func (p *Provider) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	email, ok := p.mb.emails[id]
	if !ok {
		return provider.ErrNotFound
	}
	email.Folder = trashFolder
	p.mb.emails[id] = email
	return p.mb.persist()
}

// Search matches the query case-insensitively against subject, body
// text, and from-address only. A message whose only body is HTML with
// no derived text is not searchable. Results are newest first, capped
// at limit, optionally scoped to one folder.
func (p *Provider) Search(_ context.Context, query, folder string, limit int) ([]model.Email, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	needle := strings.ToLower(query)

	var results []model.Email
	for _, email := range p.mb.emails {
		if folder != "" && email.Folder != folder {
			continue
		}
		if strings.Contains(strings.ToLower(email.Subject), needle) ||
			strings.Contains(strings.ToLower(email.BodyText), needle) ||
			strings.Contains(strings.ToLower(email.From), needle) {
			results = append(results, email)
		}
	}

	sortNewestFirst(results)

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Attachment returns the stored attachment by id, payload included.
func (p *Provider) Attachment(ctx context.Context, emailID, attachmentID string) (*model.Attachment, error) {
	email, err := p.Get(ctx, emailID)
	if err != nil || email == nil {
		return nil, err
	}
	for i := range email.Attachments {
		if email.Attachments[i].ID == attachmentID {
			return &email.Attachments[i], nil
		}
	}
	return nil, nil
}

// Receive stores an inbound message into this mailbox's INBOX. It is
// the entry point used when another component delivers to this
// address directly.
func (p *Provider) Receive(email model.Email) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	email.Folder = model.DefaultFolder
	p.mb.put(email)
	return p.mb.persist()
}

func sortNewestFirst(emails []model.Email) {
	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].Date.After(emails[j].Date)
	})
}
