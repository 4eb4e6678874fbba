// Package imapmail implements the provider contract over a stateful
// IMAP session, with sends relayed over SMTP submission.
package imapmail

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/sirupsen/logrus"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
	"github.com/nvhoang/maildeck/internal/relay"
)

// DefaultPort is the standard IMAP-over-TLS retrieval port.
const DefaultPort = 993

// Provider is the mailbox-protocol backend variant. A session moves
// through three states: disconnected, connected, and folder-selected.
// Fetch and search transition the selection; flag and delete
// operations require a selected folder and fail fast otherwise. The
// session is single-flight: one operation at a time.
type Provider struct {
	account model.Account
	relay   *relay.Client
	log     *logrus.Logger

	mu       sync.Mutex
	client   *imapclient.Client // nil while disconnected
	selected string             // "" until a folder is selected
}

// New creates a disconnected provider for the given account.
func New(account model.Account, log *logrus.Logger) *Provider {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Provider{
		account: account,
		relay:   relay.New(relay.FromAccount(account)),
		log:     log,
	}
}

func (p *Provider) addr() string {
	port := p.account.IMAPPort
	if port == 0 {
		port = DefaultPort
	}
	return p.account.IMAPHost + ":" + strconv.Itoa(port)
}

// Connect dials the server over TLS and authenticates. On failure the
// provider stays disconnected.
func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return nil
	}

	client, err := imapclient.DialTLS(p.addr(), nil)
	if err != nil {
		return &provider.ConnectError{Provider: model.ProviderIMAP, Err: err}
	}

	if err := client.Login(p.account.Email, p.account.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return &provider.ConnectError{
			Provider: model.ProviderIMAP,
			Err:      fmt.Errorf("login %s: %w", p.account.Email, err),
		}
	}

	p.client = client
	p.selected = ""
	return nil
}

// Disconnect logs out and drops the session.
func (p *Provider) Disconnect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	err := p.client.Logout().Wait()
	p.client = nil
	p.selected = ""
	return err
}

// selectFolder transitions the session to the given folder. Selecting
// the already-selected folder is a no-op; anything in flight against
// the previous folder is invalidated by the transition.
func (p *Provider) selectFolder(folder string) error {
	if p.client == nil {
		return provider.ErrNotConnected
	}
	if p.selected == folder {
		return nil
	}
	if _, err := p.client.Select(folder, nil).Wait(); err != nil {
		p.selected = ""
		return &provider.TransientError{
			Op:  "selecting " + folder,
			Err: err,
		}
	}
	p.selected = folder
	return nil
}

// Fetch selects folder, lists all message UIDs, and returns the
// newest-first slice [offset : offset+limit] as normalized messages.
// Newest-first ordering comes from reversing the server's ascending
// UID order.
func (p *Provider) Fetch(_ context.Context, folder string, limit, offset int) ([]model.Email, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.selectFolder(folder); err != nil {
		return nil, err
	}

	searchData, err := p.client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, &provider.TransientError{Op: "searching " + folder, Err: err}
	}

	uids := searchData.AllUIDs()
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })

	if offset >= len(uids) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(uids) {
		end = len(uids)
	}
	uids = uids[offset:end]

	return p.fetchMessages(uids, folder)
}

// Get fetches a single message by UID. The lookup is scoped to INBOX,
// matching where the id was issued.
func (p *Provider) Get(_ context.Context, id string) (*model.Email, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}
	if err := p.selectFolder(model.DefaultFolder); err != nil {
		return nil, err
	}

	emails, err := p.fetchMessages([]imap.UID{uid}, model.DefaultFolder)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, nil
	}
	return &emails[0], nil
}

// Send relays the message through the configured SMTP submission
// server.
func (p *Provider) Send(_ context.Context, msg provider.OutgoingMessage) error {
	if err := p.relay.Send(p.account.Email, msg); err != nil {
		return &provider.TransientError{Op: "sending message", Err: err}
	}
	return nil
}

// Folders lists the server's mailboxes with unread/total counts where
// the server reports them.
func (p *Provider) Folders(_ context.Context) ([]model.Folder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil, provider.ErrNotConnected
	}

	listCmd := p.client.List("", "*", &imap.ListOptions{
		ReturnStatus: &imap.StatusOptions{
			NumMessages: true,
			NumUnseen:   true,
		},
	})
	mailboxes, err := listCmd.Collect()
	if err != nil {
		return nil, &provider.TransientError{Op: "listing folders", Err: err}
	}

	folders := make([]model.Folder, 0, len(mailboxes))
	for _, mb := range mailboxes {
		var unread, total int
		if mb.Status != nil {
			if mb.Status.NumUnseen != nil {
				unread = int(*mb.Status.NumUnseen)
			}
			if mb.Status.NumMessages != nil {
				total = int(*mb.Status.NumMessages)
			}
		}
		folders = append(folders, model.NewFolder(mb.Mailbox, "", unread, total))
	}
	return folders, nil
}

// MarkRead sets or clears the \Seen flag. Requires a selected folder.
func (p *Provider) MarkRead(_ context.Context, id string, read bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	uid, err := parseUID(id)
	if err != nil {
		return err
	}
	if err := p.requireSelected(); err != nil {
		return err
	}

	op := imap.StoreFlagsAdd
	if !read {
		op = imap.StoreFlagsDel
	}
	storeCmd := p.client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return &provider.TransientError{Op: "storing flags", Err: err}
	}
	return nil
}

// Delete flags the message \Deleted and expunges. Unlike the local
// store's soft delete, this purge is irreversible.
func (p *Provider) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	uid, err := parseUID(id)
	if err != nil {
		return err
	}
	if err := p.requireSelected(); err != nil {
		return err
	}

	storeCmd := p.client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return &provider.TransientError{Op: "flagging deleted", Err: err}
	}

	if err := p.client.Expunge().Close(); err != nil {
		return &provider.TransientError{Op: "expunging", Err: err}
	}
	return nil
}

// Search issues `OR SUBJECT <q> BODY <q>` against the given folder
// (INBOX when empty) and returns up to limit messages, newest first.
func (p *Provider) Search(_ context.Context, query, folder string, limit int) ([]model.Email, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if folder == "" {
		folder = model.DefaultFolder
	}
	if err := p.selectFolder(folder); err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{
		Or: [][2]imap.SearchCriteria{{
			{Header: []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: query}}},
			{Body: []string{query}},
		}},
	}

	searchData, err := p.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &provider.TransientError{Op: "searching", Err: err}
	}

	uids := searchData.AllUIDs()
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	return p.fetchMessages(uids, folder)
}

// Attachment returns the attachment by its synthesized id. IMAP
// payloads arrive inline with the message, so no extra download is
// needed.
func (p *Provider) Attachment(ctx context.Context, emailID, attachmentID string) (*model.Attachment, error) {
	email, err := p.Get(ctx, emailID)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, nil
	}
	for i := range email.Attachments {
		if email.Attachments[i].ID == attachmentID {
			return &email.Attachments[i], nil
		}
	}
	return nil, nil
}

func (p *Provider) requireSelected() error {
	if p.client == nil {
		return provider.ErrNotConnected
	}
	if p.selected == "" {
		return provider.ErrNoFolderSelected
	}
	return nil
}

// fetchMessages retrieves full bodies for the given UIDs in order and
// normalizes each. Callers hold the session lock.
func (p *Provider) fetchMessages(uids []imap.UID, folder string) ([]model.Email, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	byUID := make(map[imap.UID]model.Email, len(uids))

	fetchCmd := p.client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		raw := buf.FindBodySection(bodySection)
		id := strconv.FormatUint(uint64(buf.UID), 10)

		email := normalize(raw, id)
		email.Folder = folder
		for _, flag := range buf.Flags {
			switch flag {
			case imap.FlagSeen:
				email.IsRead = true
			case imap.FlagFlagged:
				email.IsStarred = true
			}
		}
		byUID[buf.UID] = email
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, &provider.TransientError{Op: "fetching messages", Err: err}
	}

	// Preserve the requested order; the server may answer out of
	// order.
	emails := make([]model.Email, 0, len(uids))
	for _, uid := range uids {
		if email, ok := byUID[uid]; ok {
			emails = append(emails, email)
		}
	}
	return emails, nil
}

func parseUID(id string) (imap.UID, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, &provider.ValidationError{
			Field:   "message id",
			Message: fmt.Sprintf("%q is not a message UID", id),
		}
	}
	return imap.UID(uid), nil
}
