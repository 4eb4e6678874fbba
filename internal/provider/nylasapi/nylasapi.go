package nylasapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nvhoang/maildeck/internal/htmltext"
	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
)

// DefaultAPIURI is the public endpoint of the messaging API.
const DefaultAPIURI = "https://api.nylas.com"

// Provider is the cloud-API backend variant. All requests are scoped
// by the account's grant id; the session is stateless apart from the
// connected flag.
type Provider struct {
	account model.Account
	grantID string

	client    *client // nil while disconnected
	connected bool
}

// New creates a disconnected provider for the given account.
func New(account model.Account) *Provider {
	return &Provider{
		account: account,
		grantID: account.GrantID,
	}
}

func (p *Provider) grantPath(suffix string) string {
	return "/v3/grants/" + url.PathEscape(p.grantID) + suffix
}

// Connect validates the API key and grant with a cheap lookup. On
// failure the provider stays disconnected.
func (p *Provider) Connect(ctx context.Context) error {
	if p.account.APIKey == "" || p.grantID == "" {
		return &provider.ConnectError{
			Provider: model.ProviderNylas,
			Err:      errors.New("missing api key or grant id"),
		}
	}

	apiURI := p.account.APIURI
	if apiURI == "" {
		apiURI = DefaultAPIURI
	}
	c := newClient(apiURI, p.account.APIKey)

	if err := c.get(ctx, p.grantPath(""), nil, nil); err != nil {
		return &provider.ConnectError{Provider: model.ProviderNylas, Err: err}
	}

	p.client = c
	p.connected = true
	return nil
}

// Disconnect drops the client.
func (p *Provider) Disconnect(_ context.Context) error {
	p.client = nil
	p.connected = false
	return nil
}

// Fetch lists messages with limit/offset pagination, scoped to a
// folder via the "in" filter when one is named.
func (p *Provider) Fetch(ctx context.Context, folder string, limit, offset int) ([]model.Email, error) {
	if !p.connected {
		return nil, provider.ErrNotConnected
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	if folder != "" && folder != model.DefaultFolder {
		query.Set("in", folder)
	}

	var resp messageListResponse
	if err := p.client.get(ctx, p.grantPath("/messages"), query, &resp); err != nil {
		return nil, p.wrap("fetching messages", err)
	}

	emails := make([]model.Email, 0, len(resp.Data))
	for _, msg := range resp.Data {
		emails = append(emails, p.toEmail(msg))
	}
	return emails, nil
}

// Get returns a single message, or nil when the API reports 404.
func (p *Provider) Get(ctx context.Context, id string) (*model.Email, error) {
	if !p.connected {
		return nil, provider.ErrNotConnected
	}

	var resp messageResponse
	err := p.client.get(ctx, p.grantPath("/messages/"+url.PathEscape(id)), nil, &resp)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, p.wrap("getting message "+id, err)
	}

	email := p.toEmail(resp.Data)
	return &email, nil
}

// Send submits the message through the API. HTML wins over plain text
// because the API carries a single body field.
func (p *Provider) Send(ctx context.Context, msg provider.OutgoingMessage) error {
	if !p.connected {
		return provider.ErrNotConnected
	}

	body := msg.Body
	if msg.HTMLBody != "" {
		body = msg.HTMLBody
	}

	req := sendRequest{
		To:        toParticipants(msg.To),
		Cc:        toParticipants(msg.Cc),
		Bcc:       toParticipants(msg.Bcc),
		Subject:   msg.Subject,
		Body:      body,
		ReplyToID: msg.ReplyToID,
	}

	if err := p.client.post(ctx, p.grantPath("/messages/send"), req, nil); err != nil {
		return p.wrap("sending message", err)
	}
	return nil
}

// Folders lists the account's folders with server-side counts.
func (p *Provider) Folders(ctx context.Context) ([]model.Folder, error) {
	if !p.connected {
		return nil, provider.ErrNotConnected
	}

	var resp folderListResponse
	if err := p.client.get(ctx, p.grantPath("/folders"), nil, &resp); err != nil {
		return nil, p.wrap("listing folders", err)
	}

	folders := make([]model.Folder, 0, len(resp.Data))
	for _, f := range resp.Data {
		folder := model.NewFolder(f.Name, f.DisplayName, f.UnreadCount, f.TotalCount)
		folder.ID = f.ID
		folders = append(folders, folder)
	}
	return folders, nil
}

// MarkRead updates the message's unread flag.
func (p *Provider) MarkRead(ctx context.Context, id string, read bool) error {
	if !p.connected {
		return provider.ErrNotConnected
	}

	req := updateMessageRequest{Unread: !read}
	path := p.grantPath("/messages/" + url.PathEscape(id))
	if err := p.client.put(ctx, path, req, nil); err != nil {
		return p.wrap("updating message "+id, err)
	}
	return nil
}

// Delete destroys the message on the server.
func (p *Provider) Delete(ctx context.Context, id string) error {
	if !p.connected {
		return provider.ErrNotConnected
	}

	path := p.grantPath("/messages/" + url.PathEscape(id))
	if err := p.client.delete(ctx, path); err != nil {
		return p.wrap("deleting message "+id, err)
	}
	return nil
}

// Search runs a free-text query, optionally scoped to a folder.
func (p *Provider) Search(ctx context.Context, query, folder string, limit int) ([]model.Email, error) {
	if !p.connected {
		return nil, provider.ErrNotConnected
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	if folder != "" {
		params.Set("in", folder)
	}

	var resp messageListResponse
	if err := p.client.get(ctx, p.grantPath("/messages/search"), params, &resp); err != nil {
		return nil, p.wrap("searching messages", err)
	}

	emails := make([]model.Email, 0, len(resp.Data))
	for _, msg := range resp.Data {
		emails = append(emails, p.toEmail(msg))
	}
	return emails, nil
}

// Attachment retrieves an attachment in two calls: a metadata lookup
// followed by a separate binary download. Both must succeed.
func (p *Provider) Attachment(ctx context.Context, emailID, attachmentID string) (*model.Attachment, error) {
	if !p.connected {
		return nil, provider.ErrNotConnected
	}

	query := url.Values{}
	query.Set("message_id", emailID)

	var meta attachmentResponse
	metaPath := p.grantPath("/attachments/" + url.PathEscape(attachmentID))
	if err := p.client.get(ctx, metaPath, query, &meta); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, p.wrap("getting attachment metadata", err)
	}

	data, err := p.client.getRaw(ctx, metaPath+"/download", query)
	if err != nil {
		return nil, p.wrap("downloading attachment", err)
	}

	att := toAttachment(meta.Data)
	att.Data = data
	if att.Size == 0 {
		att.Size = int64(len(data))
	}
	return &att, nil
}

// wrap maps API failures onto the provider error taxonomy: a 401 means
// the grant or token is no longer valid, everything else is transient.
func (p *Provider) wrap(op string, err error) error {
	if isStatus(err, http.StatusUnauthorized) {
		p.connected = false
		p.client = nil
		return &provider.ConnectError{Provider: model.ProviderNylas, Err: err}
	}
	return &provider.TransientError{Op: op, Err: err}
}

func isStatus(err error, code int) bool {
	var se *statusError
	return errors.As(err, &se) && se.Code == code
}

// toEmail converts a wire message to the canonical shape. The API
// carries an HTML body; the plain-text fallback is derived so body
// text is never empty when a body exists.
func (p *Provider) toEmail(msg wireMessage) model.Email {
	rawData, _ := json.Marshal(msg)
	email := model.Email{
		ID:        msg.ID,
		Subject:   msg.Subject,
		Date:      time.Unix(msg.Date, 0),
		BodyHTML:  msg.Body,
		BodyText:  htmltext.Convert(msg.Body),
		IsRead:    !msg.Unread,
		IsStarred: msg.Starred,
		ThreadID:  msg.ThreadID,
		Folder:    model.DefaultFolder,
		RawData:   string(rawData),
	}
	if email.Subject == "" {
		email.Subject = "(No Subject)"
	}
	if msg.Date == 0 {
		email.Date = time.Now()
	}
	if len(msg.Folders) > 0 && msg.Folders[0] != "" {
		email.Folder = msg.Folders[0]
	}
	if len(msg.From) > 0 {
		email.From = formatParticipant(msg.From[0])
	}
	email.To = participantAddresses(msg.To)
	email.Cc = participantAddresses(msg.Cc)
	email.Bcc = participantAddresses(msg.Bcc)

	for _, att := range msg.Attachments {
		email.Attachments = append(email.Attachments, toAttachment(att))
	}
	return email
}

func toAttachment(att wireAttachment) model.Attachment {
	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	filename := att.Filename
	if filename == "" {
		filename = "attachment"
	}
	return model.Attachment{
		ID:          att.ID,
		Filename:    filename,
		ContentType: contentType,
		Size:        att.Size,
	}
}

func formatParticipant(part participant) string {
	if part.Name != "" {
		return fmt.Sprintf("%s <%s>", part.Name, part.Email)
	}
	return part.Email
}

func participantAddresses(parts []participant) []string {
	if len(parts) == 0 {
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p.Email)
	}
	return out
}

func toParticipants(addrs []string) []participant {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]participant, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, participant{Email: a})
	}
	return out
}
