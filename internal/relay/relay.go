// Package relay submits outbound mail to an SMTP server. It is used
// by the mailbox-protocol variant for every send and by the local
// store as the best-effort path for recipients outside the addresses
// it controls.
package relay

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
)

// DefaultPort is the standard submission port, reached via STARTTLS.
const DefaultPort = 587

// Config holds the SMTP submission settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// ImplicitTLS dials an already-encrypted connection instead of
	// upgrading with STARTTLS.
	ImplicitTLS bool
}

// Configured reports whether enough settings are present to attempt a
// submission.
func (c Config) Configured() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

func (c Config) addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return c.Host + ":" + strconv.Itoa(port)
}

// Client submits messages over SMTP.
type Client struct {
	cfg Config
}

// New creates a relay client for the given submission settings.
func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Send composes a MIME message and submits it to every recipient in
// to, cc, and bcc.
func (c *Client) Send(from string, msg provider.OutgoingMessage) error {
	raw, err := Compose(from, msg)
	if err != nil {
		return fmt.Errorf("composing message: %w", err)
	}

	rcpts := make([]string, 0, len(msg.To)+len(msg.Cc)+len(msg.Bcc))
	rcpts = append(rcpts, msg.To...)
	rcpts = append(rcpts, msg.Cc...)
	rcpts = append(rcpts, msg.Bcc...)

	client, err := c.dial()
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.cfg.addr(), err)
	}
	defer client.Close()

	auth := sasl.NewPlainClient("", c.cfg.Username, c.cfg.Password)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	if err := client.SendMail(from, rcpts, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("submitting message: %w", err)
	}

	return client.Quit()
}

func (c *Client) dial() (*smtp.Client, error) {
	tlsConfig := &tls.Config{ServerName: c.cfg.Host}
	if c.cfg.ImplicitTLS {
		return smtp.DialTLS(c.cfg.addr(), tlsConfig)
	}
	return smtp.DialStartTLS(c.cfg.addr(), tlsConfig)
}

// Compose builds the raw RFC 5322 message: a text part, an HTML
// alternative when present, and one attachment part per attachment.
func Compose(from string, msg provider.OutgoingMessage) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", toAddressList(msg.To))
	if len(msg.Cc) > 0 {
		h.SetAddressList("Cc", toAddressList(msg.Cc))
	}
	if msg.ReplyToID != "" {
		h.Set("In-Reply-To", "<"+msg.ReplyToID+">")
		h.Set("References", "<"+msg.ReplyToID+">")
	}

	var buf bytes.Buffer
	w, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating writer: %w", err)
	}

	inline, err := w.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("creating inline part: %w", err)
	}

	var th mail.InlineHeader
	th.Set("Content-Type", "text/plain; charset=utf-8")
	tw, err := inline.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("creating text part: %w", err)
	}
	if _, err := io.WriteString(tw, msg.Body); err != nil {
		return nil, err
	}
	tw.Close()

	if msg.HTMLBody != "" {
		var hh mail.InlineHeader
		hh.Set("Content-Type", "text/html; charset=utf-8")
		hw, err := inline.CreatePart(hh)
		if err != nil {
			return nil, fmt.Errorf("creating html part: %w", err)
		}
		if _, err := io.WriteString(hw, msg.HTMLBody); err != nil {
			return nil, err
		}
		hw.Close()
	}
	inline.Close()

	for _, att := range msg.Attachments {
		if err := writeAttachment(w, att); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", att.Filename, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeAttachment(w *mail.Writer, att model.Attachment) error {
	var ah mail.AttachmentHeader
	ah.SetFilename(att.Filename)
	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ah.Set("Content-Type", contentType)

	aw, err := w.CreateAttachment(ah)
	if err != nil {
		return err
	}
	defer aw.Close()

	_, err = aw.Write(att.Data)
	return err
}

func toAddressList(addrs []string) []*mail.Address {
	list := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, &mail.Address{Address: a})
	}
	return list
}

// FromAccount extracts the relay settings from an account record. The
// IMAP variant reuses its login when no dedicated submission
// credentials are set.
func FromAccount(acc model.Account) Config {
	cfg := Config{
		Host:     acc.SMTPHost,
		Port:     acc.SMTPPort,
		Username: acc.SMTPUsername,
		Password: acc.SMTPPassword,
	}
	if cfg.Username == "" {
		cfg.Username = acc.Email
	}
	if cfg.Password == "" {
		cfg.Password = acc.Password
	}
	return cfg
}
