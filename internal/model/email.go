package model

import (
	"strings"
	"time"
)

// DefaultFolder is the folder assigned to messages that carry no
// explicit folder name. A stored message never has an empty folder.
const DefaultFolder = "INBOX"

// Attachment holds a message attachment. Data may be nil when only
// metadata has been fetched (the Cloud-API variant downloads content
// in a separate call).
type Attachment struct {
	// ID identifies the attachment within its provider. The IMAP
	// variant synthesizes ids as "{message-id}_{index}" because the
	// wire protocol exposes no persistent attachment identifier.
	ID string `json:"id,omitempty"`

	// Filename is the attachment file name as sent.
	Filename string `json:"filename"`

	// ContentType is the declared MIME type.
	ContentType string `json:"content_type"`

	// Size is the decoded payload length in bytes.
	Size int64 `json:"size"`

	// Data is the decoded payload, when available.
	Data []byte `json:"data,omitempty"`
}

// Email is the unified representation of a message from any provider.
// A message is owned by exactly one mailbox at a time.
type Email struct {
	// ID is unique within the mailbox that owns the message.
	ID string `json:"id"`

	// Subject is the message subject line.
	Subject string `json:"subject"`

	// From is the originator, either a bare address or
	// `Display Name <addr@host>`.
	From string `json:"from_address"`

	// To, Cc, and Bcc are the recipient address lists.
	To  []string `json:"to_addresses"`
	Cc  []string `json:"cc_addresses,omitempty"`
	Bcc []string `json:"bcc_addresses,omitempty"`

	// Date is when the message was sent.
	Date time.Time `json:"date"`

	// BodyText is the plain-text body. When a message carries only an
	// HTML body, BodyText is derived from it and is never left empty.
	BodyText string `json:"body_text"`

	// BodyHTML is the HTML body, if any.
	BodyHTML string `json:"body_html,omitempty"`

	// Attachments lists the message attachments in part order.
	Attachments []Attachment `json:"attachments,omitempty"`

	// IsRead reports whether the message has been seen.
	IsRead bool `json:"is_read"`

	// IsStarred reports whether the message is flagged.
	IsStarred bool `json:"is_starred"`

	// ThreadID groups messages of one conversation, when the provider
	// supplies it.
	ThreadID string `json:"thread_id,omitempty"`

	// Folder is the owning folder name; never empty, defaults to
	// DefaultFolder.
	Folder string `json:"folder"`

	// RawData holds the original provider payload for round-tripping.
	RawData string `json:"raw_data,omitempty"`
}

// FromName returns the display name of the sender, falling back to the
// local part of the address.
func (e Email) FromName() string {
	if i := strings.Index(e.From, "<"); i >= 0 {
		return strings.Trim(strings.TrimSpace(e.From[:i]), `"`)
	}
	if i := strings.Index(e.From, "@"); i >= 0 {
		return e.From[:i]
	}
	return e.From
}

// FromEmail returns the bare sender address.
func (e Email) FromEmail() string {
	start := strings.Index(e.From, "<")
	if start < 0 {
		return e.From
	}
	rest := e.From[start+1:]
	if end := strings.Index(rest, ">"); end >= 0 {
		return rest[:end]
	}
	return rest
}

// Preview returns a short single-line excerpt of the body for list
// rendering.
func (e Email) Preview() string {
	text := e.BodyText
	if text == "" {
		text = e.BodyHTML
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 100 {
		return text[:97] + "..."
	}
	return text
}

// Folder is a mailbox folder with derived counts. Counts are always
// recomputed from stored messages, never stored independently.
type Folder struct {
	// ID identifies the folder within its provider, when the provider
	// assigns ids distinct from names.
	ID string `json:"id,omitempty"`

	// Name is the folder name used in provider operations.
	Name string `json:"name"`

	// DisplayName is the user-facing label; defaults to Name.
	DisplayName string `json:"display_name"`

	// UnreadCount is the number of unseen messages in the folder.
	UnreadCount int `json:"unread_count"`

	// TotalCount is the number of messages in the folder.
	TotalCount int `json:"total_count"`
}

// NewFolder builds a Folder, defaulting the display name to the name.
func NewFolder(name, displayName string, unread, total int) Folder {
	if displayName == "" {
		displayName = name
	}
	return Folder{
		ID:          name,
		Name:        name,
		DisplayName: displayName,
		UnreadCount: unread,
		TotalCount:  total,
	}
}
