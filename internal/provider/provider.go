// Package provider defines the capability contract implemented by
// every mail backend variant. The presentation layer depends only on
// this contract; variant selection happens at construction time from
// the account's provider kind.
package provider

import (
	"context"

	"github.com/nvhoang/maildeck/internal/model"
)

// OutgoingMessage carries everything needed to send a message.
type OutgoingMessage struct {
	To          []string
	Subject     string
	Body        string
	HTMLBody    string
	Cc          []string
	Bcc         []string
	Attachments []model.Attachment

	// ReplyToID references the message being replied to, when any.
	ReplyToID string
}

// Provider is the uniform operation set every backend variant
// implements. All operations may suspend on I/O; callers run them off
// the UI scheduler. Failures surface as typed errors from this package
// so callers can distinguish "no results" from "backend error"; a
// transient failure leaves session state intact so a retry can
// succeed.
type Provider interface {
	// Connect establishes the backend session. On failure the variant
	// stays disconnected and a ConnectError is returned.
	Connect(ctx context.Context) error

	// Disconnect tears the session down. Safe to call when already
	// disconnected.
	Disconnect(ctx context.Context) error

	// Fetch returns messages from folder, newest first, sliced at
	// [offset : offset+limit].
	Fetch(ctx context.Context, folder string, limit, offset int) ([]model.Email, error)

	// Get returns a single message by id, or nil when it does not
	// exist.
	Get(ctx context.Context, id string) (*model.Email, error)

	// Send submits a message. For the local variant this routes
	// directly into other local mailboxes with no network hop.
	Send(ctx context.Context, msg OutgoingMessage) error

	// Folders lists the folders with derived unread/total counts.
	Folders(ctx context.Context) ([]model.Folder, error)

	// MarkRead sets the read flag to the given value.
	MarkRead(ctx context.Context, id string, read bool) error

	// Delete removes a message. The local variant soft-deletes by
	// moving the message to Trash; the mailbox-protocol variant purges
	// it permanently. The asymmetry is intentional.
	Delete(ctx context.Context, id string) error

	// Search returns up to limit messages matching query, optionally
	// scoped to folder (empty folder means everywhere), newest first.
	Search(ctx context.Context, query, folder string, limit int) ([]model.Email, error)

	// Attachment returns the attachment for a message, with payload
	// populated, or nil when it does not exist.
	Attachment(ctx context.Context, emailID, attachmentID string) (*model.Attachment, error)
}
