package imapmail

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nvhoang/maildeck/internal/htmltext"
	"github.com/nvhoang/maildeck/internal/model"
)

// noSubject is the placeholder used when a message carries no subject
// header.
const noSubject = "(No Subject)"

// normalize parses a raw RFC 5322 payload into the canonical message
// shape. Attachment ids are synthesized as "{message-id}_{index}"
// because IMAP exposes no persistent attachment identifier. When the
// message has an HTML body and no text body, the text body is derived
// from the HTML so it is never left empty.
func normalize(raw []byte, id string) model.Email {
	email := model.Email{
		ID:     id,
		Date:   time.Now(),
		Folder: model.DefaultFolder,
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Unparseable payloads degrade to plain text so nothing is
		// dropped.
		email.Subject = noSubject
		email.BodyText = string(raw)
		return email
	}
	defer mr.Close()

	email.Subject = headerSubject(mr.Header)
	email.Date = headerDate(mr.Header)
	email.From = headerFrom(mr.Header)
	email.To = headerAddresses(mr.Header, "To")
	email.Cc = headerAddresses(mr.Header, "Cc")
	email.Bcc = headerAddresses(mr.Header, "Bcc")

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				email.BodyText = string(body)
			case strings.HasPrefix(contentType, "text/html"):
				email.BodyHTML = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			email.Attachments = append(email.Attachments, model.Attachment{
				ID:          fmt.Sprintf("%s_%d", id, len(email.Attachments)),
				Filename:    filename,
				ContentType: contentType,
				Size:        int64(len(body)),
				Data:        body,
			})
		}
	}

	if email.BodyText == "" && email.BodyHTML != "" {
		email.BodyText = htmltext.Convert(email.BodyHTML)
	}

	return email
}

func headerSubject(h mail.Header) string {
	subject, err := h.Subject()
	if err != nil || subject == "" {
		return noSubject
	}
	return subject
}

func headerDate(h mail.Header) time.Time {
	date, err := h.Date()
	if err != nil || date.IsZero() {
		return time.Now()
	}
	return date
}

func headerFrom(h mail.Header) string {
	addrs, err := h.AddressList("From")
	if err != nil || len(addrs) == 0 {
		return ""
	}
	from := addrs[0]
	if from.Name != "" {
		return fmt.Sprintf("%s <%s>", from.Name, from.Address)
	}
	return from.Address
}

func headerAddresses(h mail.Header, field string) []string {
	addrs, err := h.AddressList(field)
	if err != nil || len(addrs) == 0 {
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address)
	}
	return out
}
