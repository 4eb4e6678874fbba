package compose

import (
	"strings"
	"testing"
	"time"

	"github.com/nvhoang/maildeck/internal/model"
)

func TestReplySubjectPrefixesOnce(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello", "Re: Hello"},
		{"Re: Hello", "Re: Hello"},
		{"re: hello", "re: hello"},
		{"", "Re: "},
	}
	for _, tc := range cases {
		if got := replySubject(tc.in); got != tc.want {
			t.Errorf("replySubject(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestQuoteBodyQuotesEveryLine(t *testing.T) {
	original := model.Email{
		From:     "alice@local",
		Date:     time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		BodyText: "first line\nsecond line",
	}

	got := quoteBody(original)
	if !strings.Contains(got, "alice@local wrote:") {
		t.Errorf("missing attribution line: %q", got)
	}
	if !strings.Contains(got, "> first line") || !strings.Contains(got, "> second line") {
		t.Errorf("body lines not quoted: %q", got)
	}
}

func TestSplitAddresses(t *testing.T) {
	got := splitAddresses(" a@x.com, b@y.com ,, ")
	if len(got) != 2 || got[0] != "a@x.com" || got[1] != "b@y.com" {
		t.Errorf("splitAddresses = %v", got)
	}
	if got := splitAddresses(""); got != nil {
		t.Errorf("splitAddresses(empty) = %v", got)
	}
}

func TestValidateRecipients(t *testing.T) {
	if err := validateRecipients("a@x.com"); err != nil {
		t.Errorf("valid address rejected: %v", err)
	}
	if err := validateRecipients(""); err == nil {
		t.Error("empty recipient list accepted")
	}
	if err := validateRecipients("not-an-address"); err == nil {
		t.Error("address without @ accepted")
	}
}

func TestStartReplyPrefillsForm(t *testing.T) {
	m := New(80, 24)
	original := model.Email{
		ID:       "msg-1",
		From:     "bob@local",
		Subject:  "Hello",
		BodyText: "hi",
		Date:     time.Now(),
	}

	_ = m.StartReply(original)

	if m.fb.to != "bob@local" {
		t.Errorf("to = %q", m.fb.to)
	}
	if m.fb.subject != "Re: Hello" {
		t.Errorf("subject = %q", m.fb.subject)
	}
	if m.replyToID != "msg-1" {
		t.Errorf("replyToID = %q", m.replyToID)
	}
	if !strings.Contains(m.fb.body, "> hi") {
		t.Errorf("body not quoted: %q", m.fb.body)
	}
}
