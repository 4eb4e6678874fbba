package maillist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/theme"
)

// EmailItem wraps a model.Email so it can be used in a bubbles/list.
type EmailItem struct {
	Email model.Email
}

// FilterValue returns the string used for fuzzy filtering.
func (i EmailItem) FilterValue() string { return i.Email.Subject }

// Title returns the subject for the list.
func (i EmailItem) Title() string { return i.Email.Subject }

// Description returns a short summary line for the list.
func (i EmailItem) Description() string {
	return fmt.Sprintf("%s | %s", i.Email.FromName(), relativeTime(i.Email.Date))
}

// ItemDelegate implements list.ItemDelegate for rendering message rows.
type ItemDelegate struct{}

// Height returns the number of lines each row takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between rows.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-row messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single message row: read marker, star and attachment
// markers, sender, subject, and relative age.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ei, ok := item.(EmailItem)
	if !ok {
		return
	}

	email := ei.Email
	isSelected := index == m.Index()

	marker := " "
	if !email.IsRead {
		marker = "●"
	}

	star := " "
	if email.IsStarred {
		star = theme.StarStyle.Render("★")
	}

	attach := " "
	if len(email.Attachments) > 0 {
		attach = theme.AttachmentStyle.Render("@")
	}

	from := truncate(email.FromName(), 20)
	subject := truncate(email.Subject, 50)
	age := relativeTime(email.Date)

	line := fmt.Sprintf(
		"%s%s%s %-20s  %-50s  %s",
		marker, star, attach, from, subject, age,
	)

	if email.IsRead {
		line = theme.ReadStyle.Render(line)
	} else {
		line = theme.UnreadStyle.Render(line)
	}

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// truncate shortens s to at most n runes, appending an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hrs)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("Jan 02 2006")
	}
}
