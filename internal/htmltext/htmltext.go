// Package htmltext converts HTML message bodies to a plain text
// fallback for display and search.
package htmltext

import (
	"strings"

	"golang.org/x/net/html"
)

// Convert renders an HTML string as plain text. Script and style
// elements are dropped, line-break elements become newlines, and each
// paragraph or div block ends a line. Blank lines are collapsed so at
// most one survives between blocks. Convert is idempotent and never
// fails: malformed input degrades to whatever text can be extracted,
// and empty input yields an empty string.
func Convert(htmlContent string) string {
	if strings.TrimSpace(htmlContent) == "" {
		return ""
	}

	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		// html.Parse recovers from almost anything; on a real failure
		// fall back to the raw input so no body text is lost.
		return tidy(htmlContent)
	}

	var b strings.Builder
	extractText(root, &b)

	return tidy(b.String())
}

// extractText walks the node tree appending text content and newline
// markers for block boundaries.
func extractText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style":
			return
		case "br":
			b.WriteString("\n")
			return
		}
	}

	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, b)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div":
			b.WriteString("\n")
		}
	}
}

// tidy trims every line and collapses runs of blank lines down to a
// single blank line, then trims the result as a whole.
func tidy(text string) string {
	lines := strings.Split(text, "\n")

	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
