package notify

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"
	"unicode/utf16"

	"github.com/rotisserie/eris"
)

var emailTmpl = template.Must(template.New("email").Parse(`<h3>New listings for "{{.WatchName}}":</h3>
<ul>{{range .NewItems}}
<li style="color: blue; font-weight: bold;">{{.}} (NEW)</li>{{end}}
</ul>
{{- if .PreviousItems}}
<hr />
<p>Previous listings:</p>
<ul>{{range .PreviousItems}}
<li style="color: gray;">{{.}}</li>{{end}}
</ul>
{{- end}}
<p><a href="{{.URL}}">View on site</a></p>
`))

// subject is the notification headline shared by all sinks.
func subject(n Notification) string {
	return fmt.Sprintf("New listings: %s (%d)", n.WatchName, len(n.NewItems))
}

// renderHTML renders the email body.
func renderHTML(n Notification) (string, error) {
	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, n); err != nil {
		return "", eris.Wrap(err, "notify: render email")
	}
	return buf.String(), nil
}

// telegramMaxLen is the Bot API limit on message text, in UTF-16 code units.
const telegramMaxLen = 4096

// renderTelegram renders the notification as one or more messages in
// Telegram's HTML parse mode, each within telegramMaxLen. Items are never
// split across messages; every part repeats the headline with its index.
func renderTelegram(n Notification) []string {
	head := html.EscapeString(subject(n))
	var footer string
	if n.URL != "" {
		footer = fmt.Sprintf("\n<a href=\"%s\">View on site</a>", html.EscapeString(n.URL))
	}
	// Room for "<b>head (NNN/NNN)</b>\n" plus the footer.
	budget := telegramMaxLen - textLen(fmt.Sprintf("<b>%s (999/999)</b>\n", head)) - textLen(footer)

	var (
		parts []string
		cur   strings.Builder
	)
	for _, item := range n.NewItems {
		line := "• " + html.EscapeString(item) + "\n"
		if textLen(line) > budget {
			line = clipText(line, budget-1) + "\n"
		}
		if cur.Len() > 0 && textLen(cur.String())+textLen(line) > budget {
			parts = append(parts, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 || len(parts) == 0 {
		parts = append(parts, cur.String())
	}

	msgs := make([]string, len(parts))
	for i, body := range parts {
		title := head
		if len(parts) > 1 {
			title = fmt.Sprintf("%s (%d/%d)", head, i+1, len(parts))
		}
		msgs[i] = fmt.Sprintf("<b>%s</b>\n%s", title, body)
		if i == len(parts)-1 {
			msgs[i] += footer
		}
	}
	return msgs
}

// textLen counts s in UTF-16 code units, the unit Telegram limits.
func textLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// clipText cuts s to at most limit UTF-16 code units on a rune boundary.
// An entity cut in half is dropped.
func clipText(s string, limit int) string {
	n := 0
	for i, r := range s {
		if n+utf16.RuneLen(r) > limit {
			s = s[:i]
			break
		}
		n += utf16.RuneLen(r)
	}
	if amp := strings.LastIndexByte(s, '&'); amp >= 0 && !strings.Contains(s[amp:], ";") {
		s = s[:amp]
	}
	return s
}
