package notification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"expiry-notifier/internal/alert"
	"expiry-notifier/internal/expiry"
	"expiry-notifier/internal/models"
)

var funcs = map[string]any{
	"daysLeft": expiry.DaysLeftText,
	"title":    func(b models.Bucket) string { return b.Title() },
	"describe": describe,
}

var digestText = texttemplate.Must(texttemplate.New("digest").Funcs(funcs).Parse(
	`Document expiry summary for {{.Date}}
{{range .Sections}}
{{title .Bucket}} ({{len .Candidates}})
{{range .Candidates}}  - {{describe .}}: {{.DocumentType}} {{.DateDisplay}} ({{daysLeft .DaysLeft}})
{{end}}{{end}}`))

var digestHTML = htmltemplate.Must(htmltemplate.New("digest").Funcs(funcs).Parse(
	`<html><body style="font-family:Arial,sans-serif">
<h2>Document expiry summary for {{.Date}}</h2>
{{range .Sections}}<h3>{{title .Bucket}} ({{len .Candidates}})</h3>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>ID</th><th>Equipment</th><th>Document</th><th>Expiry</th><th>Status</th></tr>
{{range .Candidates}}<tr><td>{{.RecordID}}</td><td>{{.Label}}</td><td>{{.DocumentType}}</td><td>{{.DateDisplay}}</td><td>{{daysLeft .DaysLeft}}</td></tr>
{{end}}</table>
{{end}}</body></html>`))

type digestView struct {
	Date     string
	Sections []expiry.Section
}

// Subject is the mail subject of the daily digest.
func Subject(today time.Time, count int) string {
	return fmt.Sprintf("Document expiry summary - %s (%d items)", today.Format(expiry.DisplayLayout), count)
}

// RenderText renders d as plain text.
func RenderText(d expiry.Digest, today time.Time) (string, error) {
	var buf bytes.Buffer
	if err := digestText.Execute(&buf, digestView{Date: today.Format(expiry.DisplayLayout), Sections: d.Sections}); err != nil {
		return "", fmt.Errorf("render digest text: %w", err)
	}
	return buf.String(), nil
}

// RenderHTML renders d as an HTML table per bucket.
func RenderHTML(d expiry.Digest, today time.Time) (string, error) {
	var buf bytes.Buffer
	if err := digestHTML.Execute(&buf, digestView{Date: today.Format(expiry.DisplayLayout), Sections: d.Sections}); err != nil {
		return "", fmt.Errorf("render digest html: %w", err)
	}
	return buf.String(), nil
}

// Chat messages are capped below Telegram's 4096 character limit. The GET
// gateway carries the text in its URL, so the cap also keeps that short.
const (
	maxChatLen      = 3000
	maxChatSection  = 15
	chatTailReserve = 64
)

// ChatSummary is the short digest posted to the chat channel. Each section
// lists at most maxChatSection documents and the message never exceeds
// maxChatLen; anything cut is counted in a "+N more" line.
func ChatSummary(d expiry.Digest, today time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expiry summary %s", today.Format(expiry.DisplayLayout))
	for i, s := range d.Sections {
		head := fmt.Sprintf("\n%s: %d", s.Bucket.Title(), len(s.Candidates))
		// keep room for the heading of every later section
		reserve := chatTailReserve * (len(d.Sections) - i)
		if b.Len()+len(head)+reserve > maxChatLen {
			break
		}
		b.WriteString(head)
		shown := 0
		for _, c := range s.Candidates {
			line := fmt.Sprintf("\n- %s %s (%s)", c.RecordID, c.DocumentType, expiry.DaysLeftText(c.DaysLeft))
			if shown == maxChatSection || b.Len()+len(line)+reserve > maxChatLen {
				break
			}
			b.WriteString(line)
			shown++
		}
		if rest := len(s.Candidates) - shown; rest > 0 {
			fmt.Fprintf(&b, "\n+%d more", rest)
		}
	}
	return b.String()
}

// AlertSubject is the mail subject of a threshold alert.
func AlertSubject(a alert.Alert) string {
	if a.Overdue() {
		return fmt.Sprintf("EXPIRED: %s %s", a.RecordID, a.DocumentType)
	}
	return fmt.Sprintf("%s %s expires in %d day(s)", a.RecordID, a.DocumentType, a.DaysLeft)
}

// AlertText is the body of a threshold alert, shared by mail and chat.
func AlertText(a alert.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", a.DocumentType, strings.TrimSpace(a.RecordID+" "+a.Label))
	fmt.Fprintf(&b, "Expiry: %s (%s)\n", a.DateDisplay, expiry.DaysLeftText(a.DaysLeft))
	if a.Plant != "" {
		fmt.Fprintf(&b, "Plant: %s\n", a.Plant)
	}
	if a.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", a.Location)
	}
	return b.String()
}

func describe(c models.Candidate) string {
	parts := []string{c.RecordID}
	if c.Label != "" {
		parts = append(parts, c.Label)
	}
	s := strings.Join(parts, " ")
	if c.Plant != "" {
		s += " [" + c.Plant + "]"
	}
	return s
}
