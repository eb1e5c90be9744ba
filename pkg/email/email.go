// Package email sends multipart text and HTML mail over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"
)

// Message is one outgoing mail with a plain-text and an optional HTML part.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender holds the SMTP relay credentials. The username doubles as the
// envelope sender.
type Sender struct {
	Server   string
	Port     int
	Username string
	Password string
	FromName string

	// send defaults to smtp.SendMail; tests replace it.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSender returns a Sender for the given relay.
func NewSender(server string, port int, username, password, fromName string) *Sender {
	return &Sender{
		Server:   server,
		Port:     port,
		Username: username,
		Password: password,
		FromName: fromName,
		send:     smtp.SendMail,
	}
}

// Send delivers msg to its single recipient.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if _, err := mail.ParseAddress(msg.To); err != nil || !strings.Contains(msg.To, "@") {
		return fmt.Errorf("invalid email address: %s", msg.To)
	}
	if s.Server == "" || s.Port == 0 || s.Username == "" {
		return fmt.Errorf("missing Email configuration: SMTPServer, SMTPPort or Username is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := s.Build(msg, time.Now())
	if err != nil {
		return err
	}
	var auth smtp.Auth
	if s.Password != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Server)
	}
	addr := fmt.Sprintf("%s:%d", s.Server, s.Port)
	send := s.send
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(addr, auth, s.Username, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

// Build renders msg as an RFC 5322 message. A message without HTML is sent
// as plain text; otherwise as multipart/alternative.
func (s *Sender) Build(msg Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	from := (&mail.Address{Name: s.FromName, Address: s.Username}).String()

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTML == "" {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(crlf(msg.Text))
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", w.Boundary())

	parts := []struct{ contentType, content string }{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	}
	for _, p := range parts {
		pw, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, fmt.Errorf("failed to build mail part: %w", err)
		}
		if _, err := pw.Write([]byte(crlf(p.content))); err != nil {
			return nil, fmt.Errorf("failed to build mail part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to build mail: %w", err)
	}
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

func crlf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
