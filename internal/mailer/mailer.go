// Package mailer delivers issued API keys out of band.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer sends an issued key to its owner. The raw key must not be
// retained after the call returns.
type Mailer interface {
	SendAPIKey(ctx context.Context, to, name, rawKey string) error
}

// SMTPMailer sends key issuance mail through a plain SMTP relay.
type SMTPMailer struct {
	addr string
	from string
}

// NewSMTPMailer creates an SMTPMailer for the given relay address
// (host:port) and sender.
func NewSMTPMailer(addr, from string) *SMTPMailer {
	return &SMTPMailer{addr: addr, from: from}
}

func (m *SMTPMailer) SendAPIKey(_ context.Context, to, name, rawKey string) error {
	msg := buildKeyMessage(m.from, to, name, rawKey)
	if err := smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send key mail: %w", err)
	}
	return nil
}

func buildKeyMessage(from, to, name, rawKey string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: Tooldex <%s>\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your Tooldex API key\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", name)
	fmt.Fprintf(&b, "Your API key is:\r\n\r\n    %s\r\n\r\n", rawKey)
	b.WriteString("Store it securely. This is the only time it will be shown;\r\n")
	b.WriteString("we keep only a one-way digest and cannot recover it for you.\r\n")
	return b.String()
}

// LogMailer logs mail instead of sending it. Development only: it writes
// the raw key to the process log.
type LogMailer struct{}

func (LogMailer) SendAPIKey(_ context.Context, to, name, rawKey string) error {
	slog.Info("dry-run key mail", "to", to, "name", name, "key", rawKey)
	return nil
}
