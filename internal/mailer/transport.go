package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// Message is a fully rendered email ready for dispatch.
type Message struct {
	From    string
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	HTML    string
	Text    string
}

// Transport delivers a message in a single attempt.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig addresses the relay.
type SMTPConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPTransport sends through an SMTP relay, upgrading with STARTTLS when the
// server offers it.
type SMTPTransport struct {
	cfg SMTPConfig
}

func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPTransport{cfg: cfg}
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return fmt.Errorf("recipients: %w", err)
	}
	if len(msg.Cc) > 0 {
		if err := m.Cc(msg.Cc...); err != nil {
			return fmt.Errorf("cc: %w", err)
		}
	}
	if len(msg.Bcc) > 0 {
		if err := m.Bcc(msg.Bcc...); err != nil {
			return fmt.Errorf("bcc: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	opts := []mail.Option{
		mail.WithPort(t.cfg.Port),
		mail.WithTimeout(t.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if t.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.cfg.Username),
			mail.WithPassword(t.cfg.Password),
		)
	}
	client, err := mail.NewClient(t.cfg.Server, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send via %s:%d: %w", t.cfg.Server, t.cfg.Port, err)
	}
	return nil
}

// DryRunTransport logs messages instead of sending them.
type DryRunTransport struct {
	Logger *slog.Logger
}

func (t DryRunTransport) Send(ctx context.Context, msg Message) error {
	t.Logger.InfoContext(ctx, "dry run: email not sent",
		"to", msg.To, "cc", msg.Cc, "subject", msg.Subject)
	return nil
}
