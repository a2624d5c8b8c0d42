// Package mailer is the notification gateway: a fixed registry of named
// templates rendered into emails and handed to a single-attempt transport.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/payflow/internal/domain"
)

// HTMLOnlyFallback is the plain-text part used when a raw message has no text body.
const HTMLOnlyFallback = "Please use an HTML-capable email client to view this message."

var emailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "payflow_mailer_emails_total",
	Help: "Emails handed to the transport, labeled by template and result",
}, []string{"template", "result"})

// TemplateRequest asks for a registry template to be rendered and sent.
type TemplateRequest struct {
	TemplateID string
	To         []string
	Data       map[string]any
	Subject    string
	Cc         []string
	Bcc        []string
	Sender     string
}

// RawRequest sends caller-supplied content without templating.
type RawRequest struct {
	To      []string
	Subject string
	HTML    string
	Text    string
	Cc      []string
	Bcc     []string
	Sender  string
}

type Gateway struct {
	registry  *Registry
	transport Transport
	sender    string
	logger    *slog.Logger
}

func NewGateway(registry *Registry, transport Transport, defaultSender string, logger *slog.Logger) *Gateway {
	return &Gateway{registry: registry, transport: transport, sender: defaultSender, logger: logger}
}

// Templates lists the ids the gateway can render.
func (g *Gateway) Templates() []string { return g.registry.IDs() }

// SendTemplate renders req.TemplateID and dispatches it once.
func (g *Gateway) SendTemplate(ctx context.Context, req TemplateRequest) error {
	to, err := recipients(req.To, req.Cc, req.Bcc)
	if err != nil {
		return err
	}
	out, err := g.registry.Render(req.TemplateID, req.Data, req.Subject)
	if err != nil {
		return err
	}
	return g.dispatch(ctx, req.TemplateID, Message{
		From:    g.from(req.Sender),
		To:      to,
		Cc:      clean(req.Cc),
		Bcc:     clean(req.Bcc),
		Subject: out.Subject,
		HTML:    out.HTML,
		Text:    out.Text,
	})
}

// SendRaw dispatches caller-supplied content over the same transport.
func (g *Gateway) SendRaw(ctx context.Context, req RawRequest) error {
	to, err := recipients(req.To, req.Cc, req.Bcc)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.Subject) == "" {
		return fmt.Errorf("%w: subject is required", domain.ErrValidation)
	}
	if req.HTML == "" && req.Text == "" {
		return fmt.Errorf("%w: body is required", domain.ErrValidation)
	}
	text := req.Text
	if text == "" {
		text = HTMLOnlyFallback
	}
	return g.dispatch(ctx, "raw", Message{
		From:    g.from(req.Sender),
		To:      to,
		Cc:      clean(req.Cc),
		Bcc:     clean(req.Bcc),
		Subject: req.Subject,
		HTML:    req.HTML,
		Text:    text,
	})
}

func (g *Gateway) dispatch(ctx context.Context, template string, msg Message) error {
	if err := g.transport.Send(ctx, msg); err != nil {
		emailsTotal.WithLabelValues(template, "error").Inc()
		g.logger.ErrorContext(ctx, "email dispatch failed", "template", template, "to", msg.To, "error", err)
		return &domain.TransportError{Op: "send email", Err: err}
	}
	emailsTotal.WithLabelValues(template, "sent").Inc()
	g.logger.InfoContext(ctx, "email sent", "template", template, "to", msg.To)
	return nil
}

func (g *Gateway) from(sender string) string {
	if sender != "" {
		return sender
	}
	return g.sender
}

// recipients validates every address and returns the cleaned To list.
func recipients(to, cc, bcc []string) ([]string, error) {
	out := clean(to)
	if len(out) == 0 {
		return nil, domain.ErrNoRecipient
	}
	for _, list := range [][]string{out, clean(cc), clean(bcc)} {
		for _, addr := range list {
			if err := domain.ValidateEmail(addr); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func clean(addrs []string) []string {
	var out []string
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
