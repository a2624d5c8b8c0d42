// Package client holds the HTTP clients for the payment service, the mailer
// and the log sink.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/punchamoorthee/payflow/internal/domain"
	"github.com/punchamoorthee/payflow/internal/models"
)

const (
	DefaultPaymentTimeout = 10 * time.Second
	DefaultMailerTimeout  = 30 * time.Second
	DefaultLogSinkTimeout = 2 * time.Second
)

type base struct {
	url  string
	http *http.Client
}

func newBase(baseURL string, timeout time.Duration) base {
	return base{
		url:  strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// StatusError is a non-2xx answer from a peer.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Detail)
}

// IsStatus reports whether err carries a peer answer with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func (b base) post(ctx context.Context, path string, payload any) error {
	return b.do(ctx, http.MethodPost, path, payload, nil)
}

// do sends payload as JSON, when non-nil, and decodes a 2xx answer into out,
// when non-nil. Any failure is a TransportError; a non-2xx answer wraps a
// StatusError carrying the peer's detail message when it has one.
func (b base) do(ctx context.Context, method, path string, payload, out any) error {
	op := method + " " + path
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.url+path, body)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Detail string `json:"detail"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Detail != "" {
			msg = e.Detail
		}
		return &domain.TransportError{Op: op, Err: &StatusError{Code: resp.StatusCode, Detail: msg}}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &domain.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// MailerClient talks to the notification gateway.
type MailerClient struct {
	base
	source string
}

func NewMailerClient(baseURL, sourceService string, timeout time.Duration) *MailerClient {
	if timeout <= 0 {
		timeout = DefaultMailerTimeout
	}
	return &MailerClient{base: newBase(baseURL, timeout), source: sourceService}
}

func (c *MailerClient) SendTemplate(ctx context.Context, req models.TemplateEmailRequest) error {
	if req.SourceService == "" {
		req.SourceService = c.source
	}
	return c.post(ctx, "/send-template", req)
}

func (c *MailerClient) Send(ctx context.Context, req models.RawEmailRequest) error {
	if req.SourceService == "" {
		req.SourceService = c.source
	}
	return c.post(ctx, "/send", req)
}

// LogSinkClient ships records to the log sink.
type LogSinkClient struct {
	base
}

func NewLogSinkClient(baseURL string, timeout time.Duration) *LogSinkClient {
	if timeout <= 0 {
		timeout = DefaultLogSinkTimeout
	}
	return &LogSinkClient{base: newBase(baseURL, timeout)}
}

func (c *LogSinkClient) Log(ctx context.Context, entry models.LogEntry) error {
	return c.post(ctx, "/log", entry)
}

func (c *LogSinkClient) LogBatch(ctx context.Context, entries []models.LogEntry) error {
	return c.post(ctx, "/log/batch", models.LogBatchRequest{Logs: entries})
}

// PaymentClient drives the payment service. The seeder and the load
// generator use it.
type PaymentClient struct {
	base
}

func NewPaymentClient(baseURL string, timeout time.Duration) *PaymentClient {
	if timeout <= 0 {
		timeout = DefaultPaymentTimeout
	}
	return &PaymentClient{base: newBase(baseURL, timeout)}
}

func (c *PaymentClient) RegisterService(ctx context.Context, def domain.ServiceDefinition) (domain.ServiceDefinition, error) {
	var out domain.ServiceDefinition
	err := c.do(ctx, http.MethodPost, "/payments/services", def, &out)
	return out, err
}

func (c *PaymentClient) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (models.PaymentStatusResponse, error) {
	var out models.PaymentStatusResponse
	err := c.do(ctx, http.MethodPost, "/payments/create", req, &out)
	return out, err
}

func (c *PaymentClient) ProcessPayment(ctx context.Context, id, transactionID string) (domain.Payment, error) {
	var out domain.Payment
	err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(id)+"/process",
		models.ProcessPaymentRequest{TransactionID: transactionID}, &out)
	return out, err
}

func (c *PaymentClient) FailPayment(ctx context.Context, id, reason string) (domain.Payment, error) {
	var out domain.Payment
	err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(id)+"/fail",
		models.FailPaymentRequest{Reason: reason}, &out)
	return out, err
}

func (c *PaymentClient) Apply(ctx context.Context, req models.ApplyRequest) (models.ApplicationResponse, error) {
	var out models.ApplicationResponse
	err := c.do(ctx, http.MethodPost, "/payments/apply", req, &out)
	return out, err
}

func (c *PaymentClient) Approve(ctx context.Context, applicationID string) (models.ApprovalResponse, error) {
	var out models.ApprovalResponse
	err := c.do(ctx, http.MethodPut, "/payments/applications/"+url.PathEscape(applicationID)+"/approve", nil, &out)
	return out, err
}
