package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CreatePaymentRequest is the payload for POST /payments/create.
type CreatePaymentRequest struct {
	ServiceID string          `json:"service_id"`
	Amount    decimal.Decimal `json:"amount"`
	UserID    string          `json:"user_id"`
	Email     string          `json:"email"`
}

// PaymentStatusResponse is the status snapshot returned on create and info.
type PaymentStatusResponse struct {
	PaymentID string          `json:"payment_id"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// UpdatePaymentRequest is the payload for PUT /payments/{id}.
type UpdatePaymentRequest struct {
	Status string `json:"status"`
}

// ProcessPaymentRequest optionally carries the processor's transaction id.
type ProcessPaymentRequest struct {
	TransactionID string `json:"transaction_id,omitempty"`
}

// FailPaymentRequest optionally carries a failure reason.
type FailPaymentRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ApplyRequest is the payload for POST /payments/apply.
type ApplyRequest struct {
	UserID    string          `json:"user_id"`
	ServiceID string          `json:"service_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	Email     string          `json:"email"`
}

// ApplicationResponse is the snapshot returned on apply and info.
type ApplicationResponse struct {
	ApplicationID string    `json:"application_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// ApprovalResponse reports the payment created by an approval.
type ApprovalResponse struct {
	Message   string `json:"message"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// RejectRequest carries the rejection reason when sent as a JSON body.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// MessageResponse is the generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// TemplateEmailRequest is the payload for POST /send-template.
type TemplateEmailRequest struct {
	To            []string       `json:"to"`
	TemplateID    string         `json:"template_id"`
	TemplateData  map[string]any `json:"template_data"`
	Subject       string         `json:"subject,omitempty"`
	Cc            []string       `json:"cc,omitempty"`
	Bcc           []string       `json:"bcc,omitempty"`
	Sender        string         `json:"sender,omitempty"`
	SourceService string         `json:"source_service,omitempty"`
}

// RawEmailRequest is the payload for POST /send.
type RawEmailRequest struct {
	To            []string `json:"to"`
	Subject       string   `json:"subject"`
	Body          string   `json:"body"`
	HTMLBody      string   `json:"html_body,omitempty"`
	Cc            []string `json:"cc,omitempty"`
	Bcc           []string `json:"bcc,omitempty"`
	Sender        string   `json:"sender,omitempty"`
	SourceService string   `json:"source_service,omitempty"`
}

// SendResponse acknowledges a dispatched email.
type SendResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// LogEntry is the ingest shape for POST /log. Level is free text until
// validated; Timestamp defaults to receipt time.
type LogEntry struct {
	Service   string         `json:"service"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp *Timestamp     `json:"timestamp,omitempty"`
}

// TimeLayouts are tried in order when parsing log timestamps. Zoneless
// values are read as UTC and fractional seconds are accepted on any layout.
var TimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// ParseTimestamp parses s with the first matching entry of TimeLayouts.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range TimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a valid timestamp", s)
}

// Timestamp decodes any of TimeLayouts and encodes as RFC 3339.
type Timestamp struct{ time.Time }

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// LogBatchRequest is the payload for POST /log/batch.
type LogBatchRequest struct {
	Logs []LogEntry `json:"logs"`
}

// LogResponse acknowledges a single ingested record.
type LogResponse struct {
	Status string `json:"status"`
}

// LogBatchResponse acknowledges a batch.
type LogBatchResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// HealthResponse is returned by GET /health on every service.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
