package mailer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/payflow/internal/domain"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	reg.now = func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) }
	return reg
}

func TestDefaultRegistry_IDs(t *testing.T) {
	want := []string{
		"application_approved", "application_created", "application_deleted", "application_rejected",
		"payment_created", "payment_failed", "payment_success",
	}
	got := testRegistry(t).IDs()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
}

func TestRender_PaymentCreated(t *testing.T) {
	reg := testRegistry(t)
	out, err := reg.Render("payment_created", map[string]any{
		"payment_id":   "p-1",
		"service_name": "Premium",
		"amount":       decimal.NewFromInt(100),
		"due_date":     "2025-03-31",
	}, "")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Subject != "Payment created #p-1" {
		t.Errorf("subject = %q", out.Subject)
	}
	for _, want := range []string{"Payment ID: p-1", "Service: Premium", "Amount: $100.00", "Due date: 2025-03-31", "Created: 2025-03-01 09:30:00"} {
		if !strings.Contains(out.Text, want) {
			t.Errorf("text missing %q:\n%s", want, out.Text)
		}
	}
	if !strings.Contains(out.HTML, "<strong>Amount:</strong> $100.00") {
		t.Errorf("html missing amount:\n%s", out.HTML)
	}
}

func TestRender_OptionalFieldAbsent(t *testing.T) {
	out, err := testRegistry(t).Render("payment_success", map[string]any{
		"payment_id": "p-1", "service_name": "Premium", "amount": 12.5,
	}, "")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(out.Text, "Transaction ID") {
		t.Errorf("text should omit transaction id:\n%s", out.Text)
	}
	if !strings.Contains(out.Text, "Amount: $12.50") {
		t.Errorf("text = %s", out.Text)
	}
}

func TestRender_SubjectOverride(t *testing.T) {
	out, err := testRegistry(t).Render("application_rejected", map[string]any{
		"application_id": "a-9", "service_name": "Basic", "amount": "40", "reason": "incomplete",
	}, "About {{.application_id}}")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Subject != "About a-9" {
		t.Errorf("subject = %q", out.Subject)
	}
	if !strings.Contains(out.Text, "Reason: incomplete") {
		t.Errorf("text = %s", out.Text)
	}
}

func TestRender_Errors(t *testing.T) {
	reg := testRegistry(t)
	tests := []struct {
		name string
		id   string
		data map[string]any
		want error
	}{
		{"unknown template", "invoice", nil, domain.ErrTemplateNotFound},
		{"missing required", "payment_failed", map[string]any{"payment_id": "p", "service_name": "s", "amount": 1}, domain.ErrValidation},
		{"empty required", "application_created", map[string]any{"application_id": "", "service_name": "s", "amount": 1}, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Render(tt.id, tt.data, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRender_EscapesHTML(t *testing.T) {
	out, err := testRegistry(t).Render("application_rejected", map[string]any{
		"application_id": "a", "service_name": "s", "amount": 1, "reason": "<script>",
	}, "")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(out.HTML, "<script>") {
		t.Errorf("html not escaped:\n%s", out.HTML)
	}
	if !strings.Contains(out.Text, "Reason: <script>") {
		t.Errorf("text should be verbatim:\n%s", out.Text)
	}
}

func TestLoadRegistry_Rejects(t *testing.T) {
	tests := map[string]string{
		"duplicate":  "templates:\n  - id: a\n    subject: x\n  - id: a\n    subject: y\n",
		"no id":      "templates:\n  - subject: x\n",
		"bad syntax": "templates:\n  - id: a\n    subject: \"{{.x\"\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadRegistry(strings.NewReader(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{decimal.RequireFromString("19.999"), "$20.00"},
		{100, "$100.00"},
		{int64(7), "$7.00"},
		{2.5, "$2.50"},
		{"42.1", "$42.10"},
		{"n/a", "n/a"},
	}
	for _, tt := range tests {
		if got := formatMoney(tt.in); got != tt.want {
			t.Errorf("formatMoney(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
