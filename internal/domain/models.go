package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, the same shape the existing clients send.
	decimal.MarshalJSONWithoutQuotes = true
}

// UnknownServiceName is reported wherever a service id no longer resolves.
const UnknownServiceName = "Unknown Service"

// PaymentDueAfter is the grace period between payment creation and its due date.
const PaymentDueAfter = 30 * 24 * time.Hour

// ServiceDefinition is a purchasable offering with a base price.
type ServiceDefinition struct {
	ServiceID   string          `json:"service_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"base_price"`
}

// ServiceUpdate carries a partial update; nil fields are left untouched.
type ServiceUpdate struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	BasePrice   *decimal.Decimal `json:"base_price,omitempty"`
}

// Apply overwrites the fields present in u.
func (u ServiceUpdate) Apply(def *ServiceDefinition) {
	if u.Name != nil {
		def.Name = *u.Name
	}
	if u.Description != nil {
		def.Description = *u.Description
	}
	if u.BasePrice != nil {
		def.BasePrice = *u.BasePrice
	}
}

// Payment tracks a single monetary transaction through its lifecycle.
// ServiceID is a weak reference: deleting the service leaves it dangling.
type Payment struct {
	PaymentID     string          `json:"payment_id"`
	ServiceID     string          `json:"service_id"`
	Amount        decimal.Decimal `json:"amount"`
	UserID        string          `json:"user_id"`
	Email         string          `json:"email"`
	Status        PaymentStatus   `json:"status"`
	OrderID       string          `json:"order_id,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DueDate is the date by which a pending payment is expected to be settled.
func (p Payment) DueDate() time.Time {
	return p.CreatedAt.Add(PaymentDueAfter)
}

// Application is a user's request to pay for a service, pending review.
type Application struct {
	ApplicationID string            `json:"application_id"`
	UserID        string            `json:"user_id"`
	ServiceID     string            `json:"service_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Reason        string            `json:"reason"`
	Email         string            `json:"email"`
	Status        ApplicationStatus `json:"status"`
	PaymentID     string            `json:"payment_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// LogRecord is one append-only entry held by the log sink.
type LogRecord struct {
	Service   string         `json:"service"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// LogQuery selects records for one source service.
type LogQuery struct {
	Service  string
	Level    LogLevel
	Start    time.Time
	End      time.Time
	Contains string
	Limit    int
	Offset   int
}

// Match reports whether r passes the level, time window and substring filters.
func (q LogQuery) Match(r LogRecord) bool {
	if q.Level != "" && r.Level != q.Level {
		return false
	}
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Contains != "" && !strings.Contains(r.Message, q.Contains) {
		return false
	}
	return true
}

// LogPage is one page of a query result. Total counts the filtered set.
type LogPage struct {
	Logs  []LogRecord `json:"logs"`
	Total int         `json:"total"`
}
