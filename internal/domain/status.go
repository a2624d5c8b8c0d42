package domain

import (
	"fmt"
	"strings"
)

// PaymentStatus is the lifecycle state of a Payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCompleted PaymentStatus = "completed"
)

// ApplicationStatus is the review state of an Application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// LogLevel is the severity of a LogRecord.
type LogLevel string

const (
	LevelDebug   LogLevel = "DEBUG"
	LevelInfo    LogLevel = "INFO"
	LevelWarning LogLevel = "WARNING"
	LevelError   LogLevel = "ERROR"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentPaid, PaymentFailed, PaymentCompleted},
	PaymentPaid:      {PaymentCompleted},
	PaymentFailed:    {PaymentPending},
	PaymentCompleted: nil,
}

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationPending:  {ApplicationApproved, ApplicationRejected},
	ApplicationApproved: nil,
	ApplicationRejected: nil,
}

// ParsePaymentStatus validates s against the payment status domain.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := paymentTransitions[st]; !ok {
		return "", fmt.Errorf("%w: unknown payment status %q", ErrValidation, s)
	}
	return st, nil
}

// ParseLogLevel accepts any case and normalizes to upper case.
func ParseLogLevel(s string) (LogLevel, error) {
	switch lvl := LogLevel(strings.ToUpper(strings.TrimSpace(s))); lvl {
	case LevelDebug, LevelInfo, LevelWarning, LevelError:
		return lvl, nil
	}
	return "", fmt.Errorf("%w: unknown log level %q", ErrValidation, s)
}

// TransitionPolicy decides whether a status change is legal. The permissive
// policy accepts any move between known statuses.
type TransitionPolicy struct {
	Strict bool
}

// CheckPayment returns ErrInvalidTransition when strict and from → to is not in
// the table. Re-applying the current status is always allowed.
func (p TransitionPolicy) CheckPayment(from, to PaymentStatus) error {
	if !p.Strict || from == to {
		return nil
	}
	for _, next := range paymentTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, from, to)
}

// CheckApplication is the Application counterpart of CheckPayment.
func (p TransitionPolicy) CheckApplication(from, to ApplicationStatus) error {
	if !p.Strict || from == to {
		return nil
	}
	for _, next := range applicationTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: application %s -> %s", ErrInvalidTransition, from, to)
}
