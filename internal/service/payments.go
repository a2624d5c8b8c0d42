package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/payflow/internal/domain"
	"github.com/punchamoorthee/payflow/internal/models"
)

const (
	dueDateLayout = "2006-01-02"

	// Reasons carried by payment_failed notifications.
	ReasonInvalidCard      = "invalid card"
	ReasonProcessingFailed = "payment processing failed"
)

func validatePayer(userID, email string, amount decimal.Decimal) error {
	if err := domain.Require("user_id", userID, "email", email); err != nil {
		return err
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}
	return domain.ValidateEmail(email)
}

// CreatePayment stores a pending payment for a known service and announces
// it. An unknown service is rejected before anything is stored.
func (w *Workflow) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (domain.Payment, error) {
	if err := domain.Require("service_id", req.ServiceID); err != nil {
		return domain.Payment{}, err
	}
	if err := validatePayer(req.UserID, req.Email, req.Amount); err != nil {
		return domain.Payment{}, err
	}
	def, err := w.services.GetService(ctx, req.ServiceID)
	if err != nil {
		return domain.Payment{}, err
	}

	now := w.now().UTC()
	p := domain.Payment{
		PaymentID: w.newID(),
		ServiceID: req.ServiceID,
		Amount:    req.Amount,
		UserID:    req.UserID,
		Email:     req.Email,
		Status:    domain.PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.payments.CreatePayment(ctx, p); err != nil {
		return domain.Payment{}, fmt.Errorf("store payment: %w", err)
	}
	w.logger.InfoContext(ctx, "payment created", "payment_id", p.PaymentID, "service_id", p.ServiceID, "amount", p.Amount.String())
	w.notifyPaymentCreated(ctx, p, def.Name)
	return p, nil
}

func (w *Workflow) notifyPaymentCreated(ctx context.Context, p domain.Payment, serviceName string) {
	w.notify(ctx, "payment_created", p.Email, map[string]any{
		"payment_id":   p.PaymentID,
		"service_name": serviceName,
		"amount":       p.Amount,
		"due_date":     p.DueDate().Format(dueDateLayout),
	})
}

func (w *Workflow) GetPayment(ctx context.Context, id string) (domain.Payment, error) {
	return w.payments.GetPayment(ctx, id)
}

func (w *Workflow) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	return w.payments.ListPayments(ctx)
}

// UpdatePaymentStatus moves a payment to status, subject to the transition
// policy. Moving to paid or failed sends the matching notification.
func (w *Workflow) UpdatePaymentStatus(ctx context.Context, id, status string) (domain.Payment, error) {
	to, err := domain.ParsePaymentStatus(status)
	if err != nil {
		return domain.Payment{}, err
	}
	p, err := w.transition(ctx, id, to, nil)
	if err != nil {
		return domain.Payment{}, err
	}
	switch to {
	case domain.PaymentPaid:
		w.notifyPaymentSuccess(ctx, p)
	case domain.PaymentFailed:
		w.notifyPaymentFailed(ctx, p, ReasonInvalidCard)
	}
	return p, nil
}

// ProcessPayment marks a payment paid. A transaction id is generated when
// the caller has none.
func (w *Workflow) ProcessPayment(ctx context.Context, id, transactionID string) (domain.Payment, error) {
	if transactionID == "" {
		transactionID = w.newID()
	}
	p, err := w.transition(ctx, id, domain.PaymentPaid, func(p *domain.Payment) {
		p.TransactionID = transactionID
	})
	if err != nil {
		return domain.Payment{}, err
	}
	w.notifyPaymentSuccess(ctx, p)
	return p, nil
}

// FailPayment marks a payment failed.
func (w *Workflow) FailPayment(ctx context.Context, id, reason string) (domain.Payment, error) {
	if reason == "" {
		reason = ReasonProcessingFailed
	}
	p, err := w.transition(ctx, id, domain.PaymentFailed, nil)
	if err != nil {
		return domain.Payment{}, err
	}
	w.notifyPaymentFailed(ctx, p, reason)
	return p, nil
}

func (w *Workflow) transition(ctx context.Context, id string, to domain.PaymentStatus, mutate func(*domain.Payment)) (domain.Payment, error) {
	var from domain.PaymentStatus
	p, err := w.payments.UpdatePayment(ctx, id, func(p *domain.Payment) error {
		if err := w.policy.CheckPayment(p.Status, to); err != nil {
			return err
		}
		from = p.Status
		p.Status = to
		p.UpdatedAt = w.now().UTC()
		if mutate != nil {
			mutate(p)
		}
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}
	w.logger.InfoContext(ctx, "payment status changed", "payment_id", id, "from", string(from), "to", string(to))
	return p, nil
}

func (w *Workflow) notifyPaymentSuccess(ctx context.Context, p domain.Payment) {
	data := map[string]any{
		"payment_id":   p.PaymentID,
		"service_name": w.serviceName(ctx, p.ServiceID),
		"amount":       p.Amount,
	}
	if p.TransactionID != "" {
		data["transaction_id"] = p.TransactionID
	}
	w.notify(ctx, "payment_success", p.Email, data)
}

func (w *Workflow) notifyPaymentFailed(ctx context.Context, p domain.Payment, reason string) {
	w.notify(ctx, "payment_failed", p.Email, map[string]any{
		"payment_id":   p.PaymentID,
		"service_name": w.serviceName(ctx, p.ServiceID),
		"amount":       p.Amount,
		"reason":       reason,
	})
}

func (w *Workflow) DeletePayment(ctx context.Context, id string) error {
	if err := w.payments.DeletePayment(ctx, id); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "payment deleted", "payment_id", id)
	return nil
}
