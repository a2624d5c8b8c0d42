package service

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/payflow/internal/domain"
	"github.com/punchamoorthee/payflow/internal/models"
)

const approvalMessage = "Application approved and payment created"

// ApplyForPayment records a pending application against a known service.
func (w *Workflow) ApplyForPayment(ctx context.Context, req models.ApplyRequest) (domain.Application, error) {
	if err := domain.Require("service_id", req.ServiceID, "reason", req.Reason); err != nil {
		return domain.Application{}, err
	}
	if err := validatePayer(req.UserID, req.Email, req.Amount); err != nil {
		return domain.Application{}, err
	}
	def, err := w.services.GetService(ctx, req.ServiceID)
	if err != nil {
		return domain.Application{}, err
	}

	now := w.now().UTC()
	a := domain.Application{
		ApplicationID: w.newID(),
		UserID:        req.UserID,
		ServiceID:     req.ServiceID,
		Amount:        req.Amount,
		Reason:        req.Reason,
		Email:         req.Email,
		Status:        domain.ApplicationPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := w.applications.CreateApplication(ctx, a); err != nil {
		return domain.Application{}, fmt.Errorf("store application: %w", err)
	}
	w.logger.InfoContext(ctx, "application created", "application_id", a.ApplicationID, "service_id", a.ServiceID)
	w.notify(ctx, "application_created", a.Email, applicationData(a, def.Name))
	return a, nil
}

func (w *Workflow) GetApplication(ctx context.Context, id string) (domain.Application, error) {
	return w.applications.GetApplication(ctx, id)
}

// ApproveApplication approves the application and creates the pending
// payment it asked for. Approving an application that already carries a
// payment returns that payment instead of creating another. If the payment
// cannot be stored the application is put back the way it was.
func (w *Workflow) ApproveApplication(ctx context.Context, id string) (models.ApprovalResponse, error) {
	paymentID := w.newID()
	created := false
	var prior domain.Application
	a, err := w.applications.UpdateApplication(ctx, id, func(a *domain.Application) error {
		if err := w.policy.CheckApplication(a.Status, domain.ApplicationApproved); err != nil {
			return err
		}
		if a.Status == domain.ApplicationApproved && a.PaymentID != "" {
			return nil
		}
		prior = *a
		a.Status = domain.ApplicationApproved
		a.PaymentID = paymentID
		a.UpdatedAt = w.now().UTC()
		created = true
		return nil
	})
	if err != nil {
		return models.ApprovalResponse{}, err
	}
	resp := models.ApprovalResponse{Message: approvalMessage, PaymentID: a.PaymentID, Status: string(a.Status)}
	if !created {
		return resp, nil
	}

	now := w.now().UTC()
	p := domain.Payment{
		PaymentID: paymentID,
		ServiceID: a.ServiceID,
		Amount:    a.Amount,
		UserID:    a.UserID,
		Email:     a.Email,
		Status:    domain.PaymentPending,
		OrderID:   a.ApplicationID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.payments.CreatePayment(ctx, p); err != nil {
		w.revertApproval(ctx, prior, paymentID)
		return models.ApprovalResponse{}, fmt.Errorf("store payment for application %s: %w", id, err)
	}
	w.logger.InfoContext(ctx, "application approved", "application_id", id, "payment_id", paymentID)

	name := w.serviceName(ctx, a.ServiceID)
	data := applicationData(a, name)
	data["payment_id"] = paymentID
	w.notify(ctx, "application_approved", a.Email, data)
	w.notifyPaymentCreated(ctx, p, name)
	return resp, nil
}

// revertApproval restores prior unless another approval has since replaced
// the payment it was holding.
func (w *Workflow) revertApproval(ctx context.Context, prior domain.Application, paymentID string) {
	_, err := w.applications.UpdateApplication(ctx, prior.ApplicationID, func(a *domain.Application) error {
		if a.PaymentID != paymentID {
			return nil
		}
		a.Status = prior.Status
		a.PaymentID = prior.PaymentID
		a.UpdatedAt = prior.UpdatedAt
		return nil
	})
	if err != nil {
		w.logger.ErrorContext(ctx, "revert application approval", "application_id", prior.ApplicationID, "error", err)
	}
}

// RejectApplication rejects the application. A reason is required and is
// passed on to the applicant.
func (w *Workflow) RejectApplication(ctx context.Context, id, reason string) (domain.Application, error) {
	if err := domain.Require("reason", reason); err != nil {
		return domain.Application{}, err
	}
	a, err := w.applications.UpdateApplication(ctx, id, func(a *domain.Application) error {
		if err := w.policy.CheckApplication(a.Status, domain.ApplicationRejected); err != nil {
			return err
		}
		a.Status = domain.ApplicationRejected
		a.UpdatedAt = w.now().UTC()
		return nil
	})
	if err != nil {
		return domain.Application{}, err
	}
	w.logger.InfoContext(ctx, "application rejected", "application_id", id, "reason", reason)

	data := applicationData(a, w.serviceName(ctx, a.ServiceID))
	data["reason"] = reason
	w.notify(ctx, "application_rejected", a.Email, data)
	return a, nil
}

// DeleteApplication notifies the applicant and then removes the application.
func (w *Workflow) DeleteApplication(ctx context.Context, id string) error {
	a, err := w.applications.GetApplication(ctx, id)
	if err != nil {
		return err
	}
	w.notify(ctx, "application_deleted", a.Email, applicationData(a, w.serviceName(ctx, a.ServiceID)))
	if err := w.applications.DeleteApplication(ctx, id); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "application deleted", "application_id", id)
	return nil
}

func applicationData(a domain.Application, serviceName string) map[string]any {
	return map[string]any{
		"application_id": a.ApplicationID,
		"service_name":   serviceName,
		"amount":         a.Amount,
	}
}
