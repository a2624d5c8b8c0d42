// Package service is the payment workflow engine. It owns services, payments
// and applications, enforces status transitions and fans out best-effort
// notifications after every committed change.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/payflow/internal/domain"
	"github.com/punchamoorthee/payflow/internal/models"
	"github.com/punchamoorthee/payflow/internal/store"
)

const DefaultNotifyTimeout = 10 * time.Second

// Notifier delivers templated notifications. The mailer HTTP client
// satisfies it.
type Notifier interface {
	SendTemplate(ctx context.Context, req models.TemplateEmailRequest) error
}

// Options tunes a Workflow. The zero value is permissive, dispatches inline
// and uses real clocks and uuids.
type Options struct {
	Policy        domain.TransitionPolicy
	NotifyTimeout time.Duration
	// AsyncNotify dispatches notifications on a detached goroutine; Wait
	// drains them.
	AsyncNotify bool

	Now   func() time.Time
	NewID func() string
}

type Workflow struct {
	services     store.ServiceStore
	payments     store.PaymentStore
	applications store.ApplicationStore
	notifier     Notifier
	logger       *slog.Logger

	policy  domain.TransitionPolicy
	timeout time.Duration
	async   bool
	now     func() time.Time
	newID   func() string

	inflight sync.WaitGroup
}

func NewWorkflow(services store.ServiceStore, payments store.PaymentStore, applications store.ApplicationStore, notifier Notifier, logger *slog.Logger, opts Options) *Workflow {
	w := &Workflow{
		services:     services,
		payments:     payments,
		applications: applications,
		notifier:     notifier,
		logger:       logger,
		policy:       opts.Policy,
		timeout:      opts.NotifyTimeout,
		async:        opts.AsyncNotify,
		now:          opts.Now,
		newID:        opts.NewID,
	}
	if w.timeout <= 0 {
		w.timeout = DefaultNotifyTimeout
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.newID == nil {
		w.newID = uuid.NewString
	}
	return w
}

// Wait blocks until every asynchronous notification has finished.
func (w *Workflow) Wait() { w.inflight.Wait() }

// RegisterService adds def to the catalog. Duplicate ids are a conflict.
func (w *Workflow) RegisterService(ctx context.Context, def domain.ServiceDefinition) (domain.ServiceDefinition, error) {
	if err := domain.Require("service_id", def.ServiceID, "name", def.Name); err != nil {
		return domain.ServiceDefinition{}, err
	}
	if def.BasePrice.IsNegative() {
		return domain.ServiceDefinition{}, fmt.Errorf("%w: base_price must not be negative", domain.ErrValidation)
	}
	if err := w.services.CreateService(ctx, def); err != nil {
		return domain.ServiceDefinition{}, err
	}
	w.logger.InfoContext(ctx, "payment service registered", "service_id", def.ServiceID, "name", def.Name)
	return def, nil
}

func (w *Workflow) GetService(ctx context.Context, id string) (domain.ServiceDefinition, error) {
	return w.services.GetService(ctx, id)
}

func (w *Workflow) ListServices(ctx context.Context) ([]domain.ServiceDefinition, error) {
	return w.services.ListServices(ctx)
}

// UpdateService overwrites only the fields present in u.
func (w *Workflow) UpdateService(ctx context.Context, id string, u domain.ServiceUpdate) (domain.ServiceDefinition, error) {
	if u.BasePrice != nil && u.BasePrice.IsNegative() {
		return domain.ServiceDefinition{}, fmt.Errorf("%w: base_price must not be negative", domain.ErrValidation)
	}
	def, err := w.services.UpdateService(ctx, id, func(d *domain.ServiceDefinition) error {
		u.Apply(d)
		return nil
	})
	if err != nil {
		return domain.ServiceDefinition{}, err
	}
	w.logger.InfoContext(ctx, "payment service updated", "service_id", id)
	return def, nil
}

// DeleteService removes the catalog entry. Payments and applications that
// reference it are left alone and later resolve to UnknownServiceName.
func (w *Workflow) DeleteService(ctx context.Context, id string) error {
	if err := w.services.DeleteService(ctx, id); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "payment service deleted", "service_id", id)
	return nil
}

func (w *Workflow) serviceName(ctx context.Context, id string) string {
	def, err := w.services.GetService(ctx, id)
	if err != nil {
		return domain.UnknownServiceName
	}
	return def.Name
}
