// Package store holds the payment engine's entity stores and the log sink's
// record backends.
package store

import (
	"context"

	"github.com/punchamoorthee/payflow/internal/domain"
)

// ServiceStore owns the service catalog.
type ServiceStore interface {
	CreateService(ctx context.Context, def domain.ServiceDefinition) error
	GetService(ctx context.Context, id string) (domain.ServiceDefinition, error)
	ListServices(ctx context.Context) ([]domain.ServiceDefinition, error)
	UpdateService(ctx context.Context, id string, fn func(*domain.ServiceDefinition) error) (domain.ServiceDefinition, error)
	DeleteService(ctx context.Context, id string) error
}

// PaymentStore owns payments.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p domain.Payment) error
	GetPayment(ctx context.Context, id string) (domain.Payment, error)
	ListPayments(ctx context.Context) ([]domain.Payment, error)
	UpdatePayment(ctx context.Context, id string, fn func(*domain.Payment) error) (domain.Payment, error)
	DeletePayment(ctx context.Context, id string) error
}

// ApplicationStore owns payment applications.
type ApplicationStore interface {
	CreateApplication(ctx context.Context, a domain.Application) error
	GetApplication(ctx context.Context, id string) (domain.Application, error)
	UpdateApplication(ctx context.Context, id string, fn func(*domain.Application) error) (domain.Application, error)
	DeleteApplication(ctx context.Context, id string) error
}

// RecordStore is an append-only log record backend, partitioned by source
// service. Query returns records in insertion order.
type RecordStore interface {
	Append(ctx context.Context, rec domain.LogRecord) error
	Query(ctx context.Context, q domain.LogQuery) (domain.LogPage, error)
	Close() error
}
