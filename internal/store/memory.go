package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/punchamoorthee/payflow/internal/domain"
)

// table is a mutex-guarded map that remembers insertion order. Values are
// copied in and out; callers never hold a reference into the map.
type table[T any] struct {
	kind  string
	mu    sync.RWMutex
	items map[string]T
	order []string
}

func newTable[T any](kind string) *table[T] {
	return &table[T]{kind: kind, items: make(map[string]T)}
}

func (t *table[T]) notFound(id string) error {
	return fmt.Errorf("%s %s: %w", t.kind, id, domain.ErrNotFound)
}

func (t *table[T]) create(id string, v T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[id]; ok {
		return fmt.Errorf("%s %s: %w", t.kind, id, domain.ErrConflict)
	}
	t.items[id] = v
	t.order = append(t.order, id)
	return nil
}

func (t *table[T]) get(id string) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.items[id]
	if !ok {
		var zero T
		return zero, t.notFound(id)
	}
	return v, nil
}

func (t *table[T]) list() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.items[id])
	}
	return out
}

// update runs fn on a copy under the write lock and stores the result only if
// fn succeeds.
func (t *table[T]) update(id string, fn func(*T) error) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[id]
	if !ok {
		var zero T
		return zero, t.notFound(id)
	}
	if err := fn(&v); err != nil {
		var zero T
		return zero, err
	}
	t.items[id] = v
	return v, nil
}

func (t *table[T]) remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[id]; !ok {
		return t.notFound(id)
	}
	delete(t.items, id)
	for i, k := range t.order {
		if k == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// MemoryStore keeps services, payments and applications in process memory,
// one mutex per map.
type MemoryStore struct {
	services     *table[domain.ServiceDefinition]
	payments     *table[domain.Payment]
	applications *table[domain.Application]
}

var (
	_ ServiceStore     = (*MemoryStore)(nil)
	_ PaymentStore     = (*MemoryStore)(nil)
	_ ApplicationStore = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		services:     newTable[domain.ServiceDefinition]("payment service"),
		payments:     newTable[domain.Payment]("payment"),
		applications: newTable[domain.Application]("application"),
	}
}

func (s *MemoryStore) CreateService(_ context.Context, def domain.ServiceDefinition) error {
	return s.services.create(def.ServiceID, def)
}

func (s *MemoryStore) GetService(_ context.Context, id string) (domain.ServiceDefinition, error) {
	return s.services.get(id)
}

func (s *MemoryStore) ListServices(_ context.Context) ([]domain.ServiceDefinition, error) {
	return s.services.list(), nil
}

func (s *MemoryStore) UpdateService(_ context.Context, id string, fn func(*domain.ServiceDefinition) error) (domain.ServiceDefinition, error) {
	return s.services.update(id, fn)
}

func (s *MemoryStore) DeleteService(_ context.Context, id string) error {
	return s.services.remove(id)
}

func (s *MemoryStore) CreatePayment(_ context.Context, p domain.Payment) error {
	return s.payments.create(p.PaymentID, p)
}

func (s *MemoryStore) GetPayment(_ context.Context, id string) (domain.Payment, error) {
	return s.payments.get(id)
}

func (s *MemoryStore) ListPayments(_ context.Context) ([]domain.Payment, error) {
	return s.payments.list(), nil
}

func (s *MemoryStore) UpdatePayment(_ context.Context, id string, fn func(*domain.Payment) error) (domain.Payment, error) {
	return s.payments.update(id, fn)
}

func (s *MemoryStore) DeletePayment(_ context.Context, id string) error {
	return s.payments.remove(id)
}

func (s *MemoryStore) CreateApplication(_ context.Context, a domain.Application) error {
	return s.applications.create(a.ApplicationID, a)
}

func (s *MemoryStore) GetApplication(_ context.Context, id string) (domain.Application, error) {
	return s.applications.get(id)
}

func (s *MemoryStore) UpdateApplication(_ context.Context, id string, fn func(*domain.Application) error) (domain.Application, error) {
	return s.applications.update(id, fn)
}

func (s *MemoryStore) DeleteApplication(_ context.Context, id string) error {
	return s.applications.remove(id)
}
