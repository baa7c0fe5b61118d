package webhook

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/repository"
)

type memoryLedger struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	events    []domain.OrderCompletedEvent
	usages    []*domain.ReferralUsage
	users     map[string]*domain.User
	usageErr  error
	createErr error
	lookupErr error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		orders: map[string]*domain.Order{},
		users:  map[string]*domain.User{},
	}
}

func (m *memoryLedger) GetOrderByPaymentIntent(_ context.Context, key string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	o, ok := m.orders[key]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (m *memoryLedger) CreateOrderWithEvent(_ context.Context, o *domain.Order, ev domain.OrderCompletedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.orders[o.PaymentIntentID]; ok {
		return repository.ErrDuplicatePayment
	}
	m.orders[o.PaymentIntentID] = o
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryLedger) CreateReferralUsage(_ context.Context, u *domain.ReferralUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usageErr != nil {
		return m.usageErr
	}
	m.usages = append(m.usages, u)
	return nil
}

func (m *memoryLedger) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memoryLedger) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type fakeDirectory struct {
	referrers map[string]*domain.Referrer
	err       error
}

func (f *fakeDirectory) FindReferrerByCode(_ context.Context, code string) (*domain.Referrer, error) {
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.referrers[strings.ToLower(code)]; ok {
		return r, nil
	}
	return nil, repository.ErrReferrerNotFound
}

var errDatabaseDown = errors.New("database down")
