package checkout

import (
	"context"
	"sync"

	cartdomain "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/domain"
	orders "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/repository"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment/session"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/referral"
)

type fakeCarts struct {
	mu      sync.Mutex
	carts   map[string]*cartdomain.Cart
	cleared []string
}

func newFakeCarts(carts ...*cartdomain.Cart) *fakeCarts {
	f := &fakeCarts{carts: map[string]*cartdomain.Cart{}}
	for _, c := range carts {
		f.carts[c.ID] = c
	}
	return f
}

func (f *fakeCarts) LoadCart(_ context.Context, id string) (*cartdomain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.carts[id]; ok {
		return c, nil
	}
	return cartdomain.NewCart(id, "EUR"), nil
}

func (f *fakeCarts) ClearCart(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, id)
	if c, ok := f.carts[id]; ok {
		c.Clear()
	}
	return nil
}

type fakeBuilder struct {
	mu        sync.Mutex
	oneTime   []session.OneTimeRequest
	recurring []session.RecurringRequest
	err       error
	gate      chan struct{}
	entered   chan struct{}
}

func (f *fakeBuilder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.oneTime) + len(f.recurring)
}

func (f *fakeBuilder) wait() {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeBuilder) CreateOneTime(_ context.Context, req session.OneTimeRequest) (*payment.Session, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.oneTime = append(f.oneTime, req)
	if f.err != nil {
		return nil, f.err
	}
	return &payment.Session{ID: "cs_one", URL: "https://pay.example/cs_one"}, nil
}

func (f *fakeBuilder) CreateRecurring(_ context.Context, req session.RecurringRequest) (*payment.Session, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recurring = append(f.recurring, req)
	if f.err != nil {
		return nil, f.err
	}
	return &payment.Session{ID: "cs_sub", URL: "https://pay.example/cs_sub"}, nil
}

type fakeValidator struct {
	result referral.Result
	err    error
	calls  []referral.Request
}

func (f *fakeValidator) Validate(_ context.Context, req referral.Request) (referral.Result, error) {
	f.calls = append(f.calls, req)
	return f.result, f.err
}

type fakeLedger struct {
	mu      sync.Mutex
	order   *orders.Order
	readyAt int
	lookups int
	err     error
}

func (f *fakeLedger) GetOrderBySessionID(_ context.Context, _ string) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	if f.order == nil || f.lookups < f.readyAt {
		return nil, repository.ErrOrderNotFound
	}
	return f.order, nil
}
