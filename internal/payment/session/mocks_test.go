package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment/pricecache"
)

type fakeProcessor struct {
	mu        sync.Mutex
	products  []payment.ProductParams
	prices    []payment.PriceParams
	coupons   []payment.CouponParams
	customers []string
	sessions  []payment.SessionParams
	failOn    string
}

func (f *fakeProcessor) fail(op string) error {
	if f.failOn == op {
		return fmt.Errorf("%w: %s rejected", payment.ErrProcessor, op)
	}
	return nil
}

func (f *fakeProcessor) CreateProduct(_ context.Context, p payment.ProductParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("product"); err != nil {
		return "", err
	}
	f.products = append(f.products, p)
	return fmt.Sprintf("prod_%d", len(f.products)), nil
}

func (f *fakeProcessor) CreatePrice(_ context.Context, p payment.PriceParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("price"); err != nil {
		return "", err
	}
	f.prices = append(f.prices, p)
	return fmt.Sprintf("price_%d", len(f.prices)), nil
}

func (f *fakeProcessor) CreateCoupon(_ context.Context, p payment.CouponParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("coupon"); err != nil {
		return "", err
	}
	f.coupons = append(f.coupons, p)
	return fmt.Sprintf("coupon_%d", len(f.coupons)), nil
}

func (f *fakeProcessor) FindOrCreateCustomer(_ context.Context, email, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("customer"); err != nil {
		return "", err
	}
	for i, c := range f.customers {
		if c == email {
			return fmt.Sprintf("cus_%d", i+1), nil
		}
	}
	f.customers = append(f.customers, email)
	return fmt.Sprintf("cus_%d", len(f.customers)), nil
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, p payment.SessionParams) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("session"); err != nil {
		return nil, err
	}
	f.sessions = append(f.sessions, p)
	id := fmt.Sprintf("cs_test_%d", len(f.sessions))
	return &payment.Session{ID: id, URL: "https://pay.example.com/" + id}, nil
}

func (f *fakeProcessor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.products) + len(f.prices) + len(f.coupons) + len(f.customers) + len(f.sessions)
}

type memoryPriceCache struct {
	prices map[string]string
	err    error
}

func (m *memoryPriceCache) Get(_ context.Context, planID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	id, ok := m.prices[planID]
	if !ok {
		return "", pricecache.ErrMiss
	}
	return id, nil
}

func (m *memoryPriceCache) Set(_ context.Context, planID, priceID string) error {
	if m.err != nil {
		return m.err
	}
	m.prices[planID] = priceID
	return nil
}
