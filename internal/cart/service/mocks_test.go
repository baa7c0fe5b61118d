package service

import (
	"context"
	"sync"
	"time"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/cache"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/repository"
	catalog "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/catalog/domain"
	catalogrepo "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/catalog/repository"
)

type mockRepository struct {
	mu       sync.Mutex
	carts    map[string]*domain.Cart
	getCalls int
	err      error
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: map[string]*domain.Cart{}}
}

func (m *mockRepository) GetCart(_ context.Context, id string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[id]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	cp := *c
	cp.Lines = append([]domain.CartLine{}, c.Lines...)
	return &cp, nil
}

func (m *mockRepository) SaveCart(_ context.Context, c *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cp := *c
	cp.Lines = append([]domain.CartLine{}, c.Lines...)
	m.carts[c.ID] = &cp
	return nil
}

func (m *mockRepository) DeleteCart(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.carts[id]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, id)
	return nil
}

func (m *mockRepository) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

type mockCache struct {
	mu      sync.Mutex
	carts   map[string]*domain.Cart
	deletes int
	err     error

	// setEntered and setGate, when set, hold Set until the test releases it.
	setEntered chan struct{}
	setGate    chan struct{}
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}}
}

func (m *mockCache) Get(_ context.Context, id string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *mockCache) Set(_ context.Context, c *domain.Cart) error {
	if m.setGate != nil {
		m.setEntered <- struct{}{}
		<-m.setGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.ID] = c
	return nil
}

func (m *mockCache) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.carts, id)
	return nil
}

func (m *mockCache) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carts[id]
	return ok
}

type mockCatalog struct {
	products map[string]*catalog.Product
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalogrepo.ErrProductNotFound
	}
	return p, nil
}

func testCatalog() *mockCatalog {
	return &mockCatalog{products: map[string]*catalog.Product{
		"P1": {ID: "P1", Name: "Brass tin", Price: 2000, Currency: "EUR", Stock: 10, Available: true,
			Variants: []catalog.Variant{
				{ID: "P1-black", Color: "black", Stock: 5},
				{ID: "P1-gold", Color: "gold", PriceAdjustment: 500, Stock: 1},
			}},
		"P2":     {ID: "P2", Name: "Leather pouch", Price: 1500, Currency: "EUR", Stock: 3, Available: true},
		"P3":     {ID: "P3", Name: "Sold out", Price: 900, Currency: "EUR", Stock: 0, Available: true},
		"P4":     {ID: "P4", Name: "Retired", Price: 900, Currency: "EUR", Stock: 9, Available: false},
		"USD-P5": {ID: "USD-P5", Name: "Import", Price: 900, Currency: "USD", Stock: 9, Available: true},
	}}
}

const (
	testWait = time.Second
	testTick = 10 * time.Millisecond
)
