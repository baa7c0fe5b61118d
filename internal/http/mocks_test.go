package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/service"
	catalog "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/catalog/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/checkout"
	orders "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/repository"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/webhook"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/plans"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/referral"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/pkg/logger"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

type CartServiceMock struct {
	cart     *domain.Cart
	err      error
	lastID   string
	assigned string
}

func (m *CartServiceMock) result(id string) (*domain.Cart, error) {
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return domain.NewCart(id, "EUR"), nil
	}
	return m.cart, nil
}

func (m *CartServiceMock) GetCart(_ context.Context, id string) (*domain.Cart, error) {
	return m.result(id)
}

func (m *CartServiceMock) AddItem(_ context.Context, id string, _ service.AddItemRequest) (*domain.Cart, error) {
	return m.result(id)
}

func (m *CartServiceMock) AddSubscription(_ context.Context, id string, _ plans.Selector) (*domain.Cart, error) {
	return m.result(id)
}

func (m *CartServiceMock) UpdateQuantity(_ context.Context, id, _, _ string, _ int) (*domain.Cart, error) {
	return m.result(id)
}

func (m *CartServiceMock) RemoveItem(_ context.Context, id, _, _ string) (*domain.Cart, error) {
	return m.result(id)
}

func (m *CartServiceMock) AssignUser(_ context.Context, id, userID string) (*domain.Cart, error) {
	m.assigned = userID
	c, err := m.result(id)
	if err != nil {
		return nil, err
	}
	bound := *c
	bound.UserID = userID
	return &bound, nil
}

func (m *CartServiceMock) ClearCart(_ context.Context, id string) error {
	m.lastID = id
	return m.err
}

type CatalogMock struct {
	products []*catalog.Product
	err      error
}

func (m *CatalogMock) ListAvailableProducts(context.Context) ([]*catalog.Product, error) {
	return m.products, m.err
}

func (m *CatalogMock) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, m.err
}

func (m *CatalogMock) GetCategories(context.Context) ([]*catalog.Category, error) {
	return []*catalog.Category{{ID: "pouches", Name: "Pouches"}}, m.err
}

type ValidatorMock struct {
	result referral.Result
	err    error
}

func (m *ValidatorMock) Validate(context.Context, referral.Request) (referral.Result, error) {
	return m.result, m.err
}

type CheckoutMock struct {
	result  checkout.Result
	err     error
	order   *orders.Order
	await   error
	lastReq checkout.SubmitRequest
}

func (m *CheckoutMock) Submit(_ context.Context, req checkout.SubmitRequest) (checkout.Result, error) {
	m.lastReq = req
	return m.result, m.err
}

func (m *CheckoutMock) AwaitOrder(context.Context, string) (*orders.Order, error) {
	return m.order, m.await
}

type ReconcilerMock struct {
	outcome webhook.Outcome
	err     error
	payload []byte
	sig     string
}

func (m *ReconcilerMock) Handle(_ context.Context, payload []byte, sig string) (webhook.Outcome, error) {
	m.payload, m.sig = payload, sig
	return m.outcome, m.err
}

type LedgerMock struct {
	orders    []*orders.Order
	usages    []*orders.ReferralUsage
	stats     []*orders.ReferrerStats
	referrer  *orders.Referrer
	payout    *orders.ReferralPayout
	err       error
	users     []*orders.User
	referrers []*orders.Referrer
	approved  []string
	payoutReq repository.PayoutRequest
}

func (m *LedgerMock) ListOrders(context.Context) ([]*orders.Order, error) { return m.orders, m.err }

func (m *LedgerMock) ListReferralUsages(context.Context) ([]*orders.ReferralUsage, error) {
	return m.usages, m.err
}

func (m *LedgerMock) ListReferrerStats(context.Context) ([]*orders.ReferrerStats, error) {
	return m.stats, m.err
}

func (m *LedgerMock) ApproveUsage(_ context.Context, id string) error {
	m.approved = append(m.approved, id)
	return m.err
}

func (m *LedgerMock) CreatePayout(_ context.Context, req repository.PayoutRequest) (*orders.ReferralPayout, error) {
	m.payoutReq = req
	return m.payout, m.err
}

func (m *LedgerMock) CreateReferrer(_ context.Context, ref *orders.Referrer) error {
	if m.err != nil {
		return m.err
	}
	ref.ID = "ref-1"
	m.referrers = append(m.referrers, ref)
	return nil
}

func (m *LedgerMock) UpsertUser(_ context.Context, u *orders.User) error {
	m.users = append(m.users, u)
	return nil
}

func (m *LedgerMock) GetReferrerByUserID(context.Context, string) (*orders.Referrer, error) {
	if m.referrer == nil {
		return nil, repository.ErrReferrerNotFound
	}
	return m.referrer, nil
}

func (m *LedgerMock) GetReferrerStats(context.Context, string) (*orders.ReferrerStats, error) {
	if len(m.stats) == 0 {
		return &orders.ReferrerStats{}, nil
	}
	return m.stats[0], nil
}

func (m *LedgerMock) ListUsagesByReferrer(context.Context, string) ([]*orders.ReferralUsage, error) {
	return m.usages, nil
}

func (m *LedgerMock) ListOrdersByUserID(context.Context, string) ([]*orders.Order, error) {
	return m.orders, m.err
}

type testAPI struct {
	handler    http.Handler
	auth       *Authenticator
	carts      *CartServiceMock
	catalog    *CatalogMock
	validator  *ValidatorMock
	checkout   *CheckoutMock
	reconciler *ReconcilerMock
	ledger     *LedgerMock
}

func newTestAPI() *testAPI {
	api := &testAPI{
		auth:       NewAuthenticator(testSecret),
		carts:      &CartServiceMock{},
		catalog:    &CatalogMock{},
		validator:  &ValidatorMock{},
		checkout:   &CheckoutMock{},
		reconciler: &ReconcilerMock{},
		ledger:     &LedgerMock{},
	}
	log := logger.Discard()
	api.handler = NewRouter(Handlers{
		Cart:     NewCartHandler(api.carts, 5*time.Second, log),
		Catalog:  NewCatalogHandler(api.catalog, 5*time.Second, log),
		Referral: NewReferralHandler(api.validator, 5*time.Second, log),
		Checkout: NewCheckoutHandler(api.checkout, api.ledger, log),
		Webhook:  NewWebhookHandler(api.reconciler, log),
		Admin:    NewAdminHandler(api.ledger, 5*time.Second, log),
		Profile:  NewProfileHandler(api.ledger, 5*time.Second, log),
	}, api.auth, 5*time.Second)
	return api
}

func (api *testAPI) token(t *testing.T, p Principal) string {
	t.Helper()
	tok, err := api.auth.IssueToken(p, time.Hour)
	require.NoError(t, err)
	return tok
}

func (api *testAPI) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
