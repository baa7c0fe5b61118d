package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(creds))

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return repo, cleanup
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestOrder(paymentIntent string) *domain.Order {
	return &domain.Order{
		ID:                uuid.NewString(),
		CheckoutSessionID: "cs_" + paymentIntent,
		PaymentIntentID:   paymentIntent,
		CustomerEmail:     "buyer@example.com",
		Items: []domain.LineItem{
			{ProductID: "P1", Name: "Brass tin", Price: dec("20"), Quantity: 2},
			{ProductID: "P2", Name: "Pouch", Price: dec("15"), Quantity: 1},
		},
		TotalAmount:    dec("55"),
		DiscountAmount: decimal.Zero,
		Currency:       "EUR",
		Status:         domain.OrderStatusCompleted,
	}
}

func createOrder(t *testing.T, repo *Repository, paymentIntent string) *domain.Order {
	t.Helper()
	o := newTestOrder(paymentIntent)
	require.NoError(t, repo.CreateOrderWithEvent(context.Background(), o, domain.OrderCompletedEvent{
		OrderID: o.ID, CheckoutSessionID: o.CheckoutSessionID, Total: o.TotalAmount, Currency: o.Currency,
	}))
	return o
}

func createReferrer(t *testing.T, repo *Repository, code string) *domain.Referrer {
	t.Helper()
	ref := &domain.Referrer{Code: code, Name: "Referrer " + code, Email: code + "@example.com"}
	require.NoError(t, repo.CreateReferrer(context.Background(), ref))
	return ref
}

func createUsage(t *testing.T, repo *Repository, referrerID, commission string) *domain.ReferralUsage {
	t.Helper()
	o := createOrder(t, repo, "pi_"+uuid.NewString())
	u := &domain.ReferralUsage{
		ReferrerID:       referrerID,
		OrderID:          o.ID,
		DiscountAmount:   dec("1.00"),
		CommissionAmount: dec(commission),
	}
	require.NoError(t, repo.CreateReferralUsage(context.Background(), u))
	return u
}

func TestOrders(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("create with outbox event", func(t *testing.T) {
		o := createOrder(t, repo, "pi_1")
		assert.False(t, o.CreatedAt.IsZero())

		got, err := repo.GetOrderByPaymentIntent(ctx, "pi_1")
		require.NoError(t, err)
		assert.Equal(t, o.ID, got.ID)
		assert.True(t, got.TotalAmount.Equal(dec("55")))
		assert.Empty(t, got.UserID)
		require.Len(t, got.Items, 2)
		assert.True(t, got.ItemsSubtotal().Equal(dec("55")))

		bySession, err := repo.GetOrderBySessionID(ctx, "cs_pi_1")
		require.NoError(t, err)
		assert.Equal(t, o.ID, bySession.ID)

		events, err := repo.GetUnprocessedEvents(ctx, 100)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, o.ID, events[0].AggregateID)
		assert.Equal(t, domain.EventOrderCompleted, events[0].EventType)

		require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
		events, err = repo.GetUnprocessedEvents(ctx, 100)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("duplicate payment intent writes nothing", func(t *testing.T) {
		dup := newTestOrder("pi_1")
		dup.CheckoutSessionID = "cs_other"
		err := repo.CreateOrderWithEvent(ctx, dup, domain.OrderCompletedEvent{OrderID: dup.ID})
		assert.ErrorIs(t, err, ErrDuplicatePayment)

		events, err := repo.GetUnprocessedEvents(ctx, 100)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetOrderByPaymentIntent(ctx, "pi_missing")
		assert.ErrorIs(t, err, ErrOrderNotFound)
		_, err = repo.GetOrderBySessionID(ctx, "cs_missing")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("shipping address round-trips", func(t *testing.T) {
		o := newTestOrder("pi_ship")
		o.ShippingAddress = &domain.Address{
			Name: "Buyer", Line1: "12 Harbour Street", City: "Berlin", PostalCode: "10115", Country: "DE",
		}
		require.NoError(t, repo.CreateOrderWithEvent(ctx, o, domain.OrderCompletedEvent{OrderID: o.ID}))

		got, err := repo.GetOrderByPaymentIntent(ctx, "pi_ship")
		require.NoError(t, err)
		require.NotNil(t, got.ShippingAddress)
		assert.Equal(t, *o.ShippingAddress, *got.ShippingAddress)

		plain, err := repo.GetOrderByPaymentIntent(ctx, "pi_1")
		require.NoError(t, err)
		assert.Nil(t, plain.ShippingAddress)
	})

	t.Run("orders by user", func(t *testing.T) {
		require.NoError(t, repo.UpsertUser(ctx, &domain.User{ID: "user-1", Email: "Ada@Example.com", Name: "Ada"}))
		o := newTestOrder("pi_user")
		o.UserID = "user-1"
		require.NoError(t, repo.CreateOrderWithEvent(ctx, o, domain.OrderCompletedEvent{OrderID: o.ID}))

		mine, err := repo.ListOrdersByUserID(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "user-1", mine[0].UserID)

		all, err := repo.ListOrders(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("user lookup ignores case", func(t *testing.T) {
		u, err := repo.FindUserByEmail(ctx, " ada@example.COM ")
		require.NoError(t, err)
		assert.Equal(t, "user-1", u.ID)
		assert.Equal(t, "customer", u.Role)

		_, err = repo.FindUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestReferrals(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	ref := createReferrer(t, repo, "ABC123")

	t.Run("code lookup ignores case", func(t *testing.T) {
		got, err := repo.FindReferrerByCode(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, ref.ID, got.ID)

		_, err = repo.FindReferrerByCode(ctx, "ABC12")
		assert.ErrorIs(t, err, ErrReferrerNotFound)
	})

	t.Run("code is unique ignoring case", func(t *testing.T) {
		err := repo.CreateReferrer(ctx, &domain.Referrer{Code: "abc123", Name: "x", Email: "x@example.com"})
		assert.ErrorIs(t, err, ErrDuplicateReferrer)
	})

	t.Run("one usage per order", func(t *testing.T) {
		u := createUsage(t, repo, ref.ID, "2.75")
		dup := &domain.ReferralUsage{ReferrerID: ref.ID, OrderID: u.OrderID, DiscountAmount: dec("1"), CommissionAmount: dec("1")}
		assert.ErrorIs(t, repo.CreateReferralUsage(ctx, dup), ErrDuplicateUsage)

		usages, err := repo.ListReferralUsages(ctx)
		require.NoError(t, err)
		require.Len(t, usages, 1)
		assert.True(t, usages[0].OrderTotal.Equal(dec("55")))
		assert.Equal(t, domain.UsageStatusPending, usages[0].Status)
	})

	t.Run("approve", func(t *testing.T) {
		usages, err := repo.ListUsagesByReferrer(ctx, ref.ID)
		require.NoError(t, err)
		require.Len(t, usages, 1)

		require.NoError(t, repo.ApproveUsage(ctx, usages[0].ID))
		assert.ErrorIs(t, repo.ApproveUsage(ctx, usages[0].ID), ErrUsageNotPending)
		assert.ErrorIs(t, repo.ApproveUsage(ctx, uuid.NewString()), ErrUsageNotFound)
		assert.ErrorIs(t, repo.ApproveUsage(ctx, "not-a-uuid"), ErrUsageNotFound)
	})

	t.Run("stats", func(t *testing.T) {
		createReferrer(t, repo, "QUIET")
		stats, err := repo.ListReferrerStats(ctx)
		require.NoError(t, err)
		require.Len(t, stats, 2)

		one, err := repo.GetReferrerStats(ctx, ref.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, one.TotalUsages)
		assert.True(t, one.ApprovedCommission.Equal(dec("2.75")))
		assert.True(t, one.PendingCommission.IsZero())

		_, err = repo.GetReferrerStats(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrReferrerNotFound)
	})
}

func TestCreatePayout(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("pays exactly at threshold and never twice", func(t *testing.T) {
		ref := createReferrer(t, repo, "PAYME")
		a := createUsage(t, repo, ref.ID, "12.50")
		b := createUsage(t, repo, ref.ID, "7.50")
		require.NoError(t, repo.ApproveUsage(ctx, a.ID))

		payout, err := repo.CreatePayout(ctx, PayoutRequest{ReferrerID: ref.ID, Method: "bank_transfer", Reference: "TX-1"})
		require.NoError(t, err)
		assert.True(t, payout.TotalAmount.Equal(dec("20.00")))
		assert.Equal(t, 2, payout.UsageCount)

		usages, err := repo.ListUsagesByReferrer(ctx, ref.ID)
		require.NoError(t, err)
		sum := decimal.Zero
		for _, u := range usages {
			assert.Equal(t, domain.UsageStatusPaid, u.Status)
			assert.Equal(t, payout.ID, u.PayoutID)
			assert.Equal(t, "TX-1", u.PayoutReference)
			assert.NotNil(t, u.PaidAt)
			sum = sum.Add(u.CommissionAmount)
		}
		assert.True(t, sum.Equal(payout.TotalAmount))

		_, err = repo.CreatePayout(ctx, PayoutRequest{ReferrerID: ref.ID, UsageIDs: []string{a.ID, b.ID}, Method: "bank_transfer"})
		assert.ErrorIs(t, err, ErrUsageNotPayable)

		_, err = repo.CreatePayout(ctx, PayoutRequest{ReferrerID: ref.ID, Method: "bank_transfer"})
		assert.ErrorIs(t, err, ErrBelowThreshold)

		stats, err := repo.GetReferrerStats(ctx, ref.ID)
		require.NoError(t, err)
		assert.True(t, stats.PaidCommission.Equal(dec("20.00")))
	})

	t.Run("below threshold changes nothing", func(t *testing.T) {
		ref := createReferrer(t, repo, "SMALL")
		u := createUsage(t, repo, ref.ID, "19.99")

		_, err := repo.CreatePayout(ctx, PayoutRequest{ReferrerID: ref.ID, Method: "paypal"})
		assert.ErrorIs(t, err, ErrBelowThreshold)

		usages, err := repo.ListUsagesByReferrer(ctx, ref.ID)
		require.NoError(t, err)
		require.Len(t, usages, 1)
		assert.Equal(t, u.ID, usages[0].ID)
		assert.Equal(t, domain.UsageStatusPending, usages[0].Status)
	})

	t.Run("foreign or unknown usage rejects the batch", func(t *testing.T) {
		mine := createReferrer(t, repo, "MINE")
		other := createReferrer(t, repo, "OTHER")
		m := createUsage(t, repo, mine.ID, "25.00")
		o := createUsage(t, repo, other.ID, "25.00")

		_, err := repo.CreatePayout(ctx, PayoutRequest{ReferrerID: mine.ID, UsageIDs: []string{m.ID, o.ID}, Method: "paypal"})
		assert.ErrorIs(t, err, ErrUsageNotPayable)

		_, err = repo.CreatePayout(ctx, PayoutRequest{ReferrerID: mine.ID, UsageIDs: []string{m.ID, uuid.NewString()}, Method: "paypal"})
		assert.ErrorIs(t, err, ErrUsageNotPayable)

		_, err = repo.CreatePayout(ctx, PayoutRequest{ReferrerID: mine.ID, UsageIDs: []string{"garbage"}, Method: "paypal"})
		assert.ErrorIs(t, err, ErrUsageNotPayable)

		payout, err := repo.CreatePayout(ctx, PayoutRequest{ReferrerID: mine.ID, UsageIDs: []string{m.ID, m.ID}, Method: "paypal"})
		require.NoError(t, err)
		assert.Equal(t, 1, payout.UsageCount)
	})

	t.Run("unknown referrer", func(t *testing.T) {
		_, err := repo.CreatePayout(ctx, PayoutRequest{ReferrerID: uuid.NewString(), Method: "paypal"})
		assert.ErrorIs(t, err, ErrReferrerNotFound)
	})

	t.Run("concurrent payouts pay once", func(t *testing.T) {
		ref := createReferrer(t, repo, "RACE")
		createUsage(t, repo, ref.ID, "30.00")

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.CreatePayout(ctx, PayoutRequest{ReferrerID: ref.ID, Method: "paypal"}); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, successes)
	})
}
