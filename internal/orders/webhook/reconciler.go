// Package webhook records paid checkout sessions in the ledger. It is the only writer
// of orders and referral usages.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/repository"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment/session"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/plans"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/referral"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/pkg/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventCheckoutSessionCompleted = "checkout.session.completed"

type Outcome string

const (
	OutcomeRecorded  Outcome = "recorded"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Ledger is the write side the reconciler needs.
type Ledger interface {
	GetOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error)
	CreateOrderWithEvent(ctx context.Context, order *domain.Order, event domain.OrderCompletedEvent) error
	CreateReferralUsage(ctx context.Context, usage *domain.ReferralUsage) error
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

type Reconciler struct {
	verifier  payment.EventVerifier
	ledger    Ledger
	directory referral.Directory
	logger    *slog.Logger
	now       func() time.Time
}

func NewReconciler(verifier payment.EventVerifier, ledger Ledger, directory referral.Directory, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		verifier:  verifier,
		ledger:    ledger,
		directory: directory,
		logger:    logger.With("component", "webhook"),
		now:       time.Now,
	}
}

// Handle verifies and applies one delivery. payment.ErrInvalidSignature and
// payment.ErrMalformedEvent mean the delivery was rejected untouched; any other error
// means nothing was committed and the processor should retry.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	event, err := r.verifier.VerifyEvent(payload, signature)
	if err != nil {
		r.logger.WarnContext(ctx, "webhook signature rejected", "error", err)
		return "", err
	}
	log := r.logger.With("event_id", event.ID, "event_type", event.Type)

	if event.Type != EventCheckoutSessionCompleted {
		log.DebugContext(ctx, "webhook event ignored")
		return OutcomeIgnored, nil
	}

	var sess checkoutSession
	if err := json.Unmarshal(event.Object, &sess); err != nil {
		log.WarnContext(ctx, "checkout session undecodable, rejecting delivery", "error", err)
		return "", fmt.Errorf("%w: decode checkout session: %v", payment.ErrMalformedEvent, err)
	}
	if sess.ID == "" {
		log.WarnContext(ctx, "checkout session without id, rejecting delivery")
		return "", fmt.Errorf("%w: checkout session has no id", payment.ErrMalformedEvent)
	}
	key := sess.idempotencyKey()
	log = log.With("session_id", sess.ID, "payment_key", key)

	if _, err := r.ledger.GetOrderByPaymentIntent(ctx, key); err == nil {
		log.InfoContext(ctx, "payment already recorded")
		return OutcomeDuplicate, nil
	} else if !errors.Is(err, repository.ErrOrderNotFound) {
		return "", fmt.Errorf("lookup order: %w", err)
	}

	order := r.buildOrder(ctx, log, &sess, key)
	r.checkShipping(ctx, log, &sess, order)

	var referrer *domain.Referrer
	if order.ReferralCode != "" {
		ref, err := r.directory.FindReferrerByCode(ctx, order.ReferralCode)
		switch {
		case err == nil:
			referrer = ref
		case errors.Is(err, repository.ErrReferrerNotFound):
			log.WarnContext(ctx, "referral code no longer resolves, recording order without usage", "code", order.ReferralCode)
		default:
			return "", fmt.Errorf("lookup referrer: %w", err)
		}
	}

	if email := sess.payerEmail(); email != "" {
		user, err := r.ledger.FindUserByEmail(ctx, email)
		switch {
		case err == nil:
			order.UserID = user.ID
		case errors.Is(err, repository.ErrUserNotFound):
		default:
			log.WarnContext(ctx, "user lookup failed, recording as guest order", "error", err)
		}
	}

	completed := domain.OrderCompletedEvent{
		OrderID:           order.ID,
		CartID:            sess.Metadata[payment.MetaCartID],
		UserID:            order.UserID,
		CheckoutSessionID: order.CheckoutSessionID,
		Total:             order.TotalAmount,
		Currency:          order.Currency,
		CompletedAt:       r.now().UTC(),
	}
	if err := r.ledger.CreateOrderWithEvent(ctx, order, completed); err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			log.InfoContext(ctx, "payment recorded concurrently")
			return OutcomeDuplicate, nil
		}
		return "", fmt.Errorf("record order: %w", err)
	}
	log.InfoContext(ctx, "order recorded", "order_id", order.ID, "total", order.TotalAmount.StringFixed(2), "currency", order.Currency)

	if referrer != nil {
		usage := &domain.ReferralUsage{
			ReferrerID:       referrer.ID,
			OrderID:          order.ID,
			CustomerEmail:    order.CustomerEmail,
			DiscountAmount:   order.DiscountAmount,
			CommissionAmount: domain.Commission(order.ItemsSubtotal()),
			Status:           domain.UsageStatusPending,
		}
		if err := r.ledger.CreateReferralUsage(ctx, usage); err != nil {
			log.ErrorContext(ctx, "referral usage not recorded", "order_id", order.ID, "referrer_id", referrer.ID, "error", err)
		}
	}

	return OutcomeRecorded, nil
}

func (r *Reconciler) buildOrder(ctx context.Context, log *slog.Logger, sess *checkoutSession, key string) *domain.Order {
	currency := money.Normalize(sess.Currency)
	order := &domain.Order{
		ID:                uuid.NewString(),
		CheckoutSessionID: sess.ID,
		PaymentIntentID:   key,
		CustomerEmail:     sess.payerEmail(),
		CustomerName:      sess.payerName(),
		TotalAmount:       money.FromMinor(sess.AmountTotal, currency),
		DiscountAmount:    decimal.Zero,
		Currency:          currency,
		ReferralCode:      strings.TrimSpace(sess.Metadata[payment.MetaReferralCode]),
		PlanID:            sess.Metadata[payment.MetaPlanID],
		ShippingAddress:   sess.shippingAddress(),
		Status:            domain.OrderStatusCompleted,
		Items:             []domain.LineItem{},
	}

	if raw := sess.Metadata[payment.MetaDiscountAmount]; raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			log.WarnContext(ctx, "unparseable discount amount in metadata", "value", raw)
		} else {
			order.DiscountAmount = d
		}
	}

	items, err := payment.DecodeItems(sess.Metadata)
	if err != nil {
		log.ErrorContext(ctx, "line items unreadable, recording order without items", "error", err)
	}
	for _, it := range items {
		order.Items = append(order.Items, domain.LineItem{
			ProductID: it.ID,
			Name:      it.Name,
			Price:     money.FromMinor(it.Price, currency),
			Quantity:  it.Quantity,
			Color:     it.Color,
		})
	}

	if len(order.Items) == 0 && order.PlanID != "" {
		if plan, err := plans.Resolve(plans.Selector{PlanID: order.PlanID}); err == nil {
			order.Items = append(order.Items, domain.LineItem{
				ProductID: "plan-" + plan.ID,
				Name:      plan.Name,
				Price:     money.FromMinor(plan.UnitPrice(), plans.Currency),
				Quantity:  plan.Units,
			})
		}
	}
	return order
}

// checkShipping flags a paid shipping rate that does not belong to the destination's
// region. The buyer picks the rate on the hosted page, so the order is still recorded.
func (r *Reconciler) checkShipping(ctx context.Context, log *slog.Logger, sess *checkoutSession, order *domain.Order) {
	if sess.ShippingCost == nil || order.ShippingAddress == nil {
		return
	}
	want, err := session.ShippingAmountFor(order.ShippingAddress.Country, order.Currency)
	if err != nil {
		log.WarnContext(ctx, "shipping destination not priced", "country", order.ShippingAddress.Country, "error", err)
		return
	}
	if got := sess.ShippingCost.AmountTotal; got != want {
		log.WarnContext(ctx, "shipping rate does not match destination region",
			"order_id", order.ID,
			"country", order.ShippingAddress.Country,
			"charged_minor", got,
			"expected_minor", want,
		)
	}
}
