// Package checkout turns a cart into a hosted payment session.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	cartdomain "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/domain"
	orders "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/repository"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment/session"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/referral"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/pkg/money"
)

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrMixedCart     = errors.New("cart mixes subscriptions and products; clear the cart and start again")
	ErrLoginRequired = errors.New("sign in to start a subscription")
	ErrOrderPending  = errors.New("order not recorded yet")
)

type Carts interface {
	LoadCart(ctx context.Context, cartID string) (*cartdomain.Cart, error)
	ClearCart(ctx context.Context, cartID string) error
}

type ReferralValidator interface {
	Validate(ctx context.Context, req referral.Request) (referral.Result, error)
}

type SessionBuilder interface {
	CreateOneTime(ctx context.Context, req session.OneTimeRequest) (*payment.Session, error)
	CreateRecurring(ctx context.Context, req session.RecurringRequest) (*payment.Session, error)
}

type OrderLookup interface {
	GetOrderBySessionID(ctx context.Context, sessionID string) (*orders.Order, error)
}

// User is the signed-in shopper, if any.
type User struct {
	ID    string
	Email string
	Name  string
}

type SubmitRequest struct {
	CartID       string
	User         *User
	ReferralCode string
	SuccessURL   string
	CancelURL    string
}

type Result struct {
	State     State            `json:"state"`
	SessionID string           `json:"session_id,omitempty"`
	URL       string           `json:"url,omitempty"`
	LoginURL  string           `json:"login_url,omitempty"`
	Referral  *referral.Result `json:"referral,omitempty"`
}

type Options struct {
	ConfirmAttempts int
	ConfirmBackoff  time.Duration
	LoginPath       string
	CheckoutPath    string
}

func DefaultOptions() Options {
	return Options{
		ConfirmAttempts: 10,
		ConfirmBackoff:  500 * time.Millisecond,
		LoginPath:       "/login",
		CheckoutPath:    "/checkout",
	}
}

type Service struct {
	carts     Carts
	referrals ReferralValidator
	builder   SessionBuilder
	ledger    OrderLookup
	tracker   *Tracker
	opts      Options
	logger    *slog.Logger
}

func NewService(carts Carts, referrals ReferralValidator, builder SessionBuilder, ledger OrderLookup, opts Options, logger *slog.Logger) *Service {
	if opts.ConfirmAttempts <= 0 {
		opts.ConfirmAttempts = 1
	}
	return &Service{
		carts:     carts,
		referrals: referrals,
		builder:   builder,
		ledger:    ledger,
		tracker:   NewTracker(),
		opts:      opts,
		logger:    logger.With("component", "checkout"),
	}
}

func (s *Service) State(cartID string) State {
	return s.tracker.State(cartID)
}

// Submit opens a payment session for the cart. On success the cart is emptied and
// the caller is sent to the hosted page; on failure the cart is left as it was.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Result, error) {
	cart, err := s.carts.LoadCart(ctx, req.CartID)
	if err != nil {
		return Result{State: s.tracker.State(req.CartID)}, fmt.Errorf("load cart: %w", err)
	}
	switch cart.Mode() {
	case cartdomain.ModeEmpty:
		return Result{State: s.tracker.State(req.CartID)}, ErrEmptyCart
	case cartdomain.ModeMixed:
		return Result{State: s.tracker.State(req.CartID)}, ErrMixedCart
	}

	if err := s.tracker.Begin(req.CartID); err != nil {
		return Result{State: StateSubmitting}, err
	}

	res, err := s.submit(ctx, cart, req)
	if err != nil {
		s.finish(ctx, req.CartID, StateFailed)
		res.State = StateFailed
		s.logger.WarnContext(ctx, "checkout failed", "cart_id", req.CartID, "error", err)
		return res, err
	}

	if err := s.carts.ClearCart(ctx, req.CartID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after checkout", "cart_id", req.CartID, "error", err)
	}
	s.finish(ctx, req.CartID, StateRedirected)
	res.State = StateRedirected
	s.logger.InfoContext(ctx, "checkout redirected", "cart_id", req.CartID, "session_id", res.SessionID)
	return res, nil
}

func (s *Service) submit(ctx context.Context, cart *cartdomain.Cart, req SubmitRequest) (Result, error) {
	if cart.Mode() == cartdomain.ModeSubscription {
		return s.submitSubscription(ctx, cart, req)
	}
	return s.submitOneTime(ctx, cart, req)
}

func (s *Service) submitSubscription(ctx context.Context, cart *cartdomain.Cart, req SubmitRequest) (Result, error) {
	if req.User == nil || req.User.ID == "" {
		return Result{LoginURL: s.loginURL()}, ErrLoginRequired
	}
	line, ok := cart.SubscriptionLine()
	if !ok || line.Subscription == nil {
		return Result{}, ErrMixedCart
	}

	sess, err := s.builder.CreateRecurring(ctx, session.RecurringRequest{
		UserID:     req.User.ID,
		Email:      req.User.Email,
		Name:       req.User.Name,
		Selector:   *line.Subscription,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		CartID:     cart.ID,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *Service) submitOneTime(ctx context.Context, cart *cartdomain.Cart, req SubmitRequest) (Result, error) {
	otr := session.OneTimeRequest{
		Currency:   cart.Currency,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		CartID:     cart.ID,
	}
	if req.User != nil {
		otr.CustomerEmail = req.User.Email
	}
	for _, l := range cart.Lines {
		otr.Items = append(otr.Items, session.Item{
			ID:       l.ProductID,
			Name:     l.Name,
			Price:    l.UnitPrice + l.PriceAdjustment,
			Quantity: l.Quantity,
			Color:    l.Color,
			ImageURL: l.ImageURL,
		})
	}

	var out Result
	if req.ReferralCode != "" {
		vr, err := s.referrals.Validate(ctx, referral.Request{
			Code:          req.ReferralCode,
			CustomerEmail: otr.CustomerEmail,
			OrderTotal:    money.FromMinor(cart.Total(), cart.Currency),
		})
		if err != nil {
			return Result{}, fmt.Errorf("validate referral: %w", err)
		}
		out.Referral = &vr
		if vr.Success {
			otr.ReferralCode = vr.Code
			otr.DiscountAmount = vr.DiscountAmount
		}
	}

	sess, err := s.builder.CreateOneTime(ctx, otr)
	if err != nil {
		return out, err
	}
	out.SessionID = sess.ID
	out.URL = sess.URL
	return out, nil
}

func (s *Service) finish(ctx context.Context, cartID string, to State) {
	if err := s.tracker.Finish(cartID, to); err != nil {
		s.logger.ErrorContext(ctx, "checkout state", "cart_id", cartID, "error", err)
	}
}

func (s *Service) loginURL() string {
	return s.opts.LoginPath + "?next=" + url.QueryEscape(s.opts.CheckoutPath)
}

// AwaitOrder polls the ledger until the webhook has recorded the session's order.
func (s *Service) AwaitOrder(ctx context.Context, sessionID string) (*orders.Order, error) {
	for attempt := 1; ; attempt++ {
		order, err := s.ledger.GetOrderBySessionID(ctx, sessionID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
		if attempt >= s.opts.ConfirmAttempts {
			return nil, ErrOrderPending
		}

		timer := time.NewTimer(s.opts.ConfirmBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
