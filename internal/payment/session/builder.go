// Package session turns a cart into a hosted checkout session: one-time payment for
// physical goods, or a monthly subscription for a plan selection.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment/pricecache"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/plans"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/pkg/money"
	"github.com/shopspring/decimal"
)

const sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

var ErrNoItems = errors.New("no items to check out")

// PriceCache maps a plan id to the processor's recurring price id.
type PriceCache interface {
	Get(ctx context.Context, planID string) (string, error)
	Set(ctx context.Context, planID, priceID string) error
}

// Item prices are minor units of the session currency, variant adjustment included.
type Item struct {
	ID          string
	Name        string
	Description string
	Price       int64
	Quantity    int
	Color       string
	ImageURL    string
}

type OneTimeRequest struct {
	Items          []Item
	Currency       string
	SuccessURL     string
	CancelURL      string
	CustomerEmail  string
	CartID         string
	ReferralCode   string
	DiscountAmount decimal.Decimal
}

type RecurringRequest struct {
	UserID     string
	Email      string
	Name       string
	Selector   plans.Selector
	SuccessURL string
	CancelURL  string
	CartID     string
}

type Builder struct {
	processor payment.Processor
	prices    PriceCache
	logger    *slog.Logger
}

func NewBuilder(processor payment.Processor, prices PriceCache, logger *slog.Logger) *Builder {
	return &Builder{
		processor: processor,
		prices:    prices,
		logger:    logger.With("component", "session_builder"),
	}
}

// CreateOneTime registers every item with the processor and opens a payment-mode
// session. The first processor error aborts; objects created before it are left behind.
func (b *Builder) CreateOneTime(ctx context.Context, req OneTimeRequest) (*payment.Session, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	currency := money.Normalize(req.Currency)
	if !money.Supported(currency) {
		return nil, fmt.Errorf("%w: %s", money.ErrUnsupportedCurrency, currency)
	}

	metaItems := make([]payment.MetadataItem, 0, len(req.Items))
	for _, it := range req.Items {
		metaItems = append(metaItems, payment.MetadataItem{
			ID: it.ID, Name: it.Name, Price: it.Price, Quantity: it.Quantity, Color: it.Color,
		})
	}
	metadata, err := payment.EncodeItems(metaItems)
	if err != nil {
		return nil, err
	}
	if req.CartID != "" {
		metadata[payment.MetaCartID] = req.CartID
	}

	shipping, err := ShippingOptions(currency)
	if err != nil {
		return nil, err
	}

	lines := make([]payment.SessionLineItem, 0, len(req.Items))
	for _, it := range req.Items {
		priceID, err := b.registerItem(ctx, it, currency)
		if err != nil {
			return nil, err
		}
		lines = append(lines, payment.SessionLineItem{PriceID: priceID, Quantity: int64(it.Quantity)})
	}

	params := payment.SessionParams{
		Mode:             payment.ModePayment,
		Currency:         currency,
		LineItems:        lines,
		CustomerEmail:    req.CustomerEmail,
		SuccessURL:       withSessionID(req.SuccessURL),
		CancelURL:        req.CancelURL,
		ShippingOptions:  shipping,
		AllowedCountries: AllowedCountries(),
		Metadata:         metadata,
	}

	if req.ReferralCode != "" && req.DiscountAmount.IsPositive() {
		couponID, err := b.processor.CreateCoupon(ctx, payment.CouponParams{
			Name:           "Referral " + req.ReferralCode,
			Currency:       currency,
			AmountOff:      money.ToMinor(req.DiscountAmount, currency),
			MaxRedemptions: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("create referral coupon: %w", err)
		}
		params.CouponID = couponID
		params.Metadata[payment.MetaReferralCode] = req.ReferralCode
		params.Metadata[payment.MetaDiscountAmount] = req.DiscountAmount.StringFixed(money.Exponent(currency))
	}

	sess, err := b.processor.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	b.logger.InfoContext(ctx, "checkout session created",
		"session_id", sess.ID, "mode", payment.ModePayment, "items", len(lines), "currency", currency,
		"referral", params.CouponID != "")
	return sess, nil
}

func (b *Builder) registerItem(ctx context.Context, it Item, currency string) (string, error) {
	name := it.Name
	if it.Color != "" {
		name = fmt.Sprintf("%s (%s)", it.Name, it.Color)
	}
	productID, err := b.processor.CreateProduct(ctx, payment.ProductParams{
		Name:        name,
		Description: it.Description,
		ImageURL:    it.ImageURL,
		Metadata:    map[string]string{"product_id": it.ID},
	})
	if err != nil {
		return "", fmt.Errorf("create product %s: %w", it.ID, err)
	}
	priceID, err := b.processor.CreatePrice(ctx, payment.PriceParams{
		ProductID:  productID,
		Currency:   currency,
		UnitAmount: it.Price,
	})
	if err != nil {
		return "", fmt.Errorf("create price %s: %w", it.ID, err)
	}
	return priceID, nil
}

// CreateRecurring opens a subscription-mode session for the plan, reusing the
// customer record for the user's email.
func (b *Builder) CreateRecurring(ctx context.Context, req RecurringRequest) (*payment.Session, error) {
	plan, err := plans.Resolve(req.Selector)
	if err != nil {
		return nil, err
	}

	customerID, err := b.processor.FindOrCreateCustomer(ctx, req.Email, req.Name)
	if err != nil {
		return nil, fmt.Errorf("resolve customer: %w", err)
	}

	priceID, err := b.recurringPrice(ctx, plan)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		payment.MetaUserID: req.UserID,
		payment.MetaPlanID: plan.ID,
	}
	if req.CartID != "" {
		metadata[payment.MetaCartID] = req.CartID
	}

	sess, err := b.processor.CreateCheckoutSession(ctx, payment.SessionParams{
		Mode:       payment.ModeSubscription,
		Currency:   plans.Currency,
		LineItems:  []payment.SessionLineItem{{PriceID: priceID, Quantity: 1}},
		CustomerID: customerID,
		SuccessURL: withSessionID(req.SuccessURL),
		CancelURL:  req.CancelURL,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription session: %w", err)
	}
	b.logger.InfoContext(ctx, "checkout session created",
		"session_id", sess.ID, "mode", payment.ModeSubscription, "plan_id", plan.ID)
	return sess, nil
}

// recurringPrice reads the cached price id for the plan, creating product and
// monthly price on first use. A cache failure only costs a duplicate price.
func (b *Builder) recurringPrice(ctx context.Context, plan plans.Plan) (string, error) {
	priceID, err := b.prices.Get(ctx, plan.ID)
	if err == nil {
		return priceID, nil
	}
	if !errors.Is(err, pricecache.ErrMiss) {
		b.logger.WarnContext(ctx, "price cache read failed", "plan_id", plan.ID, "error", err)
	}

	productID, err := b.processor.CreateProduct(ctx, payment.ProductParams{
		Name:     "Subscription: " + plan.Name,
		Metadata: map[string]string{payment.MetaPlanID: plan.ID},
	})
	if err != nil {
		return "", fmt.Errorf("create plan product %s: %w", plan.ID, err)
	}
	priceID, err = b.processor.CreatePrice(ctx, payment.PriceParams{
		ProductID:  productID,
		Currency:   plans.Currency,
		UnitAmount: plan.MonthlyTotal(),
		Interval:   plan.Interval,
		Metadata:   map[string]string{payment.MetaPlanID: plan.ID},
	})
	if err != nil {
		return "", fmt.Errorf("create plan price %s: %w", plan.ID, err)
	}

	if err := b.prices.Set(ctx, plan.ID, priceID); err != nil {
		b.logger.WarnContext(ctx, "price cache write failed", "plan_id", plan.ID, "error", err)
	}
	return priceID, nil
}

func withSessionID(successURL string) string {
	if successURL == "" || strings.Contains(successURL, sessionIDPlaceholder) {
		return successURL
	}
	sep := "?"
	if strings.Contains(successURL, "?") {
		sep = "&"
	}
	return successURL + sep + "session_id=" + sessionIDPlaceholder
}
