// Package stripe implements the payment processor on Stripe Checkout. Every API call
// runs through one circuit breaker so a processor outage fails checkouts fast.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	Breaker       circuitbreaker.Config
	// Backends overrides the API endpoints; nil uses Stripe's.
	Backends *stripego.Backends
}

type Adapter struct {
	api           *client.API
	webhookSecret string
	cb            *gobreaker.CircuitBreaker[any]
	logger        *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Adapter {
	logger = logger.With("component", "stripe")
	return &Adapter{
		api:           client.New(cfg.SecretKey, cfg.Backends),
		webhookSecret: cfg.WebhookSecret,
		cb:            circuitbreaker.New[any]("stripe", cfg.Breaker, logger),
		logger:        logger,
	}
}

func call[T any](a *Adapter, op string, fn func() (T, error)) (T, error) {
	var zero T
	v, err := a.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			a.logger.Warn("stripe call rejected by open breaker", "op", op)
		}
		return zero, fmt.Errorf("%w: %s: %v", payment.ErrProcessor, op, err)
	}
	return v.(T), nil
}

func (a *Adapter) CreateProduct(ctx context.Context, p payment.ProductParams) (string, error) {
	params := &stripego.ProductParams{Name: stripego.String(p.Name)}
	if p.Description != "" {
		params.Description = stripego.String(p.Description)
	}
	if p.ImageURL != "" {
		params.Images = stripego.StringSlice([]string{p.ImageURL})
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	return call(a, "create product", func() (string, error) {
		prod, err := a.api.Products.New(params)
		if err != nil {
			return "", err
		}
		return prod.ID, nil
	})
}

func (a *Adapter) CreatePrice(ctx context.Context, p payment.PriceParams) (string, error) {
	params := &stripego.PriceParams{
		Product:    stripego.String(p.ProductID),
		Currency:   stripego.String(strings.ToLower(p.Currency)),
		UnitAmount: stripego.Int64(p.UnitAmount),
	}
	if p.Interval != "" {
		params.Recurring = &stripego.PriceRecurringParams{Interval: stripego.String(p.Interval)}
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	return call(a, "create price", func() (string, error) {
		price, err := a.api.Prices.New(params)
		if err != nil {
			return "", err
		}
		return price.ID, nil
	})
}

func (a *Adapter) CreateCoupon(ctx context.Context, p payment.CouponParams) (string, error) {
	params := &stripego.CouponParams{
		Name:           stripego.String(p.Name),
		AmountOff:      stripego.Int64(p.AmountOff),
		Currency:       stripego.String(strings.ToLower(p.Currency)),
		Duration:       stripego.String(string(stripego.CouponDurationOnce)),
		MaxRedemptions: stripego.Int64(p.MaxRedemptions),
	}
	params.Context = ctx

	return call(a, "create coupon", func() (string, error) {
		c, err := a.api.Coupons.New(params)
		if err != nil {
			return "", err
		}
		return c.ID, nil
	})
}

// FindOrCreateCustomer returns the first customer with this email, creating one if none.
func (a *Adapter) FindOrCreateCustomer(ctx context.Context, email, name string) (string, error) {
	return call(a, "resolve customer", func() (string, error) {
		list := &stripego.CustomerListParams{Email: stripego.String(email)}
		list.Limit = stripego.Int64(1)
		list.Context = ctx

		iter := a.api.Customers.List(list)
		if iter.Next() {
			return iter.Customer().ID, nil
		}
		if err := iter.Err(); err != nil {
			return "", err
		}

		params := &stripego.CustomerParams{Email: stripego.String(email)}
		if name != "" {
			params.Name = stripego.String(name)
		}
		params.Context = ctx
		c, err := a.api.Customers.New(params)
		if err != nil {
			return "", err
		}
		return c.ID, nil
	})
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, p payment.SessionParams) (*payment.Session, error) {
	params := &stripego.CheckoutSessionParams{
		Mode:       stripego.String(string(p.Mode)),
		SuccessURL: stripego.String(p.SuccessURL),
		CancelURL:  stripego.String(p.CancelURL),
	}
	for _, li := range p.LineItems {
		params.LineItems = append(params.LineItems, &stripego.CheckoutSessionLineItemParams{
			Price:    stripego.String(li.PriceID),
			Quantity: stripego.Int64(li.Quantity),
		})
	}
	if p.CustomerID != "" {
		params.Customer = stripego.String(p.CustomerID)
	} else if p.CustomerEmail != "" {
		params.CustomerEmail = stripego.String(p.CustomerEmail)
	}
	if p.CouponID != "" {
		params.Discounts = []*stripego.CheckoutSessionDiscountParams{{Coupon: stripego.String(p.CouponID)}}
	}
	if len(p.AllowedCountries) > 0 {
		params.ShippingAddressCollection = &stripego.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripego.StringSlice(p.AllowedCountries),
		}
	}
	for _, opt := range p.ShippingOptions {
		params.ShippingOptions = append(params.ShippingOptions, shippingOption(opt))
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.Mode == payment.ModeSubscription {
		params.SubscriptionData = &stripego.CheckoutSessionSubscriptionDataParams{Metadata: p.Metadata}
	}
	params.Context = ctx

	return call(a, "create checkout session", func() (*payment.Session, error) {
		s, err := a.api.CheckoutSessions.New(params)
		if err != nil {
			return nil, err
		}
		return &payment.Session{ID: s.ID, URL: s.URL}, nil
	})
}

func shippingOption(opt payment.ShippingOption) *stripego.CheckoutSessionShippingOptionParams {
	return &stripego.CheckoutSessionShippingOptionParams{
		ShippingRateData: &stripego.CheckoutSessionShippingOptionShippingRateDataParams{
			Type:        stripego.String("fixed_amount"),
			DisplayName: stripego.String(opt.DisplayName),
			FixedAmount: &stripego.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
				Amount:   stripego.Int64(opt.Amount),
				Currency: stripego.String(strings.ToLower(opt.Currency)),
			},
			DeliveryEstimate: &stripego.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateParams{
				Minimum: &stripego.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMinimumParams{
					Unit:  stripego.String("business_day"),
					Value: stripego.Int64(opt.MinDays),
				},
				Maximum: &stripego.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMaximumParams{
					Unit:  stripego.String("business_day"),
					Value: stripego.Int64(opt.MaxDays),
				},
			},
		},
	}
}

// VerifyEvent checks the Stripe-Signature header against the endpoint secret. The
// event payload is not tied to the library's pinned API version.
func (a *Adapter) VerifyEvent(payload []byte, signatureHeader string) (*payment.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, a.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidSignature, err)
	}
	ev := &payment.Event{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil {
		ev.Object = event.Data.Raw
	}
	return ev, nil
}
