// Package payment describes the hosted payment processor the storefront sells through
// and the session metadata contract shared by checkout and the order webhook.
package payment

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrProcessor        = errors.New("payment processor error")
)

type Mode string

const (
	ModePayment      Mode = "payment"
	ModeSubscription Mode = "subscription"
)

// Processor is the subset of the hosted processor's API checkout needs.
type Processor interface {
	CreateProduct(ctx context.Context, p ProductParams) (string, error)
	CreatePrice(ctx context.Context, p PriceParams) (string, error)
	CreateCoupon(ctx context.Context, p CouponParams) (string, error)
	FindOrCreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, p SessionParams) (*Session, error)
}

// EventVerifier authenticates webhook deliveries.
type EventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (*Event, error)
}

type ProductParams struct {
	Name        string
	Description string
	ImageURL    string
	Metadata    map[string]string
}

type PriceParams struct {
	ProductID  string
	Currency   string
	UnitAmount int64
	// Interval makes the price recurring ("month"); empty means one-time.
	Interval string
	Metadata map[string]string
}

type CouponParams struct {
	Name           string
	Currency       string
	AmountOff      int64
	MaxRedemptions int64
}

type SessionLineItem struct {
	PriceID  string
	Quantity int64
}

type ShippingOption struct {
	DisplayName string
	Currency    string
	Amount      int64
	MinDays     int64
	MaxDays     int64
}

type SessionParams struct {
	Mode             Mode
	Currency         string
	LineItems        []SessionLineItem
	CustomerID       string
	CustomerEmail    string
	SuccessURL       string
	CancelURL        string
	CouponID         string
	ShippingOptions  []ShippingOption
	AllowedCountries []string
	Metadata         map[string]string
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Event is a verified webhook delivery. Object is the raw data.object payload.
type Event struct {
	ID     string
	Type   string
	Object json.RawMessage
}
