package webhook

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
)

// checkoutSession is the part of the processor's checkout session object the ledger needs.
type checkoutSession struct {
	ID              string            `json:"id"`
	Mode            string            `json:"mode"`
	PaymentIntent   expandableID      `json:"payment_intent"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerDetails *customerDetails  `json:"customer_details"`
	ShippingDetails *shippingDetails  `json:"shipping_details"`
	ShippingCost    *shippingCost     `json:"shipping_cost"`
	Metadata        map[string]string `json:"metadata"`
}

type customerDetails struct {
	Email   string          `json:"email"`
	Name    string          `json:"name"`
	Address *sessionAddress `json:"address"`
}

type shippingDetails struct {
	Name    string          `json:"name"`
	Address *sessionAddress `json:"address"`
}

type shippingCost struct {
	AmountTotal int64 `json:"amount_total"`
}

type sessionAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	State      string `json:"state"`
	Country    string `json:"country"`
}

// shippingAddress prefers the collected shipping details and falls back to the
// customer's billing address.
func (s *checkoutSession) shippingAddress() *domain.Address {
	var (
		name string
		addr *sessionAddress
	)
	if s.ShippingDetails != nil && s.ShippingDetails.Address != nil {
		name, addr = s.ShippingDetails.Name, s.ShippingDetails.Address
	} else if s.CustomerDetails != nil && s.CustomerDetails.Address != nil {
		name, addr = s.CustomerDetails.Name, s.CustomerDetails.Address
	}
	if addr == nil || (addr.Line1 == "" && addr.Country == "") {
		return nil
	}
	return &domain.Address{
		Name:       name,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		PostalCode: addr.PostalCode,
		State:      addr.State,
		Country:    strings.ToUpper(addr.Country),
	}
}

func (s *checkoutSession) payerEmail() string {
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		return s.CustomerDetails.Email
	}
	return s.CustomerEmail
}

func (s *checkoutSession) payerName() string {
	if s.CustomerDetails != nil {
		return s.CustomerDetails.Name
	}
	return ""
}

// idempotencyKey is the payment intent, or the session id for sessions without one
// (subscriptions).
func (s *checkoutSession) idempotencyKey() string {
	if s.PaymentIntent != "" {
		return string(s.PaymentIntent)
	}
	return s.ID
}

// expandableID accepts either an id string or an expanded object with an id.
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}
