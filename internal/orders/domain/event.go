package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderEventsTopic    = "order-events"
	EventOrderCompleted = "OrderCompleted"
)

// OrderCompletedEvent is written to the outbox in the same transaction as the order.
type OrderCompletedEvent struct {
	OrderID           string          `json:"order_id"`
	CartID            string          `json:"cart_id,omitempty"`
	UserID            string          `json:"user_id,omitempty"`
	CheckoutSessionID string          `json:"checkout_session_id"`
	Total             decimal.Decimal `json:"total"`
	Currency          string          `json:"currency"`
	CompletedAt       time.Time       `json:"completed_at"`
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}
