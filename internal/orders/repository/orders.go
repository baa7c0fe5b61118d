package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
)

const orderColumns = `id, user_id, checkout_session_id, payment_intent_id, customer_email, customer_name,
	items, total_amount, discount_amount, currency, referral_code, plan_id, shipping_address, status, created_at`

// CreateOrderWithEvent inserts the order and its outbox event in one transaction.
// A second insert for the same payment intent or checkout session yields ErrDuplicatePayment.
func (r *Repository) CreateOrderWithEvent(ctx context.Context, order *domain.Order, event domain.OrderCompletedEvent) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	var address any
	if order.ShippingAddress != nil {
		b, err := json.Marshal(order.ShippingAddress)
		if err != nil {
			return fmt.Errorf("failed to marshal shipping address: %w", err)
		}
		address = b
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer rollback(tx, r.logger)

	query := `INSERT INTO orders (id, user_id, checkout_session_id, payment_intent_id, customer_email, customer_name,
	          items, total_amount, discount_amount, currency, referral_code, plan_id, shipping_address, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	          RETURNING created_at`
	err = tx.QueryRowContext(ctx, query,
		order.ID,
		nullString(order.UserID),
		order.CheckoutSessionID,
		order.PaymentIntentID,
		order.CustomerEmail,
		order.CustomerName,
		itemsJSON,
		order.TotalAmount,
		order.DiscountAmount,
		order.Currency,
		order.ReferralCode,
		order.PlanID,
		address,
		order.Status,
	).Scan(&order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("insert order: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		order.ID, domain.EventOrderCompleted, payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (r *Repository) GetOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_intent_id = $1`, paymentIntentID)
	return scanOrder(row)
}

func (r *Repository) GetOrderBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE checkout_session_id = $1`, sessionID)
	return scanOrder(row)
}

func (r *Repository) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return scanOrders(rows)
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	return scanOrders(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*domain.Order, error) {
	var (
		order       domain.Order
		userID      sql.NullString
		itemsJSON   []byte
		addressJSON []byte
	)
	err := s.Scan(
		&order.ID,
		&userID,
		&order.CheckoutSessionID,
		&order.PaymentIntentID,
		&order.CustomerEmail,
		&order.CustomerName,
		&itemsJSON,
		&order.TotalAmount,
		&order.DiscountAmount,
		&order.Currency,
		&order.ReferralCode,
		&order.PlanID,
		&addressJSON,
		&order.Status,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	order.UserID = userID.String
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if len(addressJSON) > 0 {
		order.ShippingAddress = &domain.Address{}
		if err := json.Unmarshal(addressJSON, order.ShippingAddress); err != nil {
			return nil, fmt.Errorf("unmarshal shipping address: %w", err)
		}
	}
	return &order, nil
}

func scanOrders(rows *sql.Rows) ([]*domain.Order, error) {
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}
