// Package poller empties carts once their order is in the ledger.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/cache"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/repository"
	orders "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
	"github.com/segmentio/kafka-go"
)

const consumerGroup = "cart-service-consumer"

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Poller struct {
	repo   repository.CartRepository
	cache  cache.CartCache
	reader MessageReader
	logger *slog.Logger
}

func NewPoller(repo repository.CartRepository, cache cache.CartCache, logger *slog.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    orders.OrderEventsTopic,
		GroupID:  consumerGroup,
		MaxBytes: 10e6,
	})
	return newPoller(repo, cache, reader, logger)
}

func newPoller(repo repository.CartRepository, cache cache.CartCache, reader MessageReader, logger *slog.Logger) *Poller {
	return &Poller{repo: repo, cache: cache, reader: reader, logger: logger.With("component", "cart_poller")}
}

func (p *Poller) Run(ctx context.Context) {
	for ctx.Err() == nil {
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.ErrorContext(ctx, "error reading message", "error", err)
			}
			continue
		}
		p.handle(ctx, m)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Error("error closing reader", "error", err)
	}
}

func (p *Poller) handle(ctx context.Context, m kafka.Message) {
	if t := eventType(m); t != "" && t != orders.EventOrderCompleted {
		return
	}

	var ev orders.OrderCompletedEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.logger.ErrorContext(ctx, "error parsing message", "offset", m.Offset, "error", err)
		return
	}
	if ev.CartID == "" {
		return
	}

	// Checkout empties the cart when it opens the payment session, so a cart touched
	// after the order completed is a new basket under the same id.
	cart, err := p.repo.GetCart(ctx, ev.CartID)
	switch {
	case err == nil:
		if !ev.CompletedAt.IsZero() && cart.UpdatedAt.After(ev.CompletedAt) {
			p.logger.InfoContext(ctx, "cart refilled after order, keeping it", "cart_id", ev.CartID, "order_id", ev.OrderID)
			return
		}
	case errors.Is(err, repository.ErrCartNotFound):
	default:
		p.logger.ErrorContext(ctx, "failed to load cart", "cart_id", ev.CartID, "error", err)
		return
	}

	if err := p.repo.DeleteCart(ctx, ev.CartID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		p.logger.ErrorContext(ctx, "failed to delete cart", "cart_id", ev.CartID, "error", err)
	}
	if err := p.cache.Delete(ctx, ev.CartID); err != nil {
		p.logger.ErrorContext(ctx, "failed to delete cached cart", "cart_id", ev.CartID, "error", err)
	}
	p.logger.InfoContext(ctx, "cart cleared after order", "cart_id", ev.CartID, "order_id", ev.OrderID)
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
