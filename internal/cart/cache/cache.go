package cache

import (
	"context"
	"errors"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/domain"
)

type CartCache interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	Set(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, cartID string) error
}

var ErrCacheMiss = errors.New("cache miss")
