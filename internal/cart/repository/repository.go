package repository

import (
	"context"
	"errors"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository stores whole carts; line rules live on the aggregate.
type CartRepository interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, cartID string) error
}
