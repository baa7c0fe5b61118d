package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/cache"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/repository"
	catalog "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/catalog/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/plans"
	"golang.org/x/sync/singleflight"
)

var (
	ErrProductUnavailable = errors.New("product is not available in the requested quantity")
	ErrVariantNotFound    = errors.New("variant not found")
	ErrCurrencyMismatch   = errors.New("product is priced in a different currency than the cart")
)

// ProductCatalog is the read side of the catalog the cart prices lines from.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

type AddItemRequest struct {
	ProductID string
	VariantID string
	Quantity  int
}

type CartService struct {
	repo     repository.CartRepository
	cache    cache.CartCache
	catalog  ProductCatalog
	currency string
	logger   *slog.Logger

	sfg   singleflight.Group
	locks sync.Map // cart id -> *sync.Mutex
	gens  sync.Map // cart id -> *atomic.Uint64, bumped under the cart lock on every write
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, catalog ProductCatalog, currency string, logger *slog.Logger) *CartService {
	return &CartService{
		repo:     repo,
		cache:    cache,
		catalog:  catalog,
		currency: currency,
		logger:   logger.With("component", "cart_service"),
	}
}

// GetCart reads through the cache. A cart that was never saved comes back empty.
func (s *CartService) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(cartID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, cartID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "cache get failed", "cart_id", cartID, "error", err)
		}

		gen := s.generation(cartID).Load()
		cart, err = s.repo.GetCart(ctx, cartID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return domain.NewCart(cartID, s.currency), nil
		}
		if err != nil {
			return nil, err
		}

		go s.fillCache(cart, gen)
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// LoadCart reads the stored cart, bypassing the cache.
func (s *CartService) LoadCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, cartID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.NewCart(cartID, s.currency), nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// fillCache caches a cart read at generation gen, unless a write has landed since.
// The check and the Set share the cart lock so a later invalidation always wins.
func (s *CartService) fillCache(c *domain.Cart, gen uint64) {
	unlock := s.lock(c.ID)
	defer unlock()

	if s.generation(c.ID).Load() != gen {
		s.logger.Debug("cart changed since read, skipping cache fill", "cart_id", c.ID)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, c); err != nil {
		s.logger.Warn("cache set failed", "cart_id", c.ID, "error", err)
	}
}

// AddItem prices the line from the catalog; the client never supplies prices.
func (s *CartService) AddItem(ctx context.Context, cartID string, req AddItemRequest) (*domain.Cart, error) {
	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Available {
		return nil, ErrProductUnavailable
	}

	line := domain.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		ImageURL:  product.ImageURL,
		Quantity:  req.Quantity,
		UnitPrice: product.Price,
	}
	stock := product.Stock
	if req.VariantID != "" {
		variant, ok := product.Variant(req.VariantID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, req.VariantID)
		}
		line.VariantID = variant.ID
		line.Color = variant.Color
		line.PriceAdjustment = variant.PriceAdjustment
		stock = variant.Stock
		if variant.ImageURL != "" {
			line.ImageURL = variant.ImageURL
		}
	}
	if stock < req.Quantity {
		return nil, ErrProductUnavailable
	}

	return s.mutate(ctx, cartID, func(c *domain.Cart) error {
		if product.Currency != c.Currency {
			return ErrCurrencyMismatch
		}
		return c.AddLine(line)
	})
}

// AddSubscription puts a plan selection in the cart, replacing any previous one.
func (s *CartService) AddSubscription(ctx context.Context, cartID string, sel plans.Selector) (*domain.Cart, error) {
	plan, err := plans.Resolve(sel)
	if err != nil {
		return nil, err
	}

	line := domain.CartLine{
		ProductID:    "plan-" + plan.ID,
		Name:         plan.Name,
		Quantity:     plan.Units,
		UnitPrice:    plan.UnitPrice(),
		Subscription: &plans.Selector{PlanID: sel.PlanID, Quantity: sel.Quantity},
	}

	return s.mutate(ctx, cartID, func(c *domain.Cart) error {
		if c.Currency != plans.Currency {
			return ErrCurrencyMismatch
		}
		return c.AddLine(line)
	})
}

func (s *CartService) UpdateQuantity(ctx context.Context, cartID, productID, variantID string, quantity int) (*domain.Cart, error) {
	return s.mutate(ctx, cartID, func(c *domain.Cart) error {
		return c.UpdateQuantity(productID, variantID, quantity)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, cartID, productID, variantID string) (*domain.Cart, error) {
	return s.mutate(ctx, cartID, func(c *domain.Cart) error {
		return c.RemoveLine(productID, variantID)
	})
}

// AssignUser binds an anonymous cart to a signed-in user.
func (s *CartService) AssignUser(ctx context.Context, cartID, userID string) (*domain.Cart, error) {
	return s.mutate(ctx, cartID, func(c *domain.Cart) error {
		c.UserID = userID
		return nil
	})
}

// ClearCart deletes the cart. Clearing a cart that does not exist is not an error.
func (s *CartService) ClearCart(ctx context.Context, cartID string) error {
	unlock := s.lock(cartID)
	defer unlock()

	err := s.repo.DeleteCart(ctx, cartID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		s.logger.ErrorContext(ctx, "repo delete cart failed", "cart_id", cartID, "error", err)
		return err
	}
	s.generation(cartID).Add(1)
	s.invalidateCache(cartID)
	return nil
}

// mutate serializes read-modify-write cycles per cart within this process and always
// reads the stored cart, not the cached copy.
func (s *CartService) mutate(ctx context.Context, cartID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	unlock := s.lock(cartID)
	defer unlock()

	cart, err := s.repo.GetCart(ctx, cartID)
	if errors.Is(err, repository.ErrCartNotFound) {
		cart = domain.NewCart(cartID, s.currency)
	} else if err != nil {
		return nil, err
	}

	if err := fn(cart); err != nil {
		return nil, err
	}
	if err := s.repo.SaveCart(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "repo save cart failed", "cart_id", cartID, "error", err)
		return nil, err
	}

	s.generation(cartID).Add(1)
	s.invalidateCache(cartID)
	return cart, nil
}

func (s *CartService) lock(cartID string) func() {
	v, _ := s.locks.LoadOrStore(cartID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *CartService) generation(cartID string) *atomic.Uint64 {
	v, _ := s.gens.LoadOrStore(cartID, &atomic.Uint64{})
	return v.(*atomic.Uint64)
}

func (s *CartService) invalidateCache(cartID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, cartID); err != nil {
		s.logger.Warn("cache invalidate failed", "cart_id", cartID, "error", err)
	}
}
