package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/service"
	catalogrepo "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/catalog/repository"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/plans"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CartIDHeader carries the browser-session cart id in both directions.
const CartIDHeader = "X-Cart-ID"

type CartService interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	AddItem(ctx context.Context, cartID string, req service.AddItemRequest) (*domain.Cart, error)
	AddSubscription(ctx context.Context, cartID string, sel plans.Selector) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, cartID, productID, variantID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, cartID, productID, variantID string) (*domain.Cart, error)
	AssignUser(ctx context.Context, cartID, userID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, cartID string) error
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	logger  *slog.Logger
}

func NewCartHandler(carts CartService, timeout time.Duration, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout, logger: logger}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	VariantID string `json:"variant_id" validate:"max=64"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
}

type SubscriptionRequestDTO struct {
	PlanID   string `json:"plan_id" validate:"required,max=32"`
	Quantity int    `json:"quantity" validate:"min=0,max=99"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity" validate:"min=0,max=99"`
}

// CartResponse is the cart plus its derived total and mode.
type CartResponse struct {
	*domain.Cart
	Mode  domain.Mode `json:"mode"`
	Total int64       `json:"total"`
}

func newCartResponse(c *domain.Cart) CartResponse {
	return CartResponse{Cart: c, Mode: c.Mode(), Total: c.Total()}
}

// cartID returns the caller's cart id, minting one for a first visit.
func cartID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(CartIDHeader)
	if id == "" || len(id) > 64 {
		id = uuid.NewString()
	}
	w.Header().Set(CartIDHeader, id)
	return id
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.GetCart(ctx, cartID(w, r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := cartID(w, r)
	var req AddItemRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.carts.AddItem(ctx, id, service.AddItemRequest{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newCartResponse(h.bindUser(ctx, r, cart)))
}

func (h *CartHandler) AddSubscription(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := cartID(w, r)
	var req SubscriptionRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.carts.AddSubscription(ctx, id, plans.Selector{PlanID: req.PlanID, Quantity: req.Quantity})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newCartResponse(h.bindUser(ctx, r, cart)))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := cartID(w, r)
	var req UpdateQuantityRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, id, chi.URLParam(r, "product_id"), r.URL.Query().Get("variant_id"), req.Quantity)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.RemoveItem(ctx, cartID(w, r), chi.URLParam(r, "product_id"), r.URL.Query().Get("variant_id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.ClearCart(ctx, cartID(w, r)); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bindUser attaches a signed-in caller to the cart. Failure keeps the anonymous cart.
func (h *CartHandler) bindUser(ctx context.Context, r *http.Request, cart *domain.Cart) *domain.Cart {
	p := principalFrom(r.Context())
	if p == nil || cart.UserID == p.UserID {
		return cart
	}
	bound, err := h.carts.AssignUser(ctx, cart.ID, p.UserID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to bind cart to user", "cart_id", cart.ID, "error", err)
		return cart
	}
	return bound
}

func (h *CartHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrModeConflict):
		respondError(w, http.StatusConflict, "mode_conflict", err.Error())
	case errors.Is(err, service.ErrCurrencyMismatch):
		respondError(w, http.StatusConflict, "currency_mismatch", err.Error())
	case errors.Is(err, service.ErrProductUnavailable):
		respondError(w, http.StatusConflict, "product_unavailable", err.Error())
	case errors.Is(err, catalogrepo.ErrProductNotFound),
		errors.Is(err, service.ErrVariantNotFound),
		errors.Is(err, domain.ErrLineNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, plans.ErrUnknownPlan),
		errors.Is(err, plans.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		h.logger.ErrorContext(r.Context(), "cart request failed", "request_id", getRequestID(r.Context()), "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
