package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/checkout"
	orders "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment"
	"github.com/go-chi/chi/v5"
)

type CheckoutService interface {
	Submit(ctx context.Context, req checkout.SubmitRequest) (checkout.Result, error)
	AwaitOrder(ctx context.Context, sessionID string) (*orders.Order, error)
}

// UserDirectory records signed-in shoppers so their orders can be tied to them.
type UserDirectory interface {
	UpsertUser(ctx context.Context, user *orders.User) error
}

type CheckoutHandler struct {
	checkout CheckoutService
	users    UserDirectory
	logger   *slog.Logger
}

func NewCheckoutHandler(svc CheckoutService, users UserDirectory, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: svc, users: users, logger: logger}
}

type CheckoutRequestDTO struct {
	ReferralCode string `json:"referral_code" validate:"max=64"`
	SuccessURL   string `json:"success_url" validate:"required,url"`
	CancelURL    string `json:"cancel_url" validate:"required,url"`
}

type checkoutErrorResponse struct {
	ErrorResponse
	State    checkout.State `json:"state"`
	LoginURL string         `json:"login_url,omitempty"`
}

func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cartID := r.Header.Get(CartIDHeader)
	if cartID == "" {
		respondError(w, http.StatusBadRequest, "missing_cart", "X-Cart-ID header is required")
		return
	}
	var req CheckoutRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	sub := checkout.SubmitRequest{
		CartID:       cartID,
		ReferralCode: req.ReferralCode,
		SuccessURL:   req.SuccessURL,
		CancelURL:    req.CancelURL,
	}
	if p := principalFrom(ctx); p != nil {
		sub.User = &checkout.User{ID: p.UserID, Email: p.Email, Name: p.Name}
		h.rememberUser(ctx, p)
	}

	res, err := h.checkout.Submit(ctx, sub)
	if err == nil {
		respondJSON(w, http.StatusCreated, res)
		return
	}

	status, code, msg := http.StatusBadGateway, "payment_unavailable", "could not start payment, please try again"
	switch {
	case errors.Is(err, checkout.ErrLoginRequired):
		status, code, msg = http.StatusUnauthorized, "login_required", err.Error()
	case errors.Is(err, checkout.ErrSubmissionInFlight), errors.Is(err, checkout.ErrMixedCart):
		status, code, msg = http.StatusConflict, "checkout_conflict", err.Error()
	case errors.Is(err, checkout.ErrEmptyCart):
		status, code, msg = http.StatusUnprocessableEntity, "empty_cart", err.Error()
	case errors.Is(err, payment.ErrMetadataTooLarge):
		status, code, msg = http.StatusUnprocessableEntity, "cart_too_large", "cart has too many items for one checkout"
	case errors.Is(err, payment.ErrProcessor):
	default:
		h.logger.ErrorContext(ctx, "checkout failed", "request_id", getRequestID(ctx), "cart_id", cartID, "error", err)
		status, code, msg = http.StatusInternalServerError, "internal_error", "internal server error"
	}
	respondJSON(w, status, checkoutErrorResponse{
		ErrorResponse: ErrorResponse{Error: msg, Code: code},
		State:         res.State,
		LoginURL:      res.LoginURL,
	})
}

// Session reports whether the webhook has recorded the order for a session yet.
func (h *CheckoutHandler) Session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	order, err := h.checkout.AwaitOrder(ctx, chi.URLParam(r, "session_id"))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, order)
	case errors.Is(err, checkout.ErrOrderPending):
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
	default:
		h.logger.ErrorContext(ctx, "order confirmation failed", "request_id", getRequestID(ctx), "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// rememberUser is best-effort; a failure only means the order is recorded as a guest order.
func (h *CheckoutHandler) rememberUser(ctx context.Context, p *Principal) {
	if p.Email == "" {
		return
	}
	role := p.Role
	if role == "" {
		role = "customer"
	}
	if err := h.users.UpsertUser(ctx, &orders.User{ID: p.UserID, Email: p.Email, Name: p.Name, Role: role}); err != nil {
		h.logger.WarnContext(ctx, "failed to record user", "user_id", p.UserID, "error", err)
	}
}
