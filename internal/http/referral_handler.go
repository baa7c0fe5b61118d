package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/checkout"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/referral"
	"github.com/shopspring/decimal"
)

type ReferralHandler struct {
	validator checkout.ReferralValidator
	timeout   time.Duration
	logger    *slog.Logger
}

func NewReferralHandler(validator checkout.ReferralValidator, timeout time.Duration, logger *slog.Logger) *ReferralHandler {
	return &ReferralHandler{validator: validator, timeout: timeout, logger: logger}
}

type ValidateReferralRequestDTO struct {
	Code          string          `json:"referral_code" validate:"max=64"`
	CustomerEmail string          `json:"customer_email" validate:"omitempty,email"`
	OrderTotal    decimal.Decimal `json:"order_total"`
}

// Validate answers 200 for both valid and invalid codes.
func (h *ReferralHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ValidateReferralRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderTotal.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid_argument", "order_total must not be negative")
		return
	}

	res, err := h.validator.Validate(ctx, referral.Request{
		Code:          req.Code,
		CustomerEmail: req.CustomerEmail,
		OrderTotal:    req.OrderTotal,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "referral validation failed", "request_id", getRequestID(ctx), "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, res)
}
