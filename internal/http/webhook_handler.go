package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/webhook"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment"
)

const (
	maxWebhookBody  = 64 << 10
	signatureHeader = "Stripe-Signature"
)

type WebhookReconciler interface {
	Handle(ctx context.Context, payload []byte, signature string) (webhook.Outcome, error)
}

type WebhookHandler struct {
	reconciler WebhookReconciler
	logger     *slog.Logger
}

func NewWebhookHandler(reconciler WebhookReconciler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, logger: logger}
}

func (h *WebhookHandler) Payments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook body too large")
		return
	}

	outcome, err := h.reconciler.Handle(ctx, payload, r.Header.Get(signatureHeader))
	if errors.Is(err, payment.ErrInvalidSignature) {
		respondError(w, http.StatusBadRequest, "invalid_signature", "invalid signature")
		return
	}
	if errors.Is(err, payment.ErrMalformedEvent) {
		respondError(w, http.StatusBadRequest, "malformed_event", "malformed event payload")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "webhook processing failed", "request_id", getRequestID(ctx), "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "webhook processing failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"received": true, "outcome": outcome})
}
