package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/repository"
)

type ProfileLedger interface {
	GetReferrerByUserID(ctx context.Context, userID string) (*domain.Referrer, error)
	GetReferrerStats(ctx context.Context, referrerID string) (*domain.ReferrerStats, error)
	ListUsagesByReferrer(ctx context.Context, referrerID string) ([]*domain.ReferralUsage, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
}

type ProfileHandler struct {
	ledger  ProfileLedger
	timeout time.Duration
	logger  *slog.Logger
}

func NewProfileHandler(ledger ProfileLedger, timeout time.Duration, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{ledger: ledger, timeout: timeout, logger: logger}
}

type referralProfile struct {
	Referrer        *domain.Referrer        `json:"referrer"`
	Stats           *domain.ReferrerStats   `json:"stats"`
	Usages          []*domain.ReferralUsage `json:"usages"`
	PayoutThreshold string                  `json:"payout_threshold"`
	PayoutEligible  bool                    `json:"payout_eligible"`
}

func (h *ProfileHandler) Referral(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p := principalFrom(r.Context())
	ref, err := h.ledger.GetReferrerByUserID(ctx, p.UserID)
	if errors.Is(err, repository.ErrReferrerNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "no referral code for this account")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	stats, err := h.ledger.GetReferrerStats(ctx, ref.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	usages, err := h.ledger.ListUsagesByReferrer(ctx, ref.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, referralProfile{
		Referrer:        ref,
		Stats:           stats,
		Usages:          usages,
		PayoutThreshold: domain.PayoutThreshold.StringFixed(2),
		PayoutEligible:  stats.Unpaid().GreaterThanOrEqual(domain.PayoutThreshold),
	})
}

func (h *ProfileHandler) Orders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.ledger.ListOrdersByUserID(ctx, principalFrom(r.Context()).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *ProfileHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "profile request failed", "request_id", getRequestID(r.Context()), "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
