package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/repository"
	"github.com/go-chi/chi/v5"
)

// AdminLedger is the ledger surface behind the admin routes.
type AdminLedger interface {
	ListOrders(ctx context.Context) ([]*domain.Order, error)
	ListReferralUsages(ctx context.Context) ([]*domain.ReferralUsage, error)
	ListReferrerStats(ctx context.Context) ([]*domain.ReferrerStats, error)
	ApproveUsage(ctx context.Context, usageID string) error
	CreatePayout(ctx context.Context, req repository.PayoutRequest) (*domain.ReferralPayout, error)
	CreateReferrer(ctx context.Context, ref *domain.Referrer) error
	UpsertUser(ctx context.Context, user *domain.User) error
}

type AdminHandler struct {
	ledger  AdminLedger
	timeout time.Duration
	logger  *slog.Logger
}

func NewAdminHandler(ledger AdminLedger, timeout time.Duration, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{ledger: ledger, timeout: timeout, logger: logger}
}

type PayoutRequestDTO struct {
	ReferrerID string   `json:"referrer_id" validate:"required,uuid"`
	UsageIDs   []string `json:"usage_ids" validate:"omitempty,dive,uuid"`
	Method     string   `json:"payout_method" validate:"required,max=32"`
	Reference  string   `json:"payout_reference" validate:"max=128"`
}

type CreateReferrerRequestDTO struct {
	Code   string `json:"referral_code" validate:"required,alphanum,min=4,max=32"`
	Name   string `json:"name" validate:"required,max=128"`
	Email  string `json:"email" validate:"required,email"`
	UserID string `json:"user_id" validate:"max=64"`
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.ledger.ListOrders(ctx)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) ListUsages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	usages, err := h.ledger.ListReferralUsages(ctx)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, usages)
}

func (h *AdminHandler) ListStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.ledger.ListReferrerStats(ctx)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) ApproveUsage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.ledger.ApproveUsage(ctx, id); err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(domain.UsageStatusApproved)})
}

func (h *AdminHandler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PayoutRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	payout, err := h.ledger.CreatePayout(ctx, repository.PayoutRequest{
		ReferrerID: req.ReferrerID,
		UsageIDs:   req.UsageIDs,
		Method:     req.Method,
		Reference:  req.Reference,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.logger.InfoContext(ctx, "referral payout created",
		"payout_id", payout.ID, "referrer_id", payout.ReferrerID, "total", payout.TotalAmount.String())
	respondJSON(w, http.StatusCreated, payout)
}

// CreateReferrer registers a referral code. A linked user id is recorded in the users
// table first so the referrer can later see their stats.
func (h *AdminHandler) CreateReferrer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateReferrerRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID != "" {
		if err := h.ledger.UpsertUser(ctx, &domain.User{ID: req.UserID, Email: req.Email, Name: req.Name}); err != nil {
			h.handleError(w, r, err)
			return
		}
	}

	ref := &domain.Referrer{UserID: req.UserID, Code: req.Code, Name: req.Name, Email: req.Email}
	if err := h.ledger.CreateReferrer(ctx, ref); err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, ref)
}

func (h *AdminHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrUsageNotFound), errors.Is(err, repository.ErrReferrerNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, repository.ErrUsageNotPending),
		errors.Is(err, repository.ErrUsageNotPayable),
		errors.Is(err, repository.ErrDuplicateReferrer):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, repository.ErrBelowThreshold):
		respondError(w, http.StatusUnprocessableEntity, "below_threshold", err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "admin request failed", "request_id", getRequestID(r.Context()), "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
