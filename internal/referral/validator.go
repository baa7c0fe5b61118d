// Package referral checks referral codes against the referrer directory and prices
// the customer discount they grant.
package referral

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/repository"
	"github.com/shopspring/decimal"
)

const invalidCodeMessage = "invalid referral code"

// Directory is the read-only referrer lookup.
type Directory interface {
	FindReferrerByCode(ctx context.Context, code string) (*domain.Referrer, error)
}

type Request struct {
	Code          string
	CustomerEmail string
	OrderTotal    decimal.Decimal
}

type Result struct {
	Success         bool            `json:"success"`
	ReferrerID      string          `json:"referrer_id,omitempty"`
	Code            string          `json:"referral_code,omitempty"`
	DiscountPercent int             `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	FinalTotal      decimal.Decimal `json:"final_total"`
	Error           string          `json:"error,omitempty"`
}

type Validator struct {
	directory Directory
	logger    *slog.Logger
}

func NewValidator(directory Directory, logger *slog.Logger) *Validator {
	return &Validator{directory: directory, logger: logger.With("component", "referral_validator")}
}

// Validate never writes anything, so calling it twice with the same input gives the
// same answer. An unknown code is a normal, unsuccessful result; only directory
// failures come back as errors.
func (v *Validator) Validate(ctx context.Context, req Request) (Result, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return invalid(req.OrderTotal), nil
	}

	ref, err := v.directory.FindReferrerByCode(ctx, code)
	if errors.Is(err, repository.ErrReferrerNotFound) {
		v.logger.DebugContext(ctx, "unknown referral code", "code", code)
		return invalid(req.OrderTotal), nil
	}
	if err != nil {
		return Result{}, err
	}

	if req.CustomerEmail != "" && strings.EqualFold(strings.TrimSpace(req.CustomerEmail), ref.Email) {
		v.logger.InfoContext(ctx, "self referral rejected", "referrer_id", ref.ID)
		return invalid(req.OrderTotal), nil
	}

	discount := domain.CustomerDiscount(req.OrderTotal)
	return Result{
		Success:         true,
		ReferrerID:      ref.ID,
		Code:            ref.Code,
		DiscountPercent: domain.CustomerDiscountPercent,
		DiscountAmount:  discount,
		FinalTotal:      req.OrderTotal.Sub(discount),
	}, nil
}

func invalid(total decimal.Decimal) Result {
	return Result{
		DiscountAmount: decimal.Zero,
		FinalTotal:     total,
		Error:          invalidCodeMessage,
	}
}
