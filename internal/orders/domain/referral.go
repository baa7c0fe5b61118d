package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Referral programme policy.
const (
	CustomerDiscountPercent   = 10
	ReferrerCommissionPercent = 5
)

var PayoutThreshold = decimal.RequireFromString("20.00")

type UsageStatus string

const (
	UsageStatusPending  UsageStatus = "pending"
	UsageStatusApproved UsageStatus = "approved"
	UsageStatusPaid     UsageStatus = "paid"
)

type Referrer struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Code      string    `json:"referral_code"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type ReferralUsage struct {
	ID               string          `json:"id"`
	ReferrerID       string          `json:"referrer_id"`
	OrderID          string          `json:"order_id"`
	CustomerEmail    string          `json:"customer_email,omitempty"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	Status           UsageStatus     `json:"status"`
	PayoutID         string          `json:"payout_id,omitempty"`
	PayoutMethod     string          `json:"payout_method,omitempty"`
	PayoutReference  string          `json:"payout_reference,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`

	// Joined from the order on admin reads.
	OrderTotal decimal.Decimal `json:"order_total"`
}

type ReferralPayout struct {
	ID          string          `json:"id"`
	ReferrerID  string          `json:"referrer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	UsageCount  int             `json:"usage_count"`
	Method      string          `json:"payout_method"`
	Reference   string          `json:"payout_reference,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ReferrerStats struct {
	ReferrerID         string          `json:"referrer_id"`
	Code               string          `json:"referral_code"`
	Name               string          `json:"name"`
	TotalUsages        int             `json:"total_usages"`
	TotalDiscountGiven decimal.Decimal `json:"total_discount_given"`
	PendingCommission  decimal.Decimal `json:"pending_commission"`
	ApprovedCommission decimal.Decimal `json:"approved_commission"`
	PaidCommission     decimal.Decimal `json:"paid_commission"`
}

// Unpaid is what a payout for this referrer would currently cover.
func (s ReferrerStats) Unpaid() decimal.Decimal {
	return s.PendingCommission.Add(s.ApprovedCommission)
}

// CustomerDiscount is the referral discount on an order total.
func CustomerDiscount(total decimal.Decimal) decimal.Decimal {
	return percentOf(total, CustomerDiscountPercent)
}

// Commission is the referrer's cut of the items subtotal.
func Commission(subtotal decimal.Decimal) decimal.Decimal {
	return percentOf(subtotal, ReferrerCommissionPercent)
}

func percentOf(amount decimal.Decimal, pct int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100)).Round(2)
}
