package repository

import (
	"context"
	"fmt"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type PayoutRequest struct {
	ReferrerID string
	// UsageIDs empty means every unpaid usage of the referrer.
	UsageIDs  []string
	Method    string
	Reference string
}

type lockedUsage struct {
	id         string
	referrerID string
	commission decimal.Decimal
	status     domain.UsageStatus
}

// CreatePayout pays out referral usages atomically. The usages are locked for the
// duration of the transaction, so two concurrent payouts cannot both pay the same row.
// Any paid, unknown or foreign usage rejects the whole payout.
func (r *Repository) CreatePayout(ctx context.Context, req PayoutRequest) (*domain.ReferralPayout, error) {
	referrerID, err := uuid.Parse(req.ReferrerID)
	if err != nil {
		return nil, ErrReferrerNotFound
	}
	req.ReferrerID = referrerID.String()
	ids, err := distinctUUIDs(req.UsageIDs)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer rollback(tx, r.logger)

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM referrers WHERE id = $1)`, req.ReferrerID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check referrer: %w", err)
	}
	if !exists {
		return nil, ErrReferrerNotFound
	}

	var (
		query string
		args  []any
	)
	if len(ids) == 0 {
		query = `SELECT id, referrer_id, commission_amount, status FROM referral_usages
		         WHERE referrer_id = $1 AND status IN ('pending', 'approved') ORDER BY created_at FOR UPDATE`
		args = []any{req.ReferrerID}
	} else {
		query = `SELECT id, referrer_id, commission_amount, status FROM referral_usages
		         WHERE id = ANY($1::uuid[]) ORDER BY created_at FOR UPDATE`
		args = []any{pq.Array(ids)}
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lock referral usages: %w", err)
	}
	var locked []lockedUsage
	for rows.Next() {
		var u lockedUsage
		if err := rows.Scan(&u.id, &u.referrerID, &u.commission, &u.status); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan locked usage: %w", err)
		}
		locked = append(locked, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if len(ids) > 0 && len(locked) != len(ids) {
		return nil, ErrUsageNotPayable
	}

	total := decimal.Zero
	payIDs := make([]string, 0, len(locked))
	for _, u := range locked {
		if u.referrerID != req.ReferrerID || u.status == domain.UsageStatusPaid {
			return nil, ErrUsageNotPayable
		}
		total = total.Add(u.commission)
		payIDs = append(payIDs, u.id)
	}
	if total.LessThan(domain.PayoutThreshold) {
		return nil, fmt.Errorf("%w: %s of %s", ErrBelowThreshold, total.StringFixed(2), domain.PayoutThreshold.StringFixed(2))
	}

	payout := &domain.ReferralPayout{
		ID:          uuid.NewString(),
		ReferrerID:  req.ReferrerID,
		TotalAmount: total,
		UsageCount:  len(payIDs),
		Method:      req.Method,
		Reference:   req.Reference,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO referral_payouts (id, referrer_id, total_amount, usage_count, payout_method, payout_reference)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		payout.ID, payout.ReferrerID, payout.TotalAmount, payout.UsageCount, payout.Method, payout.Reference,
	).Scan(&payout.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert payout: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE referral_usages
		 SET status = 'paid', payout_id = $1, payout_method = $2, payout_reference = $3, paid_at = $4
		 WHERE id = ANY($5::uuid[])`,
		payout.ID, payout.Method, payout.Reference, payout.CreatedAt, pq.Array(payIDs))
	if err != nil {
		return nil, fmt.Errorf("mark usages paid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payout: %w", err)
	}
	r.logger.InfoContext(ctx, "referral payout created",
		"payout_id", payout.ID, "referrer_id", payout.ReferrerID,
		"usages", payout.UsageCount, "total", payout.TotalAmount.StringFixed(2))
	return payout, nil
}

func distinctUUIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, ErrUsageNotPayable
		}
		key := parsed.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out, nil
}
