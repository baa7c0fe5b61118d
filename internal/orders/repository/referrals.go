package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/domain"
	"github.com/google/uuid"
)

func (r *Repository) CreateReferrer(ctx context.Context, ref *domain.Referrer) error {
	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO referrers (id, user_id, referral_code, name, email) VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		ref.ID, nullString(ref.UserID), ref.Code, ref.Name, ref.Email,
	).Scan(&ref.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReferrer
		}
		return fmt.Errorf("insert referrer: %w", err)
	}
	return nil
}

// FindReferrerByCode is an exact match ignoring case.
func (r *Repository) FindReferrerByCode(ctx context.Context, code string) (*domain.Referrer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, referral_code, name, email, created_at FROM referrers WHERE LOWER(referral_code) = $1`,
		strings.ToLower(code))
	return scanReferrer(row)
}

func (r *Repository) GetReferrerByUserID(ctx context.Context, userID string) (*domain.Referrer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, referral_code, name, email, created_at FROM referrers WHERE user_id = $1`, userID)
	return scanReferrer(row)
}

func scanReferrer(s scanner) (*domain.Referrer, error) {
	var (
		ref    domain.Referrer
		userID sql.NullString
	)
	err := s.Scan(&ref.ID, &userID, &ref.Code, &ref.Name, &ref.Email, &ref.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReferrerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan referrer: %w", err)
	}
	ref.UserID = userID.String
	return &ref, nil
}

func (r *Repository) CreateReferralUsage(ctx context.Context, usage *domain.ReferralUsage) error {
	if usage.ID == "" {
		usage.ID = uuid.NewString()
	}
	if usage.Status == "" {
		usage.Status = domain.UsageStatusPending
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO referral_usages (id, referrer_id, order_id, customer_email, discount_amount, commission_amount, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		usage.ID, usage.ReferrerID, usage.OrderID, usage.CustomerEmail,
		usage.DiscountAmount, usage.CommissionAmount, usage.Status,
	).Scan(&usage.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsage
		}
		return fmt.Errorf("insert referral usage: %w", err)
	}
	return nil
}

const usageColumns = `u.id, u.referrer_id, u.order_id, u.customer_email, u.discount_amount, u.commission_amount,
	u.status, u.payout_id, u.payout_method, u.payout_reference, u.paid_at, u.created_at, o.total_amount`

// ListReferralUsages returns every usage with its order total, newest first.
func (r *Repository) ListReferralUsages(ctx context.Context) ([]*domain.ReferralUsage, error) {
	return r.queryUsages(ctx,
		`SELECT `+usageColumns+` FROM referral_usages u JOIN orders o ON o.id = u.order_id
		 ORDER BY u.created_at DESC`)
}

func (r *Repository) ListUsagesByReferrer(ctx context.Context, referrerID string) ([]*domain.ReferralUsage, error) {
	return r.queryUsages(ctx,
		`SELECT `+usageColumns+` FROM referral_usages u JOIN orders o ON o.id = u.order_id
		 WHERE u.referrer_id = $1 ORDER BY u.created_at DESC`, referrerID)
}

func (r *Repository) queryUsages(ctx context.Context, query string, args ...any) ([]*domain.ReferralUsage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query referral usages: %w", err)
	}
	defer rows.Close()

	usages := []*domain.ReferralUsage{}
	for rows.Next() {
		var (
			u        domain.ReferralUsage
			payoutID sql.NullString
			paidAt   sql.NullTime
		)
		if err := rows.Scan(
			&u.ID, &u.ReferrerID, &u.OrderID, &u.CustomerEmail, &u.DiscountAmount, &u.CommissionAmount,
			&u.Status, &payoutID, &u.PayoutMethod, &u.PayoutReference, &paidAt, &u.CreatedAt, &u.OrderTotal,
		); err != nil {
			return nil, fmt.Errorf("scan referral usage: %w", err)
		}
		u.PayoutID = payoutID.String
		if paidAt.Valid {
			u.PaidAt = &paidAt.Time
		}
		usages = append(usages, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return usages, nil
}

const statsQuery = `SELECT r.id, r.referral_code, r.name,
	COUNT(u.id),
	COALESCE(SUM(u.discount_amount), 0),
	COALESCE(SUM(u.commission_amount) FILTER (WHERE u.status = 'pending'), 0),
	COALESCE(SUM(u.commission_amount) FILTER (WHERE u.status = 'approved'), 0),
	COALESCE(SUM(u.commission_amount) FILTER (WHERE u.status = 'paid'), 0)
	FROM referrers r LEFT JOIN referral_usages u ON u.referrer_id = r.id`

// ListReferrerStats aggregates usages per referrer, including referrers with none.
func (r *Repository) ListReferrerStats(ctx context.Context) ([]*domain.ReferrerStats, error) {
	rows, err := r.db.QueryContext(ctx, statsQuery+` GROUP BY r.id, r.referral_code, r.name ORDER BY r.name`)
	if err != nil {
		return nil, fmt.Errorf("query referrer stats: %w", err)
	}
	defer rows.Close()

	stats := []*domain.ReferrerStats{}
	for rows.Next() {
		s, err := scanStats(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return stats, nil
}

func (r *Repository) GetReferrerStats(ctx context.Context, referrerID string) (*domain.ReferrerStats, error) {
	if _, err := uuid.Parse(referrerID); err != nil {
		return nil, ErrReferrerNotFound
	}
	row := r.db.QueryRowContext(ctx, statsQuery+` WHERE r.id = $1 GROUP BY r.id, r.referral_code, r.name`, referrerID)
	s, err := scanStats(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReferrerNotFound
	}
	return s, err
}

func scanStats(s scanner) (*domain.ReferrerStats, error) {
	var st domain.ReferrerStats
	err := s.Scan(&st.ReferrerID, &st.Code, &st.Name, &st.TotalUsages, &st.TotalDiscountGiven,
		&st.PendingCommission, &st.ApprovedCommission, &st.PaidCommission)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan referrer stats: %w", err)
	}
	return &st, nil
}

// ApproveUsage moves a usage from pending to approved.
func (r *Repository) ApproveUsage(ctx context.Context, usageID string) error {
	if _, err := uuid.Parse(usageID); err != nil {
		return ErrUsageNotFound
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE referral_usages SET status = 'approved' WHERE id = $1 AND status = 'pending'`, usageID)
	if err != nil {
		return fmt.Errorf("approve usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("approve usage rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM referral_usages WHERE id = $1)`, usageID).Scan(&exists); err != nil {
		return fmt.Errorf("check usage: %w", err)
	}
	if !exists {
		return ErrUsageNotFound
	}
	return ErrUsageNotPending
}
