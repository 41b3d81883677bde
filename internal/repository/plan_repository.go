package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/colorfulme/api/internal/models"
)

type PlanRepository struct {
	db *sql.DB
}

func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) FindByCode(ctx context.Context, code string) (*models.Plan, error) {
	const query = `
SELECT id, code, name, renewal_interval, monthly_credits, price_cents, api_rpm, is_active, created_at
FROM plans WHERE code = ? AND is_active = 1`
	return r.scanPlan(r.db.QueryRowContext(ctx, query, code))
}

// Upsert creates or refreshes a plan definition keyed by code.
func (r *PlanRepository) Upsert(ctx context.Context, plan *models.Plan) error {
	const query = `
INSERT INTO plans (code, name, renewal_interval, monthly_credits, price_cents, api_rpm, is_active)
VALUES (?, ?, ?, ?, ?, ?, 1)
ON DUPLICATE KEY UPDATE
    name = VALUES(name),
    renewal_interval = VALUES(renewal_interval),
    monthly_credits = VALUES(monthly_credits),
    price_cents = VALUES(price_cents),
    api_rpm = VALUES(api_rpm),
    is_active = 1`
	if _, err := r.db.ExecContext(ctx, query, plan.Code, plan.Name, plan.Interval, plan.MonthlyCredits, plan.PriceCents, plan.APIRPM); err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

// ActivePlanForUser resolves the plan of the user's newest active,
// non-expired subscription, or nil when the user has none.
func (r *PlanRepository) ActivePlanForUser(ctx context.Context, userID string, now time.Time) (*models.Plan, error) {
	const query = `
SELECT p.id, p.code, p.name, p.renewal_interval, p.monthly_credits, p.price_cents, p.api_rpm, p.is_active, p.created_at
FROM subscriptions s
JOIN plans p ON p.id = s.plan_id
WHERE s.user_id = ? AND s.status = 'active' AND (s.current_period_end IS NULL OR s.current_period_end > ?)
ORDER BY s.created_at DESC
LIMIT 1`
	return r.scanPlan(r.db.QueryRowContext(ctx, query, userID, now))
}

func (r *PlanRepository) scanPlan(row *sql.Row) (*models.Plan, error) {
	var p models.Plan
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Interval, &p.MonthlyCredits, &p.PriceCents, &p.APIRPM, &p.IsActive, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	return &p, nil
}

// DeactivateSubscriptions marks every active subscription of a user inactive,
// keeping entitlement resolution deterministic before a new one is applied.
func (r *PlanRepository) DeactivateSubscriptions(ctx context.Context, userID string) error {
	const query = `UPDATE subscriptions SET status = 'inactive', updated_at = NOW() WHERE user_id = ? AND status = 'active'`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("deactivate subscriptions: %w", err)
	}
	return nil
}

func (r *PlanRepository) FindSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error) {
	const query = `
SELECT id, user_id, plan_id, status, COALESCE(provider_customer_id, ''), COALESCE(provider_subscription_id, ''), current_period_end, cancel_at_period_end, created_at, updated_at
FROM subscriptions WHERE provider_subscription_id = ?`
	row := r.db.QueryRowContext(ctx, query, providerSubscriptionID)
	var s models.Subscription
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.Status, &s.ProviderCustomerID, &s.ProviderSubscriptionID, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &s, nil
}

func (r *PlanRepository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	const query = `
INSERT INTO subscriptions (user_id, plan_id, status, provider_customer_id, provider_subscription_id, current_period_end, cancel_at_period_end)
VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?)`
	res, err := r.db.ExecContext(ctx, query, sub.UserID, sub.PlanID, sub.Status, sub.ProviderCustomerID, sub.ProviderSubscriptionID, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	sub.ID = id
	return nil
}

func (r *PlanRepository) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	const query = `
UPDATE subscriptions
SET plan_id = ?, status = ?, provider_customer_id = NULLIF(?, ''), provider_subscription_id = NULLIF(?, ''),
    current_period_end = ?, cancel_at_period_end = ?, updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, sub.PlanID, sub.Status, sub.ProviderCustomerID, sub.ProviderSubscriptionID, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.ID); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}
