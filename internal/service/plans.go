package service

import (
	"context"
	"fmt"
	"time"

	"github.com/colorfulme/api/internal/models"
)

// defaultPlans seeds the plan catalogue. Codes are stable identifiers used in
// ledger references and render-tier resolution.
var defaultPlans = []models.Plan{
	{Code: "free", Name: "Free", Interval: "free", MonthlyCredits: 20, PriceCents: 0, APIRPM: 20},
	{Code: "starter", Name: "Starter", Interval: "month", MonthlyCredits: 300, PriceCents: 900, APIRPM: 60},
	{Code: "pro", Name: "Pro", Interval: "month", MonthlyCredits: 1200, PriceCents: 2900, APIRPM: 120},
	{Code: "studio", Name: "Studio", Interval: "month", MonthlyCredits: 5000, PriceCents: 7900, APIRPM: 300},
	{Code: "lifetime", Name: "Lifetime", Interval: "lifetime", MonthlyCredits: 10000, PriceCents: 19900, APIRPM: 600},
}

// PlanStore is the persistence contract for plans and subscriptions.
type PlanStore interface {
	FindByCode(ctx context.Context, code string) (*models.Plan, error)
	Upsert(ctx context.Context, plan *models.Plan) error
	ActivePlanForUser(ctx context.Context, userID string, now time.Time) (*models.Plan, error)
	DeactivateSubscriptions(ctx context.Context, userID string) error
	FindSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error
}

type PlanService struct {
	plans PlanStore
	now   func() time.Time
}

func NewPlanService(plans PlanStore) *PlanService {
	return &PlanService{plans: plans, now: time.Now}
}

// SeedDefaultPlans makes sure the catalogue exists; safe to run on every boot.
func (s *PlanService) SeedDefaultPlans(ctx context.Context) error {
	for i := range defaultPlans {
		plan := defaultPlans[i]
		if err := s.plans.Upsert(ctx, &plan); err != nil {
			return fmt.Errorf("seed plan %s: %w", plan.Code, err)
		}
	}
	return nil
}

func (s *PlanService) GetPlan(ctx context.Context, code string) (*models.Plan, error) {
	return s.plans.FindByCode(ctx, code)
}

// ActivePlan returns the user's subscribed plan, falling back to free.
func (s *PlanService) ActivePlan(ctx context.Context, userID string) (*models.Plan, error) {
	plan, err := s.plans.ActivePlanForUser(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	if plan != nil {
		return plan, nil
	}

	free, err := s.plans.FindByCode(ctx, "free")
	if err != nil {
		return nil, err
	}
	if free == nil {
		// Seed has not run yet.
		if err := s.SeedDefaultPlans(ctx); err != nil {
			return nil, err
		}
		free, err = s.plans.FindByCode(ctx, "free")
		if err != nil {
			return nil, err
		}
		if free == nil {
			return nil, fmt.Errorf("free plan missing after seed")
		}
	}
	return free, nil
}

// PeriodEnd computes current_period_end for a plan code: a month ahead for
// renewing plans, open-ended for free and lifetime.
func PeriodEnd(planCode string, now time.Time) *time.Time {
	switch planCode {
	case "free", "lifetime":
		return nil
	}
	end := now.Add(renewalPeriod)
	return &end
}
