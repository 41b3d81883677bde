package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/colorfulme/api/internal/models"
)

// UserStore lets billing provision accounts announced by the payment
// provider before they exist locally.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// BillingService reacts to external billing events. It never initiates
// billing; it only applies subscriptions and credits arriving from the
// provider's webhooks.
type BillingService struct {
	log     *slog.Logger
	plans   *PlanService
	store   PlanStore
	users   UserStore
	credits *CreditService
	now     func() time.Time
}

func NewBillingService(log *slog.Logger, plans *PlanService, store PlanStore, users UserStore, credits *CreditService) *BillingService {
	return &BillingService{
		log:     log,
		plans:   plans,
		store:   store,
		users:   users,
		credits: credits,
		now:     time.Now,
	}
}

// ensureUser resolves or provisions the account a billing event refers to.
// An event with an email may provision a new account; one without may only
// target an existing user.
func (s *BillingService) ensureUser(ctx context.Context, userID, email string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user != nil {
		return nil
	}
	if email == "" {
		return fmt.Errorf("unknown user %s and no email to provision from", userID)
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("email %s already belongs to user %s", email, existing.ID)
	}

	if err := s.users.Create(ctx, &models.User{ID: userID, Email: email}); err != nil {
		return fmt.Errorf("provision user %s: %w", userID, err)
	}
	s.log.Info("provisioned user from billing event", "user_id", userID)
	return nil
}

// ApplyPlanSubscription activates a plan for the user: prior active
// subscriptions are deactivated, the subscription row is upserted by provider
// id, and the plan's monthly allowance is granted when the new status is
// active.
func (s *BillingService) ApplyPlanSubscription(ctx context.Context, userID, planCode, email, providerCustomerID, providerSubscriptionID, status string, currentPeriodEnd *time.Time) (*models.Subscription, error) {
	plan, err := s.plans.GetPlan(ctx, planCode)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("unknown plan code: %s", planCode)
	}

	if err := s.ensureUser(ctx, userID, email); err != nil {
		return nil, err
	}

	if err := s.store.DeactivateSubscriptions(ctx, userID); err != nil {
		return nil, err
	}

	var sub *models.Subscription
	if providerSubscriptionID != "" {
		sub, err = s.store.FindSubscriptionByProviderID(ctx, providerSubscriptionID)
		if err != nil {
			return nil, err
		}
	}

	if status == "" {
		status = "active"
	}
	periodEnd := currentPeriodEnd
	if periodEnd == nil {
		periodEnd = PeriodEnd(plan.Code, s.now())
	}

	if sub == nil {
		sub = &models.Subscription{UserID: userID}
	}
	sub.PlanID = plan.ID
	sub.Status = status
	sub.ProviderCustomerID = providerCustomerID
	sub.ProviderSubscriptionID = providerSubscriptionID
	sub.CurrentPeriodEnd = periodEnd
	sub.CancelAtPeriodEnd = false

	if sub.ID == 0 {
		err = s.store.CreateSubscription(ctx, sub)
	} else {
		err = s.store.UpdateSubscription(ctx, sub)
	}
	if err != nil {
		return nil, err
	}

	if status == "active" {
		grant := plan.MonthlyCredits
		if grant < 0 {
			grant = 0
		}
		if err := s.credits.Credit(ctx, userID, grant, models.ReasonPlanActivationRefill, "subscription", strconv.FormatInt(sub.ID, 10)); err != nil {
			return nil, err
		}
		s.log.Info("plan activated", "user_id", userID, "plan", plan.Code, "credits", grant)
	}

	if _, err := s.credits.EnsureWallet(ctx, userID); err != nil {
		return nil, err
	}
	return sub, nil
}

// InvoicePaid grants the plan allowance for a renewal invoice.
func (s *BillingService) InvoicePaid(ctx context.Context, userID, planCode, invoiceID string) error {
	plan, err := s.plans.GetPlan(ctx, planCode)
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("unknown plan code: %s", planCode)
	}
	if err := s.ensureUser(ctx, userID, ""); err != nil {
		return err
	}
	grant := plan.MonthlyCredits
	if grant < 0 {
		grant = 0
	}
	if err := s.credits.Credit(ctx, userID, grant, models.ReasonInvoicePaidRefill, "invoice", invoiceID); err != nil {
		return err
	}
	s.log.Info("invoice credited", "user_id", userID, "plan", plan.Code, "credits", grant, "invoice_id", invoiceID)
	return nil
}
