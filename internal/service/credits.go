package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/colorfulme/api/internal/models"
	"github.com/colorfulme/api/internal/repository"
)

// ErrInsufficientCredits is returned by Debit when the wallet balance does not
// cover the requested amount. The balance is left untouched.
var ErrInsufficientCredits = errors.New("insufficient credits")

// renewalPeriod is how far cycle_reset_at advances on creation and refill.
const renewalPeriod = 30 * 24 * time.Hour

// WalletStore is the persistence contract the credit service needs. Each
// mutating call commits the balance change and its ledger entry atomically.
type WalletStore interface {
	FindByUser(ctx context.Context, userID string) (*models.Wallet, error)
	CreateWithGrant(ctx context.Context, userID string, grant int, cycleResetAt time.Time, planCode string) (*models.Wallet, error)
	ApplyRefill(ctx context.Context, userID string, amount int, now, nextResetAt time.Time, planCode string) error
	Debit(ctx context.Context, userID string, amount int, reason models.LedgerReason, refType, refID string) error
	Credit(ctx context.Context, userID string, amount int, reason models.LedgerReason, refType, refID string) error
}

// PlanResolver yields the plan currently governing a user's allowance.
type PlanResolver interface {
	ActivePlan(ctx context.Context, userID string) (*models.Plan, error)
}

type CreditService struct {
	log     *slog.Logger
	wallets WalletStore
	plans   PlanResolver
	now     func() time.Time
}

func NewCreditService(log *slog.Logger, wallets WalletStore, plans PlanResolver) *CreditService {
	return &CreditService{
		log:     log,
		wallets: wallets,
		plans:   plans,
		now:     time.Now,
	}
}

// EnsureWallet idempotently returns the user's wallet, creating it with an
// initial grant equal to the active plan's monthly allowance if absent.
func (s *CreditService) EnsureWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	wallet, err := s.wallets.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}

	plan, err := s.plans.ActivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	grant := plan.MonthlyCredits
	if grant < 0 {
		grant = 0
	}

	wallet, err = s.wallets.CreateWithGrant(ctx, userID, grant, s.now().Add(renewalPeriod), plan.Code)
	if err != nil {
		// Another request created the wallet concurrently; use theirs.
		if errors.Is(err, repository.ErrWalletExists) {
			return s.wallets.FindByUser(ctx, userID)
		}
		return nil, err
	}
	return wallet, nil
}

// AvailableCredits returns the current balance after lazily applying a cycle
// refill when the reset time has passed. The refill is guarded by a
// conditional update, so concurrent reads perform it at most once.
func (s *CreditService) AvailableCredits(ctx context.Context, userID string) (int, error) {
	wallet, err := s.ensureFreshWallet(ctx, userID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

// Debit reserves credits before work begins. It fails with
// ErrInsufficientCredits without any partial debit when the balance does not
// cover the amount. Zero or negative amounts are a no-op.
func (s *CreditService) Debit(ctx context.Context, userID string, amount int, reason models.LedgerReason, refType, refID string) error {
	if amount <= 0 {
		return nil
	}

	wallet, err := s.ensureFreshWallet(ctx, userID)
	if err != nil {
		return err
	}

	err = s.wallets.Debit(ctx, userID, amount, reason, refType, refID)
	if err != nil {
		if errors.Is(err, repository.ErrConditionNotMet) {
			return fmt.Errorf("%w: need %d credits but only %d available", ErrInsufficientCredits, amount, wallet.Balance)
		}
		return err
	}
	return nil
}

// Credit unconditionally adds credits (refunds, billing events). Zero or
// negative amounts are a no-op so callers stay simple.
func (s *CreditService) Credit(ctx context.Context, userID string, amount int, reason models.LedgerReason, refType, refID string) error {
	if amount <= 0 {
		return nil
	}
	if _, err := s.EnsureWallet(ctx, userID); err != nil {
		return err
	}
	return s.wallets.Credit(ctx, userID, amount, reason, refType, refID)
}

func (s *CreditService) ensureFreshWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	wallet, err := s.EnsureWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if wallet.CycleResetAt.After(now) {
		return wallet, nil
	}

	plan, err := s.plans.ActivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	refill := plan.MonthlyCredits
	if refill < 0 {
		refill = 0
	}

	err = s.wallets.ApplyRefill(ctx, userID, refill, now, now.Add(renewalPeriod), plan.Code)
	if err != nil && !errors.Is(err, repository.ErrConditionNotMet) {
		return nil, err
	}
	if err == nil {
		s.log.Info("applied monthly refill", "user_id", userID, "amount", refill, "plan", plan.Code)
	}

	return s.wallets.FindByUser(ctx, userID)
}
