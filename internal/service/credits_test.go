package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulme/api/internal/models"
	"github.com/colorfulme/api/internal/repository"
)

// memWalletStore mirrors the SQL repository's conditional-update semantics in
// memory so service behavior can be tested without a database.
type memWalletStore struct {
	mu     sync.Mutex
	wallet *models.Wallet
	ledger []models.LedgerEntry
}

func (m *memWalletStore) FindByUser(ctx context.Context, userID string) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wallet == nil || m.wallet.UserID != userID {
		return nil, nil
	}
	cp := *m.wallet
	return &cp, nil
}

func (m *memWalletStore) CreateWithGrant(ctx context.Context, userID string, grant int, cycleResetAt time.Time, planCode string) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wallet != nil {
		return nil, repository.ErrWalletExists
	}
	m.wallet = &models.Wallet{
		ID:              1,
		UserID:          userID,
		Balance:         grant,
		CycleResetAt:    cycleResetAt,
		LifetimeGranted: grant,
	}
	if grant > 0 {
		m.appendEntry(userID, grant, models.ReasonInitialGrant, "plan", planCode)
	}
	cp := *m.wallet
	return &cp, nil
}

func (m *memWalletStore) ApplyRefill(ctx context.Context, userID string, amount int, now, nextResetAt time.Time, planCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wallet == nil || m.wallet.CycleResetAt.After(now) {
		return repository.ErrConditionNotMet
	}
	m.wallet.Balance += amount
	m.wallet.LifetimeGranted += amount
	m.wallet.CycleResetAt = nextResetAt
	m.appendEntry(userID, amount, models.ReasonMonthlyRefill, "plan", planCode)
	return nil
}

func (m *memWalletStore) Debit(ctx context.Context, userID string, amount int, reason models.LedgerReason, refType, refID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wallet == nil || m.wallet.Balance < amount {
		return repository.ErrConditionNotMet
	}
	m.wallet.Balance -= amount
	m.wallet.LifetimeUsed += amount
	m.appendEntry(userID, -amount, reason, refType, refID)
	return nil
}

func (m *memWalletStore) Credit(ctx context.Context, userID string, amount int, reason models.LedgerReason, refType, refID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wallet == nil {
		return repository.ErrConditionNotMet
	}
	m.wallet.Balance += amount
	m.wallet.LifetimeGranted += amount
	m.appendEntry(userID, amount, reason, refType, refID)
	return nil
}

func (m *memWalletStore) appendEntry(userID string, amount int, reason models.LedgerReason, refType, refID string) {
	m.ledger = append(m.ledger, models.LedgerEntry{
		ID:            int64(len(m.ledger) + 1),
		UserID:        userID,
		WalletID:      1,
		Amount:        amount,
		Reason:        reason,
		ReferenceType: refType,
		ReferenceID:   refID,
	})
}

func (m *memWalletStore) ledgerSum() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, e := range m.ledger {
		sum += e.Amount
	}
	return sum
}

func (m *memWalletStore) entriesByReason(reason models.LedgerReason) []models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range m.ledger {
		if e.Reason == reason {
			out = append(out, e)
		}
	}
	return out
}

func (m *memWalletStore) entriesByReference(refType, refID string) []models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range m.ledger {
		if e.ReferenceType == refType && e.ReferenceID == refID {
			out = append(out, e)
		}
	}
	return out
}

type fakePlans struct {
	plan models.Plan
}

func (f *fakePlans) ActivePlan(ctx context.Context, userID string) (*models.Plan, error) {
	cp := f.plan
	return &cp, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCreditFixture(t *testing.T, monthlyCredits int) (*CreditService, *memWalletStore) {
	t.Helper()
	store := &memWalletStore{}
	plans := &fakePlans{plan: models.Plan{ID: 1, Code: "free", MonthlyCredits: monthlyCredits}}
	svc := NewCreditService(testLogger(), store, plans)
	return svc, store
}

func TestEnsureWalletCreatesInitialGrantOnce(t *testing.T) {
	svc, store := newCreditFixture(t, 20)
	ctx := context.Background()

	w1, err := svc.EnsureWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 20, w1.Balance)

	w2, err := svc.EnsureWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 20, w2.Balance)

	assert.Len(t, store.entriesByReason(models.ReasonInitialGrant), 1)
}

func TestAvailableCreditsAppliesRefillOnce(t *testing.T) {
	svc, store := newCreditFixture(t, 20)
	ctx := context.Background()

	_, err := svc.EnsureWallet(ctx, "user-1")
	require.NoError(t, err)

	// Move past the reset boundary; two immediate reads must refill once.
	svc.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }

	balance, err := svc.AvailableCredits(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 40, balance)

	balance, err = svc.AvailableCredits(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 40, balance)

	assert.Len(t, store.entriesByReason(models.ReasonMonthlyRefill), 1)
}

func TestDebitInsufficientLeavesBalanceUnchanged(t *testing.T) {
	svc, store := newCreditFixture(t, 5)
	ctx := context.Background()

	_, err := svc.EnsureWallet(ctx, "user-1")
	require.NoError(t, err)
	before := len(store.ledger)

	err = svc.Debit(ctx, "user-1", 10, models.ReasonGeneration, "generation_job", "job-1")
	require.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Contains(t, err.Error(), "need 10 credits but only 5 available")

	w, err := svc.EnsureWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, w.Balance)
	assert.Len(t, store.ledger, before)
}

func TestDebitWritesOneNegativeEntry(t *testing.T) {
	svc, store := newCreditFixture(t, 20)
	ctx := context.Background()

	require.NoError(t, svc.Debit(ctx, "user-1", 2, models.ReasonGeneration, "generation_job", "job-7"))

	entries := store.entriesByReference("generation_job", "job-7")
	require.Len(t, entries, 1)
	assert.Equal(t, -2, entries[0].Amount)
	assert.Equal(t, models.ReasonGeneration, entries[0].Reason)

	w, err := svc.EnsureWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 18, w.Balance)
	assert.Equal(t, 2, w.LifetimeUsed)
}

func TestCreditZeroOrNegativeIsNoOp(t *testing.T) {
	svc, store := newCreditFixture(t, 20)
	ctx := context.Background()

	_, err := svc.EnsureWallet(ctx, "user-1")
	require.NoError(t, err)
	before := len(store.ledger)

	require.NoError(t, svc.Credit(ctx, "user-1", 0, models.ReasonSystemAdjustment, "system", ""))
	require.NoError(t, svc.Credit(ctx, "user-1", -3, models.ReasonSystemAdjustment, "system", ""))

	assert.Len(t, store.ledger, before)
}

func TestBalanceEqualsLedgerSum(t *testing.T) {
	svc, store := newCreditFixture(t, 20)
	ctx := context.Background()

	require.NoError(t, svc.Debit(ctx, "user-1", 1, models.ReasonGeneration, "generation_job", "job-1"))
	require.NoError(t, svc.Credit(ctx, "user-1", 1, models.ReasonGenerationRefund, "generation_job", "job-1"))
	require.NoError(t, svc.Debit(ctx, "user-1", 2, models.ReasonGeneration, "generation_job", "job-2"))
	require.NoError(t, svc.Credit(ctx, "user-1", 300, models.ReasonPlanActivationRefill, "subscription", "1"))

	w, err := svc.EnsureWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, store.ledgerSum(), w.Balance)
}
