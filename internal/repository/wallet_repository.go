package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/colorfulme/api/internal/models"
)

// ErrWalletExists is returned by CreateWithGrant when another request created
// the wallet first. Callers should re-read the wallet and continue.
var ErrWalletExists = errors.New("wallet already exists")

// ErrConditionNotMet is returned when a conditional balance update matched no
// rows (insufficient balance on debit, refill already applied).
var ErrConditionNotMet = errors.New("conditional update matched no rows")

type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) FindByUser(ctx context.Context, userID string) (*models.Wallet, error) {
	const query = `
SELECT id, user_id, balance, cycle_reset_at, lifetime_granted, lifetime_used, updated_at
FROM credit_wallets WHERE user_id = ?`
	row := r.db.QueryRowContext(ctx, query, userID)
	var w models.Wallet
	if err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.CycleResetAt, &w.LifetimeGranted, &w.LifetimeUsed, &w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return &w, nil
}

// CreateWithGrant inserts the wallet together with its initial_grant ledger
// entry in one transaction. The unique user_id constraint serializes
// concurrent creation; the loser gets ErrWalletExists.
func (r *WalletRepository) CreateWithGrant(ctx context.Context, userID string, grant int, cycleResetAt time.Time, planCode string) (*models.Wallet, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const insertWallet = `
INSERT INTO credit_wallets (user_id, balance, cycle_reset_at, lifetime_granted, lifetime_used)
VALUES (?, ?, ?, ?, 0)`
	res, err := tx.ExecContext(ctx, insertWallet, userID, grant, cycleResetAt, grant)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil, ErrWalletExists
		}
		return nil, fmt.Errorf("insert wallet: %w", err)
	}
	walletID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if grant > 0 {
		if err := insertLedgerEntry(ctx, tx, userID, walletID, grant, models.ReasonInitialGrant, "plan", planCode); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit wallet create: %w", err)
	}
	return &models.Wallet{
		ID:              walletID,
		UserID:          userID,
		Balance:         grant,
		CycleResetAt:    cycleResetAt,
		LifetimeGranted: grant,
	}, nil
}

// ApplyRefill adds the monthly allowance and advances the cycle, guarded by
// cycle_reset_at <= now so that two concurrent reads perform it only once.
func (r *WalletRepository) ApplyRefill(ctx context.Context, userID string, amount int, now, nextResetAt time.Time, planCode string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const update = `
UPDATE credit_wallets
SET balance = balance + ?, lifetime_granted = lifetime_granted + ?, cycle_reset_at = ?
WHERE user_id = ? AND cycle_reset_at <= ?`
	res, err := tx.ExecContext(ctx, update, amount, amount, nextResetAt, userID, now)
	if err != nil {
		return fmt.Errorf("apply refill: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("refill rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConditionNotMet
	}

	walletID, err := walletIDForUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	if err := insertLedgerEntry(ctx, tx, userID, walletID, amount, models.ReasonMonthlyRefill, "plan", planCode); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit refill: %w", err)
	}
	return nil
}

// Debit decrements the balance only when it covers the amount, and writes the
// matching negative ledger entry in the same transaction.
func (r *WalletRepository) Debit(ctx context.Context, userID string, amount int, reason models.LedgerReason, refType, refID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const update = `
UPDATE credit_wallets
SET balance = balance - ?, lifetime_used = lifetime_used + ?
WHERE user_id = ? AND balance >= ?`
	res, err := tx.ExecContext(ctx, update, amount, amount, userID, amount)
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConditionNotMet
	}

	walletID, err := walletIDForUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	if err := insertLedgerEntry(ctx, tx, userID, walletID, -amount, reason, refType, refID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit debit: %w", err)
	}
	return nil
}

// Credit unconditionally increases the balance with its ledger entry.
func (r *WalletRepository) Credit(ctx context.Context, userID string, amount int, reason models.LedgerReason, refType, refID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const update = `
UPDATE credit_wallets
SET balance = balance + ?, lifetime_granted = lifetime_granted + ?
WHERE user_id = ?`
	res, err := tx.ExecContext(ctx, update, amount, amount, userID)
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credit rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConditionNotMet
	}

	walletID, err := walletIDForUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	if err := insertLedgerEntry(ctx, tx, userID, walletID, amount, reason, refType, refID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credit: %w", err)
	}
	return nil
}

// LedgerSum returns the sum of all ledger amounts for a user. Used for
// balance reconciliation.
func (r *WalletRepository) LedgerSum(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM credit_ledger WHERE user_id = ?`
	var sum int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return sum, nil
}

func (r *WalletRepository) ListLedgerByReference(ctx context.Context, refType, refID string) ([]models.LedgerEntry, error) {
	const query = `
SELECT id, user_id, wallet_id, amount, reason, COALESCE(reference_type, ''), COALESCE(reference_id, ''), created_at
FROM credit_ledger WHERE reference_type = ? AND reference_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, refType, refID)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.WalletID, &e.Amount, &e.Reason, &e.ReferenceType, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func walletIDForUser(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	const query = `SELECT id FROM credit_wallets WHERE user_id = ?`
	var id int64
	if err := tx.QueryRowContext(ctx, query, userID).Scan(&id); err != nil {
		return 0, fmt.Errorf("wallet id for user: %w", err)
	}
	return id, nil
}

func insertLedgerEntry(ctx context.Context, tx *sql.Tx, userID string, walletID int64, amount int, reason models.LedgerReason, refType, refID string) error {
	const query = `
INSERT INTO credit_ledger (user_id, wallet_id, amount, reason, reference_type, reference_id)
VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))`
	if _, err := tx.ExecContext(ctx, query, userID, walletID, amount, reason, refType, refID); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}
