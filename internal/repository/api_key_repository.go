package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/colorfulme/api/internal/models"
)

type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) FindActiveByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	const query = `
SELECT id, user_id, name, key_prefix, key_hash, is_active, last_used_at, created_at, revoked_at
FROM api_keys WHERE key_hash = ? AND is_active = 1 AND revoked_at IS NULL`
	row := r.db.QueryRowContext(ctx, query, keyHash)
	var k models.APIKey
	if err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.KeyHash, &k.IsActive, &k.LastUsedAt, &k.CreatedAt, &k.RevokedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	return &k, nil
}

func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	const query = `
INSERT INTO api_keys (user_id, name, key_prefix, key_hash, is_active)
VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, key.UserID, key.Name, key.KeyPrefix, key.KeyHash, key.IsActive)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("api key insert id: %w", err)
	}
	key.ID = id
	return nil
}

func (r *APIKeyRepository) ListByUser(ctx context.Context, userID string) ([]models.APIKey, error) {
	const query = `
SELECT id, user_id, name, key_prefix, key_hash, is_active, last_used_at, created_at, revoked_at
FROM api_keys WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.KeyHash, &k.IsActive, &k.LastUsedAt, &k.CreatedAt, &k.RevokedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke disables a key owned by the user. Reports false when no active key
// matched, so callers can distinguish a miss from a revocation.
func (r *APIKeyRepository) Revoke(ctx context.Context, keyID int64, userID string) (bool, error) {
	const query = `
UPDATE api_keys SET is_active = 0, revoked_at = NOW()
WHERE id = ? AND user_id = ? AND revoked_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, keyID, userID)
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	return affected > 0, nil
}

// CountUsageSince counts requests recorded for a key from the window start on.
func (r *APIKeyRepository) CountUsageSince(ctx context.Context, keyID int64, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM api_usage_events WHERE api_key_id = ? AND created_at >= ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, keyID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count usage events: %w", err)
	}
	return count, nil
}

func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, keyID int64) error {
	const query = `UPDATE api_keys SET last_used_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, keyID); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

func (r *APIKeyRepository) RecordUsage(ctx context.Context, event *models.APIUsageEvent) error {
	const query = `
INSERT INTO api_usage_events (api_key_id, user_id, endpoint, method, status_code, credits_used)
VALUES (?, NULLIF(?, ''), ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, event.APIKeyID, event.UserID, event.Endpoint, event.Method, event.StatusCode, event.CreditsUsed); err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}
