package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/colorfulme/api/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `
SELECT id, email, COALESCE(display_name, ''), locale, last_login_at, created_at, updated_at
FROM users WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Locale, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `
SELECT id, email, COALESCE(display_name, ''), locale, last_login_at, created_at, updated_at
FROM users WHERE email = ?`
	row := r.db.QueryRowContext(ctx, query, email)
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Locale, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	const query = `
INSERT INTO users (id, email, display_name, locale)
VALUES (?, ?, NULLIF(?, ''), ?)`
	locale := user.Locale
	if locale == "" {
		locale = "en-US"
	}
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.DisplayName, locale); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}
