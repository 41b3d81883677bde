package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/colorfulme/api/internal/models"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *models.GenerationJob) error {
	const query = `
INSERT INTO generation_jobs (id, user_id, mode, prompt, style, aspect_ratio, difficulty, status, cost_credits)
VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, NULLIF(?, ''), ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, job.ID, job.UserID, job.Mode, job.Prompt, job.Style, job.AspectRatio, job.Difficulty, job.Status, job.CostCredits); err != nil {
		return fmt.Errorf("insert generation job: %w", err)
	}
	return nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, job *models.GenerationJob) error {
	const query = `
UPDATE generation_jobs
SET status = ?, error_message = NULLIF(?, ''), completed_at = ?, updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, job.Status, job.ErrorMessage, job.CompletedAt, job.ID); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, jobID, userID string) (*models.GenerationJob, error) {
	const query = `
SELECT id, user_id, mode, COALESCE(prompt, ''), COALESCE(style, ''), COALESCE(aspect_ratio, ''), COALESCE(difficulty, ''),
       status, cost_credits, COALESCE(error_message, ''), completed_at, created_at, updated_at
FROM generation_jobs WHERE id = ? AND user_id = ?`
	row := r.db.QueryRowContext(ctx, query, jobID, userID)
	var j models.GenerationJob
	if err := row.Scan(&j.ID, &j.UserID, &j.Mode, &j.Prompt, &j.Style, &j.AspectRatio, &j.Difficulty, &j.Status, &j.CostCredits, &j.ErrorMessage, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

func (r *JobRepository) CreateAsset(ctx context.Context, asset *models.GeneratedAsset) error {
	const query = `
INSERT INTO generated_assets (id, user_id, job_id, png_key, pdf_key, png_url, pdf_url, width, height)
VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, asset.ID, asset.UserID, asset.JobID, asset.PNGKey, asset.PDFKey, asset.PNGURL, asset.PDFURL, asset.Width, asset.Height); err != nil {
		return fmt.Errorf("insert generated asset: %w", err)
	}
	return nil
}

func (r *JobRepository) FindAssetByID(ctx context.Context, assetID, userID string) (*models.GeneratedAsset, error) {
	const query = `
SELECT id, user_id, job_id, png_key, pdf_key, COALESCE(png_url, ''), COALESCE(pdf_url, ''), COALESCE(width, 0), COALESCE(height, 0), created_at
FROM generated_assets WHERE id = ? AND user_id = ?`
	return r.scanAsset(r.db.QueryRowContext(ctx, query, assetID, userID))
}

func (r *JobRepository) FindAssetByJob(ctx context.Context, jobID string) (*models.GeneratedAsset, error) {
	const query = `
SELECT id, user_id, job_id, png_key, pdf_key, COALESCE(png_url, ''), COALESCE(pdf_url, ''), COALESCE(width, 0), COALESCE(height, 0), created_at
FROM generated_assets WHERE job_id = ? ORDER BY created_at DESC LIMIT 1`
	return r.scanAsset(r.db.QueryRowContext(ctx, query, jobID))
}

func (r *JobRepository) scanAsset(row *sql.Row) (*models.GeneratedAsset, error) {
	var a models.GeneratedAsset
	if err := row.Scan(&a.ID, &a.UserID, &a.JobID, &a.PNGKey, &a.PDFKey, &a.PNGURL, &a.PDFURL, &a.Width, &a.Height, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	return &a, nil
}
