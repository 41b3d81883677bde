package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/colorfulme/api/internal/models"
	"github.com/colorfulme/api/internal/postprocess"
	"github.com/colorfulme/api/internal/render"
)

// creditCost is the fixed credit price per generation mode.
var creditCost = map[models.GenerationMode]int{
	models.ModeText:    1,
	models.ModePhoto:   2,
	models.ModeRecolor: 1,
}

const maxPromptLen = 400

const jobReferenceType = "generation_job"

// ValidationError marks a caller mistake rejected before any job record
// exists. No credits are touched and no audit artifact is written.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Renderer is the render backend adapter boundary.
type Renderer interface {
	Generate(ctx context.Context, req render.Request, plan render.Plan) (*render.Result, error)
}

// Moderator gates prompts before any paid work.
type Moderator interface {
	CheckPrompt(ctx context.Context, prompt string) (bool, string)
}

// CreditLedger is the slice of the credit service the orchestrator needs.
type CreditLedger interface {
	Debit(ctx context.Context, userID string, amount int, reason models.LedgerReason, refType, refID string) error
	Credit(ctx context.Context, userID string, amount int, reason models.LedgerReason, refType, refID string) error
}

// JobStore persists jobs and their assets.
type JobStore interface {
	Create(ctx context.Context, job *models.GenerationJob) error
	UpdateStatus(ctx context.Context, job *models.GenerationJob) error
	CreateAsset(ctx context.Context, asset *models.GeneratedAsset) error
}

// ArtifactStore durably persists bytes behind a retrievable locator.
type ArtifactStore interface {
	SaveBytes(ctx context.Context, payload []byte, extension, folder string) (key, url string, err error)
}

type GenerationService struct {
	log        *slog.Logger
	credits    CreditLedger
	moderation Moderator
	plans      PlanResolver
	resolver   *render.Resolver
	renderer   Renderer
	store      ArtifactStore
	jobs       JobStore
	now        func() time.Time
}

func NewGenerationService(log *slog.Logger, credits CreditLedger, moderation Moderator, plans PlanResolver, resolver *render.Resolver, renderer Renderer, store ArtifactStore, jobs JobStore) *GenerationService {
	return &GenerationService{
		log:        log,
		credits:    credits,
		moderation: moderation,
		plans:      plans,
		resolver:   resolver,
		renderer:   renderer,
		store:      store,
		jobs:       jobs,
		now:        time.Now,
	}
}

type GenerateRequest struct {
	Mode           models.GenerationMode
	Prompt         string
	Style          string
	AspectRatio    string
	Difficulty     string
	QualityProfile render.Profile
	SourceImage    render.SourceImage
}

type GenerateResult struct {
	Job          *models.GenerationJob
	Asset        *models.GeneratedAsset
	CreditsUsed  int
	Plan         render.Plan
	ModelUsed    string
	QualityUsed  string
	UsedFallback bool
}

// CreateAndProcess runs the whole job lifecycle synchronously:
// validate, moderate, reserve credits, render with fallback, post-process,
// persist artifacts. Credits are debited before the external call starts and
// refunded whenever a debited job fails.
func (s *GenerationService) CreateAndProcess(ctx context.Context, userID string, req GenerateRequest) (*GenerateResult, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	job := &models.GenerationJob{
		ID:          uuid.NewString(),
		UserID:      userID,
		Mode:        req.Mode,
		Prompt:      req.Prompt,
		Style:       req.Style,
		AspectRatio: req.AspectRatio,
		Difficulty:  req.Difficulty,
		Status:      models.StatusQueued,
		CostCredits: creditCost[req.Mode],
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	moderationInput := req.Prompt
	if moderationInput == "" {
		moderationInput = "family-safe coloring page"
	}
	allowed, reason := s.moderation.CheckPrompt(ctx, moderationInput)
	if !allowed {
		s.finishJob(ctx, job, models.StatusBlocked, reason)
		return &GenerateResult{Job: job}, nil
	}

	if err := s.credits.Debit(ctx, userID, job.CostCredits, models.ReasonGeneration, jobReferenceType, job.ID); err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			s.finishJob(ctx, job, models.StatusFailed, err.Error())
			return &GenerateResult{Job: job}, nil
		}
		return nil, err
	}

	// Reservation point: credits are held from here on, so every failure
	// below must refund before the job goes terminal.
	job.Status = models.StatusProcessing
	if err := s.jobs.UpdateStatus(ctx, job); err != nil {
		return s.failWithRefund(ctx, job, err)
	}

	plan, err := s.plans.ActivePlan(ctx, userID)
	if err != nil {
		return s.failWithRefund(ctx, job, err)
	}
	renderPlan := s.resolver.Resolve(req.QualityProfile, plan.Code, req.Difficulty)

	renderReq := render.Request{
		Prompt:      req.Prompt,
		Mode:        req.Mode,
		Style:       req.Style,
		AspectRatio: req.AspectRatio,
		SourceImage: req.SourceImage,
	}
	result, err := s.renderer.Generate(ctx, renderReq, renderPlan)
	if err != nil {
		return s.failWithRefund(ctx, job, err)
	}

	cleanPNG, err := postprocess.NormalizeLineArt(result.PNG)
	if err != nil {
		return s.failWithRefund(ctx, job, err)
	}
	pdfBytes, err := postprocess.PNGToPDF(cleanPNG)
	if err != nil {
		return s.failWithRefund(ctx, job, err)
	}

	folder := userID + "/" + job.ID
	pngKey, pngURL, err := s.store.SaveBytes(ctx, cleanPNG, "png", folder)
	if err != nil {
		return s.failWithRefund(ctx, job, err)
	}
	pdfKey, pdfURL, err := s.store.SaveBytes(ctx, pdfBytes, "pdf", folder)
	if err != nil {
		// The PNG write succeeded, but without both formats no asset record
		// may exist: artifact materialization is all-or-nothing.
		return s.failWithRefund(ctx, job, err)
	}

	width, height, err := postprocess.Dimensions(cleanPNG)
	if err != nil {
		return s.failWithRefund(ctx, job, err)
	}

	asset := &models.GeneratedAsset{
		ID:     uuid.NewString(),
		UserID: userID,
		JobID:  job.ID,
		PNGKey: pngKey,
		PDFKey: pdfKey,
		PNGURL: pngURL,
		PDFURL: pdfURL,
		Width:  width,
		Height: height,
	}
	if err := s.jobs.CreateAsset(ctx, asset); err != nil {
		return s.failWithRefund(ctx, job, err)
	}

	s.finishJob(ctx, job, models.StatusCompleted, "")
	s.log.Info("generation completed",
		"job_id", job.ID,
		"user_id", userID,
		"mode", job.Mode,
		"model", result.Model,
		"used_fallback", result.UsedFallback,
	)

	return &GenerateResult{
		Job:          job,
		Asset:        asset,
		CreditsUsed:  job.CostCredits,
		Plan:         renderPlan,
		ModelUsed:    result.Model,
		QualityUsed:  result.Quality,
		UsedFallback: result.UsedFallback,
	}, nil
}

// failWithRefund refunds the job's debited credits, marks it failed and
// records the error. The refund is unconditional: a failed job must never
// leave the wallet worse off than before the request.
func (s *GenerationService) failWithRefund(ctx context.Context, job *models.GenerationJob, cause error) (*GenerateResult, error) {
	s.log.Error("generation failed", "job_id", job.ID, "err", cause)
	if err := s.credits.Credit(ctx, job.UserID, job.CostCredits, models.ReasonGenerationRefund, jobReferenceType, job.ID); err != nil {
		s.log.Error("refund failed", "job_id", job.ID, "err", err)
	}
	s.finishJob(ctx, job, models.StatusFailed, cause.Error())
	return &GenerateResult{Job: job}, nil
}

func (s *GenerationService) finishJob(ctx context.Context, job *models.GenerationJob, status models.JobStatus, errorMessage string) {
	now := s.now()
	job.Status = status
	job.ErrorMessage = errorMessage
	job.CompletedAt = &now
	if err := s.jobs.UpdateStatus(ctx, job); err != nil {
		s.log.Error("persist job status", "job_id", job.ID, "status", status, "err", err)
	}
}

func normalizeRequest(req GenerateRequest) (GenerateRequest, error) {
	mode := models.GenerationMode(strings.ToLower(strings.TrimSpace(string(req.Mode))))
	if mode == "" {
		mode = models.ModeText
	}
	if _, ok := creditCost[mode]; !ok {
		return req, validationErrorf("invalid generation mode: %s", mode)
	}
	req.Mode = mode

	req.Prompt = strings.TrimSpace(req.Prompt)
	if utf8.RuneCountInString(req.Prompt) > maxPromptLen {
		return req, validationErrorf("prompt exceeds %d characters", maxPromptLen)
	}
	if (mode == models.ModeText || mode == models.ModeRecolor) && req.Prompt == "" {
		return req, validationErrorf("prompt is required for %s mode", mode)
	}
	if mode == models.ModePhoto && !req.SourceImage.Present() {
		return req, validationErrorf("source image is required for photo mode")
	}

	req.Style = truncate(strings.TrimSpace(req.Style), 80)
	req.AspectRatio = truncate(strings.TrimSpace(req.AspectRatio), 20)
	if req.AspectRatio == "" {
		req.AspectRatio = "1:1"
	}
	req.Difficulty = truncate(strings.TrimSpace(req.Difficulty), 40)

	return req, nil
}

// truncate limits a string to a number of characters, never splitting a rune.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
