package api

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/colorfulme/api/internal/models"
	"github.com/colorfulme/api/internal/render"
	"github.com/colorfulme/api/internal/service"
)

type generationRequest struct {
	Prompt            string `json:"prompt"`
	Style             string `json:"style"`
	AspectRatio       string `json:"aspect_ratio"`
	Difficulty        string `json:"difficulty"`
	QualityProfile    string `json:"quality_profile"`
	SourceImageBase64 string `json:"source_image_base64"`
}

type jobResponse struct {
	JobID        string         `json:"job_id"`
	Status       string         `json:"status"`
	Mode         string         `json:"mode"`
	Prompt       string         `json:"prompt,omitempty"`
	Style        string         `json:"style,omitempty"`
	AspectRatio  string         `json:"aspect_ratio,omitempty"`
	Difficulty   string         `json:"difficulty,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Asset        *assetResponse `json:"asset,omitempty"`
}

type assetResponse struct {
	AssetID string `json:"asset_id"`
	PNGURL  string `json:"png_url"`
	PDFURL  string `json:"pdf_url"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

type renderInfo struct {
	Profile string `json:"profile"`
	Model   string `json:"model"`
	Quality string `json:"quality"`
}

func (s *Server) handleGeneration(mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := apiKeyFrom(r.Context())

		var req generationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		sourceImage, err := decodeSourceImage(req.SourceImageBase64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid source image encoding")
			return
		}

		result, err := s.generator.CreateAndProcess(r.Context(), key.UserID, service.GenerateRequest{
			Mode:           models.GenerationMode(mode),
			Prompt:         req.Prompt,
			Style:          req.Style,
			AspectRatio:    req.AspectRatio,
			Difficulty:     req.Difficulty,
			QualityProfile: render.ParseProfile(req.QualityProfile),
			SourceImage:    sourceImage,
		})
		if err != nil {
			var vErr *service.ValidationError
			if errors.As(err, &vErr) {
				s.recordUsage(r, http.StatusBadRequest, 0)
				writeError(w, http.StatusBadRequest, vErr.Error())
				return
			}
			s.log.Error("generation request failed", "err", err)
			s.recordUsage(r, http.StatusInternalServerError, 0)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		status := http.StatusOK
		if result.Job.Status == models.StatusFailed || result.Job.Status == models.StatusBlocked {
			status = http.StatusUnprocessableEntity
		}
		s.recordUsage(r, status, result.CreditsUsed)

		writeJSON(w, status, map[string]any{
			"job_id":       result.Job.ID,
			"status":       result.Job.Status,
			"credits_used": result.CreditsUsed,
			"render": renderInfo{
				Profile: string(result.Plan.Profile),
				Model:   result.ModelUsed,
				Quality: result.QualityUsed,
			},
			"job": serializeJob(result.Job, result.Asset),
		})
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	key := apiKeyFrom(r.Context())

	job, err := s.jobs.FindByID(r.Context(), chi.URLParam(r, "jobID"), key.UserID)
	if err != nil {
		s.log.Error("find job", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if job == nil {
		s.recordUsage(r, http.StatusNotFound, 0)
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	asset, err := s.jobs.FindAssetByJob(r.Context(), job.ID)
	if err != nil {
		s.log.Error("find job asset", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.recordUsage(r, http.StatusOK, 0)
	writeJSON(w, http.StatusOK, map[string]any{"job": serializeJob(job, asset)})
}

func (s *Server) handleDownloadAsset(w http.ResponseWriter, r *http.Request) {
	key := apiKeyFrom(r.Context())

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "png"
	}
	if format != "png" && format != "pdf" {
		writeError(w, http.StatusBadRequest, "invalid format, use png or pdf")
		return
	}

	asset, err := s.jobs.FindAssetByID(r.Context(), chi.URLParam(r, "assetID"), key.UserID)
	if err != nil {
		s.log.Error("find asset", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if asset == nil {
		s.recordUsage(r, http.StatusNotFound, 0)
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}

	storageKey := asset.PNGKey
	if format == "pdf" {
		storageKey = asset.PDFKey
	}
	url, err := s.store.DownloadURL(r.Context(), storageKey)
	if err != nil {
		s.log.Error("download url", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.recordUsage(r, http.StatusFound, 0)
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleGetCredits(w http.ResponseWriter, r *http.Request) {
	key := apiKeyFrom(r.Context())

	balance, err := s.credits.AvailableCredits(r.Context(), key.UserID)
	if err != nil {
		s.log.Error("available credits", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	plan, err := s.plans.ActivePlan(r.Context(), key.UserID)
	if err != nil {
		s.log.Error("active plan", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.recordUsage(r, http.StatusOK, 0)
	writeJSON(w, http.StatusOK, map[string]any{
		"balance": balance,
		"plan": map[string]any{
			"code":            plan.Code,
			"name":            plan.Name,
			"monthly_credits": plan.MonthlyCredits,
		},
	})
}

type billingEventRequest struct {
	Type                   string `json:"type"`
	UserID                 string `json:"user_id"`
	Email                  string `json:"email"`
	PlanCode               string `json:"plan_code"`
	Status                 string `json:"status"`
	ProviderCustomerID     string `json:"provider_customer_id"`
	ProviderSubscriptionID string `json:"provider_subscription_id"`
	InvoiceID              string `json:"invoice_id"`
	CurrentPeriodEnd       string `json:"current_period_end"`
}

// handleBillingEvent is the billing event sink: external billing calls it to
// credit wallets. The core never initiates billing.
func (s *Server) handleBillingEvent(w http.ResponseWriter, r *http.Request) {
	if subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Billing-Secret")), []byte(s.billingSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid billing secret")
		return
	}

	var req billingEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" || req.PlanCode == "" {
		writeError(w, http.StatusBadRequest, "user_id and plan_code are required")
		return
	}

	var periodEnd *time.Time
	if req.CurrentPeriodEnd != "" {
		t, err := time.Parse(time.RFC3339, req.CurrentPeriodEnd)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid current_period_end")
			return
		}
		periodEnd = &t
	}

	switch req.Type {
	case "subscription_activated":
		sub, err := s.billing.ApplyPlanSubscription(r.Context(), req.UserID, req.PlanCode, req.Email, req.ProviderCustomerID, req.ProviderSubscriptionID, req.Status, periodEnd)
		if err != nil {
			s.log.Error("apply plan subscription", "err", err)
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		resp := map[string]any{"subscription_id": sub.ID, "status": sub.Status}
		// Accounts provisioned through billing get their first key here, the
		// only unauthenticated path into the account.
		if req.Email != "" {
			if key, token, err := s.keyIssuer.IssueInitial(r.Context(), req.UserID); err != nil {
				s.log.Warn("issue initial api key", "user_id", req.UserID, "err", err)
			} else if token != "" {
				resp["api_key"] = token
				resp["key_prefix"] = key.KeyPrefix
			}
		}
		writeJSON(w, http.StatusOK, resp)
	case "invoice_paid":
		if err := s.billing.InvoicePaid(r.Context(), req.UserID, req.PlanCode, req.InvoiceID); err != nil {
			s.log.Error("invoice paid", "err", err)
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "credited"})
	default:
		writeError(w, http.StatusBadRequest, "unknown event type")
	}
}

func (s *Server) recordUsage(r *http.Request, statusCode, creditsUsed int) {
	key := apiKeyFrom(r.Context())
	event := &models.APIUsageEvent{
		Endpoint:    r.URL.Path,
		Method:      r.Method,
		StatusCode:  statusCode,
		CreditsUsed: creditsUsed,
	}
	if key != nil {
		event.APIKeyID = &key.ID
		event.UserID = key.UserID
	}
	if err := s.apiKeys.RecordUsage(r.Context(), event); err != nil {
		s.log.Warn("record usage event", "err", err)
	}
}

func serializeJob(job *models.GenerationJob, asset *models.GeneratedAsset) jobResponse {
	resp := jobResponse{
		JobID:        job.ID,
		Status:       string(job.Status),
		Mode:         string(job.Mode),
		Prompt:       job.Prompt,
		Style:        job.Style,
		AspectRatio:  job.AspectRatio,
		Difficulty:   job.Difficulty,
		ErrorMessage: job.ErrorMessage,
		CompletedAt:  job.CompletedAt,
	}
	if !job.CreatedAt.IsZero() {
		created := job.CreatedAt
		resp.CreatedAt = &created
	}
	if asset != nil {
		resp.Asset = &assetResponse{
			AssetID: asset.ID,
			PNGURL:  asset.PNGURL,
			PDFURL:  asset.PDFURL,
			Width:   asset.Width,
			Height:  asset.Height,
		}
	}
	return resp
}

// decodeSourceImage accepts raw base64 or a data URL.
func decodeSourceImage(encoded string) (render.SourceImage, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return render.SourceImage{}, nil
	}
	if strings.HasPrefix(encoded, "data:") {
		if idx := strings.Index(encoded, ","); idx >= 0 {
			encoded = encoded[idx+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return render.SourceImage{}, err
	}
	return render.NewSourceImage(data), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
