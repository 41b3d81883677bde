package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/colorfulme/api/internal/repository"
	"github.com/colorfulme/api/internal/service"
	"github.com/colorfulme/api/internal/storage"
)

type Server struct {
	addr          string
	log           *slog.Logger
	credits       *service.CreditService
	plans         *service.PlanService
	billing       *service.BillingService
	generator     *service.GenerationService
	keyIssuer     *service.APIKeyService
	jobs          *repository.JobRepository
	apiKeys       *repository.APIKeyRepository
	store         *storage.Store
	billingSecret string
	router        *chi.Mux
}

func NewServer(
	addr string,
	log *slog.Logger,
	credits *service.CreditService,
	plans *service.PlanService,
	billing *service.BillingService,
	generator *service.GenerationService,
	keyIssuer *service.APIKeyService,
	jobs *repository.JobRepository,
	apiKeys *repository.APIKeyRepository,
	store *storage.Store,
	billingSecret string,
) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:          addr,
		log:           log,
		credits:       credits,
		plans:         plans,
		billing:       billing,
		generator:     generator,
		keyIssuer:     keyIssuer,
		jobs:          jobs,
		apiKeys:       apiKeys,
		store:         store,
		billingSecret: billingSecret,
		router:        r,
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/local-assets/*", s.handleLocalAsset)
	r.Post("/api/v1/billing/events", s.handleBillingEvent)

	r.Group(func(authed chi.Router) {
		authed.Use(s.apiKeyAuth)
		authed.Post("/api/v1/generations/text", s.handleGeneration("text"))
		authed.Post("/api/v1/generations/photo", s.handleGeneration("photo"))
		authed.Post("/api/v1/generations/recolor", s.handleGeneration("recolor"))
		authed.Get("/api/v1/jobs/{jobID}", s.handleGetJob)
		authed.Get("/api/v1/assets/{assetID}/download", s.handleDownloadAsset)
		authed.Get("/api/v1/credits", s.handleGetCredits)
		authed.Post("/api/v1/keys", s.handleCreateKey)
		authed.Get("/api/v1/keys", s.handleListKeys)
		authed.Delete("/api/v1/keys/{keyID}", s.handleRevokeKey)
	})

	return s
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Generation runs in-request and can take minutes against a slow
		// provider chain, so the write timeout must cover the full pipeline.
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("server shutdown error", "err", err)
		}
	}()

	s.log.Info("api server listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLocalAsset serves artifacts when the store runs on local disk.
func (s *Server) handleLocalAsset(w http.ResponseWriter, r *http.Request) {
	if s.store.UsesS3() {
		http.NotFound(w, r)
		return
	}
	key := chi.URLParam(r, "*")
	if key == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.store.LocalPath(key))
}
