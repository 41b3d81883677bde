package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/colorfulme/api/internal/api"
	"github.com/colorfulme/api/internal/config"
	"github.com/colorfulme/api/internal/database"
	"github.com/colorfulme/api/internal/render"
	"github.com/colorfulme/api/internal/repository"
	"github.com/colorfulme/api/internal/service"
	"github.com/colorfulme/api/internal/storage"
	"github.com/colorfulme/api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	walletRepo := repository.NewWalletRepository(db)
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewPlanRepository(db)
	jobRepo := repository.NewJobRepository(db)
	apiKeyRepo := repository.NewAPIKeyRepository(db)

	planService := service.NewPlanService(planRepo)
	if err := planService.SeedDefaultPlans(ctx); err != nil {
		log.Fatalf("seed default plans: %v", err)
	}

	creditService := service.NewCreditService(logr, walletRepo, planService)
	billingService := service.NewBillingService(logr, planService, planRepo, userRepo, creditService)
	apiKeyService := service.NewAPIKeyService(logr, apiKeyRepo)

	moderation := service.NewModerationService(logr, cfg.StrictModeration, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ModerationTimeout)

	renderClient := render.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.RequestTimeout, logr)
	adapter := render.NewAdapter(logr, renderClient, cfg.OpenAIFallbackModel, cfg.AllowOfflineFallback)
	resolver := render.NewResolver(cfg.OpenAIModel, cfg.OpenAIFallbackModel)

	store, err := storage.NewStore(storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		UsePathStyle:  cfg.S3UsePathStyle,
		Prefix:        cfg.S3Prefix,
		LocalDir:      cfg.LocalStorageDir,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	if err != nil {
		log.Fatalf("artifact store: %v", err)
	}

	generator := service.NewGenerationService(logr, creditService, moderation, planService, resolver, adapter, store, jobRepo)

	server := api.NewServer(cfg.ListenAddr, logr, creditService, planService, billingService, generator, apiKeyService, jobRepo, apiKeyRepo, store, cfg.BillingWebhookSecret)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("server stopped", "err", err)
	}
}
