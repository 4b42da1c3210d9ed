package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "advisor-marketplace-backend/internal/api/http"
	"advisor-marketplace-backend/internal/config"
	"advisor-marketplace-backend/internal/jobs"
	"advisor-marketplace-backend/internal/logger"
	"advisor-marketplace-backend/internal/repository/postgres"
	"advisor-marketplace-backend/internal/security"
	"advisor-marketplace-backend/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	migrate := flag.Bool("migrate", false, "Apply database migrations before serving")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Advisor Marketplace Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Email configuration", "provider", cfg.Email.Provider, "from", cfg.Email.From)

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	if *migrate {
		if err := postgres.Migrate(db); err != nil {
			logger.Error("Failed to apply migrations", "error", err)
			log.Fatalf("Failed to apply migrations: %v", err)
		}
		logger.Info("Database migrations applied")
	}

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Email
	var sender service.EmailSender
	switch cfg.Email.Provider {
	case "sendgrid":
		sender = service.NewSendGridSender(cfg.Email.SendGridAPIKey, cfg.Email.From, cfg.Email.FromName)
	default:
		sender = service.NewResendSender(cfg.Email.ResendBaseURL, cfg.Email.ResendAPIKey, cfg.Email.From)
	}
	templates, err := service.LoadTemplates()
	if err != nil {
		logger.Error("Failed to load email templates", "error", err)
		log.Fatalf("Failed to load email templates: %v", err)
	}

	// Initialize Services
	notificationSvc := service.NewNotificationService(
		store.Invites,
		store.Negotiations,
		store.Proposals,
		store.Activity,
		store.Directory,
		sender,
		templates,
		cfg.Email.AppBaseURL,
	)
	inviteSvc := service.NewInviteService(store.Invites, store.Activity, store.Directory, notificationSvc)
	negotiationSvc := service.NewNegotiationService(
		store.Negotiations,
		store.Proposals,
		store.Activity,
		store.Directory,
		notificationSvc,
	)

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store, &jobs.Services{
		Notifications: notificationSvc,
		Negotiations:  negotiationSvc,
	}, cfg)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.Supabase.JWTSecret)
	cronGate := security.NewCronGate(cfg.Cron.SecretCurrent, cfg.Cron.SecretPrevious, cfg.CronMaxDrift())

	router := httpapi.NewRouter(&httpapi.RouterDeps{
		Invites:      inviteSvc,
		Negotiations: negotiationSvc,
		Jobs:         jobRunner.Jobs(),
		CronGate:     cronGate,
		Tokens:       tokenManager,
		Health:       store.Ping,
	})

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	logger.Info("Server stopped. Goodbye!")
}
