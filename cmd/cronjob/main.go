package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"advisor-marketplace-backend/internal/config"
	"advisor-marketplace-backend/internal/jobs"
	"advisor-marketplace-backend/internal/logger"
	"advisor-marketplace-backend/internal/scheduler"
)

var knownJobs = []string{
	jobs.JobExpireInvites,
	jobs.JobRFPReminders,
	jobs.JobExpireNegotiations,
	jobs.JobRetryFailedEmails,
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Fire a specific job once and exit (e.g., 'expire-invites', 'rfp-reminders')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Cronjob Runner...", "log_level", cfg.Log.Level, "trigger_base_url", cfg.Trigger.BaseURL)

	if cfg.Trigger.BaseURL == "" {
		log.Fatalf("trigger.base_url or SUPABASE_URL is required")
	}

	timeout := time.Duration(cfg.Trigger.TimeoutSeconds) * time.Second
	trigger := scheduler.NewTrigger(cfg.Trigger.BaseURL, cfg.Cron.SecretCurrent, cfg.Supabase.ServiceRoleKey, timeout)

	cronScheduler, err := scheduler.NewScheduler(trigger, cfg)
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	// Check if running a single job
	if *runOnce != "" {
		runJobOnce(cronScheduler, *runOnce, timeout)
		return
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce fires a specific job once and exits
func runJobOnce(s *scheduler.Scheduler, jobName string, timeout time.Duration) {
	if !slices.Contains(knownJobs, jobName) {
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		for _, name := range knownJobs {
			fmt.Printf("  - %s\n", name)
		}
		os.Exit(1)
	}

	logger.Info("Running job once", "job", jobName)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	summary, err := s.RunOnce(ctx, jobName)
	if err != nil {
		logger.Error("Job failed", "job", jobName, "error", err)
		cancel()
		os.Exit(1)
	}
	fmt.Println(string(summary))
	logger.Info("Job execution completed", "job", jobName)
}
