package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"advisor-marketplace-backend/internal/config"
	"advisor-marketplace-backend/internal/jobs"
	"advisor-marketplace-backend/internal/logger"

	"github.com/robfig/cron/v3"
)

// Firer runs one job by name and returns its summary.
type Firer interface {
	Fire(ctx context.Context, job string) (json.RawMessage, error)
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron    *cron.Cron
	firer   Firer
	timeout time.Duration
}

// NewScheduler creates a scheduler that fires every configured job through firer
func NewScheduler(firer Firer, cfg *config.Config) (*Scheduler, error) {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron:    c,
		firer:   firer,
		timeout: time.Duration(cfg.Trigger.TimeoutSeconds) * time.Second,
	}

	if err := s.registerJobs(cfg.Scheduler); err != nil {
		return nil, err
	}
	return s, nil
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs(cfg config.SchedulerConfig) error {
	entries := []struct {
		spec string
		job  string
	}{
		{cfg.ExpireInvites, jobs.JobExpireInvites},
		{cfg.SendRFPReminders, jobs.JobRFPReminders},
		{cfg.ExpireNegotiations, jobs.JobExpireNegotiations},
		{cfg.RetryFailedEmails, jobs.JobRetryFailedEmails},
	}

	for _, e := range entries {
		job := e.job
		if _, err := s.cron.AddFunc(e.spec, func() { s.run(job) }); err != nil {
			logger.Error("Failed to register job", "job", job, "spec", e.spec, "error", err)
			return fmt.Errorf("register %s with %q: %w", job, e.spec, err)
		}
	}

	logger.Info("All cron jobs registered successfully", "count", len(entries))
	return nil
}

func (s *Scheduler) run(job string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx, job); err != nil {
		logger.Error("Scheduled job failed", "job", job, "error", err)
	}
}

// RunOnce fires a single job immediately
func (s *Scheduler) RunOnce(ctx context.Context, job string) (json.RawMessage, error) {
	started := time.Now()
	summary, err := s.firer.Fire(ctx, job)
	if err != nil {
		return nil, err
	}
	logger.Info("Job fired", "job", job, "duration", time.Since(started), "summary", string(summary))
	return summary, nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// Entries returns the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
